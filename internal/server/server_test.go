package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/gridcalc/internal/logging"
	"github.com/dreamware/gridcalc/internal/stats"
)

type tcpClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr net.Addr) *tcpClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &tcpClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *tcpClient) send(line string) {
	c.t.Helper()
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	require.NoError(c.t, err)
}

func (c *tcpClient) readLine(timeout time.Duration) (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := c.r.ReadString('\n')
	return strings.TrimSuffix(line, "\n"), err
}

func (c *tcpClient) roundTrip(line string) string {
	c.t.Helper()
	c.send(line)
	reply, err := c.readLine(5 * time.Second)
	require.NoError(c.t, err)
	return reply
}

// runningServer is a Server serving a loopback port in the background.
type runningServer struct {
	*Server
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
	err    error
}

// stop cancels the server and returns the result of Serve.
func (r *runningServer) stop() error {
	r.cancel()
	r.once.Do(func() {
		select {
		case r.err = <-r.done:
		case <-time.After(5 * time.Second):
			r.err = fmt.Errorf("serve did not return after cancel")
		}
	})
	return r.err
}

// startServer serves on a loopback port until the test ends.
func startServer(t *testing.T, opts ...Option) *runningServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := NewHandler(HandlerConfig{Logger: logging.Discard()})
	srv := New(h, append([]Option{WithLogger(logging.Discard())}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningServer{Server: srv, cancel: cancel, done: make(chan error, 1)}
	go func() { rs.done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() { _ = rs.stop() })

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 5*time.Second, 10*time.Millisecond)
	return rs
}

func TestServerConcurrentClients(t *testing.T) {
	srv := startServer(t, WithWorkers(4))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := dial(t, srv.Addr())
			for j := 0; j < 20; j++ {
				// Each client uses its own variable name and range.
				line := fmt.Sprintf("MAX_GRID;v%d:0:1:%d;(v%d*2)", i, i+j, i)
				reply := c.roundTrip(line)
				assert.Equal(t, fmt.Sprintf("%d", 2*(i+j)), lastField(reply), line)
			}
			c.send("BYE")
		}(i)
	}
	wg.Wait()
}

func lastField(reply string) string {
	parts := strings.Split(reply, ";")
	return parts[len(parts)-1]
}

func TestServerSharesStatistics(t *testing.T) {
	srv := startServer(t, WithWorkers(2))

	a := dial(t, srv.Addr())
	b := dial(t, srv.Addr())
	assert.Equal(t, "0", lastField(a.roundTrip("STAT_REQS")))
	assert.True(t, strings.HasPrefix(b.roundTrip("MIN_LIST;x:1:1:3;x"), "OK;"))
	assert.Equal(t, "1", lastField(a.roundTrip("STAT_REQS")))
}

func TestServerWorkerLimit(t *testing.T) {
	srv := startServer(t, WithWorkers(1))

	first := dial(t, srv.Addr())
	assert.Equal(t, "0", lastField(first.roundTrip("STAT_REQS")))

	// The only worker is busy, so the second client waits.
	second := dial(t, srv.Addr())
	second.send("STAT_REQS")
	_, err := second.readLine(200 * time.Millisecond)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())

	first.send("BYE")
	reply, err := second.readLine(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "0", lastField(reply))
}

func TestServerShutdown(t *testing.T) {
	srv := startServer(t, WithWorkers(2))

	c := dial(t, srv.Addr())
	assert.Equal(t, "0", lastField(c.roundTrip("STAT_REQS")))
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.stop())

	_, err := c.readLine(5 * time.Second)
	assert.Error(t, err)
	assert.Equal(t, 0, srv.ActiveSessions())

	_, err = net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	assert.Error(t, err)
}

func TestServerSessions(t *testing.T) {
	srv := startServer(t)

	c := dial(t, srv.Addr())
	c.roundTrip("STAT_REQS")
	c.roundTrip("STAT_REQS")

	var sessions []SessionInfo
	require.Eventually(t, func() bool {
		sessions = srv.Sessions()
		return len(sessions) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(2), sessions[0].Requests)
	assert.Equal(t, c.conn.LocalAddr().String(), sessions[0].RemoteAddr)

	c.send("BYE")
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestServerConnectionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := startServer(t, WithMetrics(stats.NewMetrics(reg)))

	c := dial(t, srv.Addr())
	c.roundTrip("STAT_REQS")
	c.send("BYE")
	require.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, 5*time.Second, 10*time.Millisecond)

	c2 := dial(t, srv.Addr())
	c2.roundTrip("STAT_REQS")

	expected := `
# HELP gridcalc_connections_active Connections currently being served
# TYPE gridcalc_connections_active gauge
gridcalc_connections_active 1
# HELP gridcalc_connections_total Connections accepted since start
# TYPE gridcalc_connections_total counter
gridcalc_connections_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"gridcalc_connections_active", "gridcalc_connections_total"))
}

func TestListenAndServe(t *testing.T) {
	h := NewHandler(HandlerConfig{Logger: logging.Discard()})
	srv := New(h, WithLogger(logging.Discard()), WithReusePort(true), WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 5*time.Second, 10*time.Millisecond)
	c := dial(t, srv.Addr())
	assert.Equal(t, "3", lastField(c.roundTrip("COUNT_LIST;x:1:1:3;x")))

	cancel()
	assert.NoError(t, <-done)
}

func TestListenAndServeBadAddress(t *testing.T) {
	srv := New(NewHandler(HandlerConfig{Logger: logging.Discard()}), WithLogger(logging.Discard()))
	err := srv.ListenAndServe(context.Background(), "127.0.0.1:notaport")
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	srv := New(NewHandler(HandlerConfig{}), WithWorkers(0))
	assert.GreaterOrEqual(t, srv.workers, 1)
	assert.NotNil(t, srv.logger)
	assert.Nil(t, srv.Addr())
}
