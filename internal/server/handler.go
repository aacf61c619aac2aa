package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dreamware/gridcalc/internal/calcerr"
	"github.com/dreamware/gridcalc/internal/compute"
	"github.com/dreamware/gridcalc/internal/protocol"
	"github.com/dreamware/gridcalc/internal/stats"
)

// DefaultMaxLineBytes is used when HandlerConfig.MaxLineBytes is zero.
const DefaultMaxLineBytes = 64 * 1024

var errLineTooLong = errors.New("request line too long")

// HandlerConfig holds the collaborators and limits of a Handler.
// A nil Engine, Stats or Logger is replaced by a default; Metrics may be nil.
type HandlerConfig struct {
	Engine  *compute.Engine
	Stats   *stats.Aggregator
	Metrics *stats.Metrics
	Logger  *slog.Logger

	// MaxLineBytes bounds a request line. Longer lines are discarded and
	// answered with an InvalidRequest error.
	MaxLineBytes int
	// RequestsPerSecond throttles each connection; 0 disables throttling.
	RequestsPerSecond float64
	RequestBurst      int
}

// Handler runs the request/response loop of a single connection.
// One Handler is shared by all connections; it keeps no per-connection state.
type Handler struct {
	engine  *compute.Engine
	stats   *stats.Aggregator
	metrics *stats.Metrics
	logger  *slog.Logger

	maxLine int
	rps     float64
	burst   int
}

// NewHandler returns a Handler for cfg.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		engine:  cfg.Engine,
		stats:   cfg.Stats,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		maxLine: cfg.MaxLineBytes,
		rps:     cfg.RequestsPerSecond,
		burst:   cfg.RequestBurst,
	}
	if h.engine == nil {
		h.engine = compute.NewEngine(compute.Limits{})
	}
	if h.stats == nil {
		h.stats = stats.NewAggregator()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.maxLine <= 0 {
		h.maxLine = DefaultMaxLineBytes
	}
	if h.burst < 1 {
		h.burst = 1
	}
	return h
}

// ServeConn serves conn until the client sends BYE, the stream ends, an
// I/O error occurs or ctx is cancelled. It closes conn before returning.
// Request errors are reported to the client and do not end the loop.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) error {
	return h.serve(ctx, newSession(conn))
}

func (h *Handler) serve(ctx context.Context, sess *Session) error {
	defer sess.conn.Close()
	stop := context.AfterFunc(ctx, func() { sess.conn.Close() })
	defer stop()

	log := h.logger.With("conn", sess.ID)
	log.Info("session started", "remote", sess.RemoteAddr)

	var limiter *rate.Limiter
	if h.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.rps), h.burst)
	}

	r := bufio.NewReader(sess.conn)
	w := bufio.NewWriter(sess.conn)

	for {
		line, err := readLine(r, h.maxLine)
		if err != nil && !errors.Is(err, errLineTooLong) {
			if errors.Is(err, io.EOF) || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Warn("read failed", "err", err)
			return err
		}
		if ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		sess.requests.Add(1)

		var reply string
		if err != nil {
			log.Warn("request line too long", "limit", h.maxLine)
			h.metrics.ObserveRequest(stats.TypeInvalid, stats.OutcomeError, 0)
			reply = protocol.FormatError(calcerr.Newf(calcerr.InvalidRequest,
				"request line longer than %d bytes", h.maxLine))
		} else {
			var quit bool
			reply, quit = h.handleLine(log, strings.TrimSuffix(line, "\r"))
			if quit {
				log.Info("session ended by client", "requests", sess.Requests())
				return nil
			}
		}
		if err := writeLine(w, reply); err != nil {
			log.Warn("write failed", "err", err)
			return err
		}
	}

	log.Info("session ended", "requests", sess.Requests())
	return nil
}

// handleLine processes one request line and returns the reply. quit is true
// for BYE, which gets no reply.
func (h *Handler) handleLine(log *slog.Logger, line string) (reply string, quit bool) {
	start := time.Now()

	req, err := protocol.Parse(line)
	if err != nil {
		h.metrics.ObserveRequest(stats.TypeInvalid, stats.OutcomeError, time.Since(start))
		log.Debug("rejected request", "line", line, "err", err)
		return protocol.FormatError(err), false
	}

	switch r := req.(type) {
	case protocol.Quit:
		h.metrics.ObserveRequest(stats.TypeQuit, stats.OutcomeOK, time.Since(start))
		return "", true

	case protocol.StatQuery:
		value := h.statValue(r.Stat)
		elapsed := time.Since(start)
		h.metrics.ObserveRequest(stats.TypeStat, stats.OutcomeOK, elapsed)
		return protocol.FormatOK(elapsed, value), false

	case protocol.Computation:
		result, err := h.engine.Compute(r.Request)
		elapsed := time.Since(start)
		if err != nil {
			h.metrics.ObserveRequest(stats.TypeComputation, stats.OutcomeError, elapsed)
			log.Debug("computation failed", "line", line, "err", err)
			return protocol.FormatError(err), false
		}
		h.stats.Update(elapsed)
		h.metrics.ObserveRequest(stats.TypeComputation, stats.OutcomeOK, elapsed)
		log.Debug("computed", "aggregation", r.Aggregation, "merge", r.Merge, "elapsed", elapsed)
		return protocol.FormatOK(elapsed, protocol.FormatNumber(result)), false
	}

	return protocol.FormatError(fmt.Errorf("unhandled request %T", req)), false
}

func (h *Handler) statValue(s protocol.Stat) string {
	snap := h.stats.Snapshot()
	switch s {
	case protocol.StatAvgTime:
		return protocol.FormatNumber(snap.AverageSeconds())
	case protocol.StatMaxTime:
		return protocol.FormatNumber(snap.MaxSeconds())
	default:
		return protocol.FormatCount(snap.Requests)
	}
}

func writeLine(w *bufio.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// readLine returns the next line from r without its newline. A line longer
// than limit is consumed through its newline and reported as errLineTooLong.
// A final line without a newline is returned as is; the following call
// returns io.EOF.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var line []byte
	over := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !over {
			line = append(line, chunk...)
			if len(bytes.TrimSuffix(line, []byte{'\n'})) > limit {
				over, line = true, nil
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case over:
			if err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return "", errLineTooLong
		case err == nil:
			return string(line[:len(line)-1]), nil
		case errors.Is(err, io.EOF) && len(line) > 0:
			return string(line), nil
		default:
			return "", err
		}
	}
}
