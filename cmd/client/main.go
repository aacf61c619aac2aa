// Command gridcalc-client is an interactive client for gridcalc-server.
//
// It reads request lines from standard input, sends each to the server and
// prints the reply. Sending BYE, or reaching the end of input, ends the
// session. A prompt is shown only when standard input is a terminal.
//
// Example:
//
//	$ echo 'MAX_GRID;x:0:1:3;(x*x)' | gridcalc-client --addr localhost:7070
//	OK;0.000;9
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

const prompt = "gridcalc> "

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logFatal("gridcalc-client: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:           "gridcalc-client",
		Short:         "Send grid computation requests to a gridcalc server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := net.Dialer{Timeout: timeout}
			conn, err := d.DialContext(cmd.Context(), "tcp", addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			in := cmd.InOrStdin()
			return session(conn, in, cmd.OutOrStdout(), isTerminal(in))
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", getenv("GRIDCALC_ADDR", "localhost:7070"), "server address")
	cmd.Flags().DurationVar(&timeout, "dial-timeout", 5*time.Second, "connection timeout")
	return cmd
}

// session relays lines from in to conn and replies from conn to out until
// BYE is sent, in is exhausted or the server closes the connection.
func session(conn net.Conn, in io.Reader, out io.Writer, interactive bool) error {
	replies := bufio.NewReader(conn)
	lines := bufio.NewScanner(in)

	for {
		if interactive {
			fmt.Fprint(out, prompt)
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return err
			}
			// Leave politely so the server does not log a dropped stream.
			_, _ = io.WriteString(conn, "BYE\n")
			return nil
		}
		line := strings.TrimSpace(lines.Text())
		if line == "" {
			continue
		}
		if _, err := io.WriteString(conn, line+"\n"); err != nil {
			return err
		}
		if line == "BYE" {
			return nil
		}

		reply, err := replies.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("server closed the connection")
			}
			return err
		}
		fmt.Fprint(out, reply)
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
