// Package server implements the gridcalc TCP front end: the per-connection
// request loop (Handler), the connection dispatcher (Server) and the
// registry of live sessions.
//
// # Wire Protocol
//
// Clients send newline-terminated UTF-8 lines. A trailing carriage return is
// ignored. Each line gets exactly one reply line, except BYE:
//
//	client: MAX_GRID;x:0:1:2;(x+1)
//	server: OK;0.000;3
//	client: STAT_REQS
//	server: OK;0.000;1
//	client: MIN_LIST;x:0:1:2;(1/x)
//	server: ERR; (DivisionByZero) division by zero at node '(1/x)'
//	client: BYE
//	(connection closed)
//
// Request errors never close the connection. It ends only on BYE, end of
// stream, an I/O error, an over-long line or server shutdown.
//
// # Concurrency
//
// Server runs each connection on a worker from an errgroup.Group limited to
// the configured worker count. With every worker busy the accept loop stops
// accepting and new clients queue in the listen backlog. Computations keep
// all of their state on the worker's stack, so connections share only the
// statistics Aggregator and the metrics collectors.
//
// # Shutdown
//
// Cancelling the context passed to Serve closes the listener and every
// registered connection. Serve then waits for all workers to return.
//
// # Logging
//
// Every session gets a random UUID, logged as the "conn" attribute on each
// record about that connection.
package server
