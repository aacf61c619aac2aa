// Package stats keeps the server-wide processing counters reported by the
// STAT_* requests, and mirrors request outcomes into Prometheus collectors.
//
// # Aggregator
//
// Aggregator is the one object shared by every connection handler. It
// records, for each successful computation, the request count, the total
// processing time and the maximum processing time, all in milliseconds.
// Updates and reads take the same mutex, so a reader always sees the three
// counters from the same point in time.
//
//	agg := stats.NewAggregator()
//	agg.Update(12 * time.Millisecond)
//	agg.RequestCount() // 1
//	agg.AverageTime()  // 0.012 (seconds)
//	agg.MaxTime()      // 0.012 (seconds)
//
// Failed requests and STAT_* queries are not recorded.
//
// # Metrics
//
// Metrics registers request and connection collectors on a caller-supplied
// prometheus.Registerer. It is observability only: the STAT_* replies are
// always answered from the Aggregator.
package stats
