// Package protocol implements the gridcalc line protocol: classifying
// request lines and formatting replies.
//
// Requests, one per line:
//
//	BYE                                       close the connection, no reply
//	STAT_REQS | STAT_AVG_TIME | STAT_MAX_TIME server counters
//	<AGG>_<MERGE>;<ranges>;<expressions>      a computation
//
// Replies, one per request:
//
//	OK;<elapsed seconds>;<result>
//	ERR; (<ErrorKind>) <message>
package protocol

import (
	"strings"

	"github.com/dreamware/gridcalc/internal/calcerr"
	"github.com/dreamware/gridcalc/internal/compute"
	"github.com/dreamware/gridcalc/internal/ranges"
)

// Request is a classified request line: Quit, StatQuery or Computation.
type Request interface {
	request()
}

// Quit asks the server to close the connection.
type Quit struct{}

// Stat names one of the server counters.
type Stat int

const (
	StatRequests Stat = iota
	StatAvgTime
	StatMaxTime
)

var statNames = [...]string{
	StatRequests: "STAT_REQS",
	StatAvgTime:  "STAT_AVG_TIME",
	StatMaxTime:  "STAT_MAX_TIME",
}

func (s Stat) String() string {
	if s >= 0 && int(s) < len(statNames) {
		return statNames[s]
	}
	return "Stat(?)"
}

// StatQuery asks for a server counter.
type StatQuery struct {
	Stat Stat
}

// Computation carries a computation request to the engine.
type Computation struct {
	compute.Request
}

func (Quit) request()        {}
func (StatQuery) request()   {}
func (Computation) request() {}

const (
	quitPrefix = "BYE"
	statPrefix = "STAT"
)

// Parse classifies a request line. The trailing newline must already be
// removed.
func Parse(line string) (Request, error) {
	switch {
	case strings.HasPrefix(line, quitPrefix):
		if line != quitPrefix {
			return nil, calcerr.New(calcerr.InvalidRequest, "invalid quit request format")
		}
		return Quit{}, nil
	case strings.HasPrefix(line, statPrefix):
		for s, name := range statNames {
			if line == name {
				return StatQuery{Stat: Stat(s)}, nil
			}
		}
		return nil, calcerr.Newf(calcerr.InvalidRequest, "invalid stat request: '%s'", line)
	}
	return parseComputation(line)
}

func parseComputation(line string) (Request, error) {
	parts := strings.SplitN(line, ";", 3)
	if len(parts) < 3 {
		return nil, calcerr.New(calcerr.InvalidRequest,
			"request parts are less than 3: want <AGG>_<MERGE>;<ranges>;<expressions>")
	}

	header := strings.Split(parts[0], "_")
	if len(header) != 2 {
		return nil, calcerr.Newf(calcerr.InvalidRequest, "invalid computation kind: '%s'", parts[0])
	}
	agg, err := compute.ParseAggregation(header[0])
	if err != nil {
		return nil, err
	}
	merge, err := ranges.ParseMergeKind(header[1])
	if err != nil {
		return nil, err
	}

	return Computation{compute.Request{
		Aggregation: agg,
		Merge:       merge,
		Variables:   parts[1],
		Expressions: parts[2],
	}}, nil
}
