// Package compute evaluates computation requests: it expands the declared
// variable ranges, merges them into assignments, evaluates every expression
// against every assignment and reduces the results to a single number.
//
// An Engine carries only immutable limits. All working state (the range
// set, the parsed trees, the collected results) is created inside Compute
// and dropped when it returns, so one Engine can serve every connection
// concurrently.
package compute

import (
	"math"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/gridcalc/internal/calcerr"
	"github.com/dreamware/gridcalc/internal/expr"
	"github.com/dreamware/gridcalc/internal/ranges"
)

// Aggregation is the reduction applied to the evaluated results.
type Aggregation int

const (
	Min Aggregation = iota
	Max
	Avg
	Count
)

var aggregationNames = map[Aggregation]string{
	Min:   "MIN",
	Max:   "MAX",
	Avg:   "AVG",
	Count: "COUNT",
}

func (a Aggregation) String() string {
	if s, ok := aggregationNames[a]; ok {
		return s
	}
	return "Aggregation(?)"
}

// ParseAggregation parses the wire name of an aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	for a, name := range aggregationNames {
		if name == s {
			return a, nil
		}
	}
	return 0, calcerr.Newf(calcerr.InvalidRequest, "invalid aggregation: '%s'", s)
}

// Request is a parsed computation request.
type Request struct {
	Aggregation Aggregation
	Merge       ranges.MergeKind
	// Variables is the comma separated list of name:start:step:end specs.
	Variables string
	// Expressions is the semicolon separated list of expressions.
	Expressions string
}

// Limits bounds the work a single request may cause. Zero values disable
// the corresponding limit.
type Limits struct {
	MaxRangeValues int
	MaxAssignments int
}

// Engine evaluates requests under fixed limits.
type Engine struct {
	limits Limits
}

// NewEngine returns an Engine enforcing the given limits.
func NewEngine(limits Limits) *Engine {
	return &Engine{limits: limits}
}

// Compute evaluates req and returns the aggregated value. COUNT returns the
// number of assignments without evaluating any expression, and is not
// subject to MaxAssignments since it does no per-assignment work. Any parse, range
// or evaluation failure aborts the request; no partial result is returned.
func (e *Engine) Compute(req Request) (float64, error) {
	set := ranges.NewSet(e.limits.MaxRangeValues)
	for _, spec := range splitTrimmed(req.Variables, ",") {
		if err := set.Add(spec); err != nil {
			return 0, err
		}
	}

	nodes, err := expr.ParseAll(req.Expressions)
	if err != nil {
		return 0, err
	}

	merged, err := set.Merge(req.Merge)
	if err != nil {
		return 0, err
	}
	if req.Aggregation == Count {
		return float64(merged.Len()), nil
	}
	if limit := e.limits.MaxAssignments; limit > 0 && merged.Len() > limit {
		return 0, calcerr.Newf(calcerr.InvalidVariableRange,
			"%d assignments exceed the limit of %d", merged.Len(), limit)
	}
	if merged.Len() == 0 {
		return 0, calcerr.New(calcerr.InvalidVariableRange, "no values to aggregate")
	}

	results := make([]float64, 0, min(merged.Len(), 1<<16)*len(nodes))
	var sum float64
	err = merged.Each(func(a ranges.Assignment) error {
		for i, n := range nodes {
			v, err := expr.Eval(n, a)
			if err != nil {
				return err
			}
			results = append(results, v)
			if i == 0 {
				sum += v
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	switch req.Aggregation {
	case Min:
		return slices.MinFunc(results, compareResults), nil
	case Max:
		return slices.MaxFunc(results, compareResults), nil
	case Avg:
		return sum / float64(merged.Len()), nil
	}
	return 0, calcerr.Newf(calcerr.InvalidRequest, "invalid aggregation: %d", int(req.Aggregation))
}

// splitTrimmed splits s on sep and drops trailing empty segments, matching
// how the line protocol treats a dangling separator.
func splitTrimmed(s, sep string) []string {
	parts := strings.Split(s, sep)
	for len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// compareResults orders NaN above every number, so MIN ignores NaN results
// unless all of them are NaN while MAX returns NaN if any result is NaN.
func compareResults(a, b float64) int {
	switch {
	case math.IsNaN(a):
		if math.IsNaN(b) {
			return 0
		}
		return 1
	case math.IsNaN(b):
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
