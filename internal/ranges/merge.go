package ranges

import (
	"math/bits"

	"golang.org/x/exp/slices"

	"github.com/dreamware/gridcalc/internal/calcerr"
)

// MergeKind selects how several ranges are combined.
type MergeKind int

const (
	// Grid is the cartesian product of all ranges.
	Grid MergeKind = iota
	// List pairs the i-th values of all ranges.
	List
)

func (k MergeKind) String() string {
	switch k {
	case Grid:
		return "GRID"
	case List:
		return "LIST"
	}
	return "MergeKind(?)"
}

// ParseMergeKind parses the wire name of a merge kind.
func ParseMergeKind(s string) (MergeKind, error) {
	switch s {
	case "GRID":
		return Grid, nil
	case "LIST":
		return List, nil
	}
	return 0, calcerr.Newf(calcerr.InvalidRequest, "invalid merge kind: '%s'", s)
}

// Set is the ordered collection of ranges declared by one request.
type Set struct {
	ranges    []Range
	maxValues int
}

// NewSet returns an empty Set whose ranges may hold at most maxValues values
// each (0 for no limit).
func NewSet(maxValues int) *Set {
	return &Set{maxValues: maxValues}
}

// Add parses spec and appends the resulting range. Names must be unique
// within the set.
func (s *Set) Add(spec string) error {
	r, err := ParseRange(spec, s.maxValues)
	if err != nil {
		return err
	}
	if slices.IndexFunc(s.ranges, func(x Range) bool { return x.Name == r.Name }) >= 0 {
		return calcerr.Newf(calcerr.InvalidVariableRange, "duplicate variable: '%s'", r.Name)
	}
	s.ranges = append(s.ranges, r)
	return nil
}

// Merge combines the declared ranges. For a single range the kind does not
// matter: every value becomes its own assignment.
func (s *Set) Merge(kind MergeKind) (*Merged, error) {
	if len(s.ranges) == 0 {
		return nil, calcerr.New(calcerr.InvalidVariableRange, "no variables declared")
	}
	m := &Merged{
		kind:  kind,
		names: make([]string, len(s.ranges)),
		seqs:  make([][]float64, len(s.ranges)),
	}
	for i, r := range s.ranges {
		m.names[i] = r.Name
		m.seqs[i] = r.Values
	}

	switch kind {
	case List:
		m.n = len(m.seqs[0])
		for i, seq := range m.seqs[1:] {
			if len(seq) != m.n {
				return nil, calcerr.Newf(calcerr.MergeLengthMismatch,
					"all variables must have the same number of values for LIST merge: %s has %d, %s has %d",
					m.names[0], m.n, m.names[i+1], len(seq))
			}
		}
	case Grid:
		n := uint64(1)
		for _, seq := range m.seqs {
			hi, lo := bits.Mul64(n, uint64(len(seq)))
			if hi != 0 || lo > uint64(maxInt) {
				return nil, calcerr.New(calcerr.InvalidVariableRange, "grid has too many assignments")
			}
			n = lo
		}
		m.n = int(n)
	default:
		return nil, calcerr.Newf(calcerr.InvalidRequest, "invalid merge kind: %d", int(kind))
	}
	return m, nil
}

const maxInt = int(^uint(0) >> 1)

// Merged is a lazily evaluated sequence of assignments.
type Merged struct {
	kind  MergeKind
	names []string
	seqs  [][]float64
	n     int
}

// Len returns the number of assignments.
func (m *Merged) Len() int { return m.n }

// at returns the i-th assignment. It panics if i is out of range.
func (m *Merged) at(i int) Assignment {
	a := Assignment{names: m.names, values: make([]float64, len(m.names))}
	m.fill(i, a.values)
	return a
}

// Each calls fn with every assignment in order, stopping at the first
// error. The Assignment passed to fn is reused between calls and must not be
// retained.
func (m *Merged) Each(fn func(Assignment) error) error {
	a := Assignment{names: m.names, values: make([]float64, len(m.names))}
	for i := 0; i < m.n; i++ {
		m.fill(i, a.values)
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func (m *Merged) fill(i int, dst []float64) {
	if i < 0 || i >= m.n {
		panic("ranges: assignment index out of range")
	}
	if m.kind == List {
		for k, seq := range m.seqs {
			dst[k] = seq[i]
		}
		return
	}
	// Mixed-radix decode; the last range is the least significant digit.
	for k := len(m.seqs) - 1; k >= 0; k-- {
		l := len(m.seqs[k])
		dst[k] = m.seqs[k][i%l]
		i /= l
	}
}

// Assignment binds every declared variable to one value. Names and values
// are parallel slices in declaration order.
type Assignment struct {
	names  []string
	values []float64
}

// Lookup implements expr.Binding.
func (a Assignment) Lookup(name string) (float64, bool) {
	for i, n := range a.names {
		if n == name {
			return a.values[i], true
		}
	}
	return 0, false
}
