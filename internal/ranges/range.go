package ranges

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dreamware/gridcalc/internal/calcerr"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// Range is a named, ordered sequence of values.
type Range struct {
	Name   string
	Values []float64
}

// ParseRange parses a name:start:step:end spec and generates its values.
// maxValues caps the sequence length; 0 means no cap.
func ParseRange(spec string, maxValues int) (Range, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 4 {
		return Range{}, calcerr.Newf(calcerr.InvalidVariableRange,
			"invalid variable range format '%s': want name:start:step:end", spec)
	}
	name := strings.TrimSpace(parts[0])
	if !namePattern.MatchString(name) {
		return Range{}, calcerr.Newf(calcerr.InvalidVariableRange, "invalid variable name: '%s'", name)
	}

	var nums [3]float64
	for i, field := range parts[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Range{}, calcerr.Newf(calcerr.InvalidVariableRange,
				"invalid number '%s' in range of %s", field, name)
		}
		nums[i] = v
	}
	start, step, end := nums[0], nums[1], nums[2]
	if step <= 0 {
		return Range{}, calcerr.Newf(calcerr.InvalidVariableRange,
			"step of %s must be positive, got %s", name, strings.TrimSpace(parts[2]))
	}

	values, err := generate(start, step, end, maxValues)
	if err != nil {
		return Range{}, calcerr.Newf(calcerr.InvalidVariableRange, "range of %s: %v", name, err)
	}
	return Range{Name: name, Values: values}, nil
}

// generate produces start, start+step, ... up to end. Every value is rounded
// to the step's precision and the rounded value becomes the base for the
// next increment.
func generate(start, step, end float64, maxValues int) ([]float64, error) {
	digits := decimalDigits(step)
	var values []float64
	for v := start; ; {
		r := round(v, digits)
		if r > end {
			break
		}
		if maxValues > 0 && len(values) == maxValues {
			return nil, fmt.Errorf("more than %d values", maxValues)
		}
		values = append(values, r)
		next := r + step
		if next == r {
			return nil, fmt.Errorf("step %v cannot advance past %v", step, r)
		}
		v = next
	}
	return values, nil
}

// decimalDigits returns the number of fractional digits in the shortest
// decimal representation of f, and at least 1.
func decimalDigits(f float64) int {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 1
}

// round rounds f to the given number of decimal places, halves away from
// zero, normalizing -0. Rounding works on the shortest decimal form of f, so
// 0.15 rounds to 0.2 even though the nearest double is slightly below it.
func round(f float64, digits int) float64 {
	s := roundHalfUp(strconv.FormatFloat(math.Abs(f), 'f', -1, 64), digits)
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return f
	}
	if r == 0 {
		return 0
	}
	if f < 0 {
		return -r
	}
	return r
}

// roundHalfUp rounds the non-negative plain decimal s to digits fractional
// digits.
func roundHalfUp(s string, digits int) string {
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) <= digits {
		return s
	}
	up := frac[digits] >= '5'
	b := []byte(whole + frac[:digits])
	if up {
		i := len(b) - 1
		for ; i >= 0 && b[i] == '9'; i-- {
			b[i] = '0'
		}
		if i < 0 {
			b = append([]byte{'1'}, b...)
		} else {
			b[i]++
		}
	}
	if digits == 0 {
		return string(b)
	}
	n := len(b) - digits
	return string(b[:n]) + "." + string(b[n:])
}
