package protocol

import (
	"errors"
	"strconv"
	"time"

	"github.com/dreamware/gridcalc/internal/calcerr"
)

// FormatOK formats a success reply.
func FormatOK(elapsed time.Duration, result string) string {
	return "OK;" + FormatSeconds(elapsed) + ";" + result
}

// FormatError formats an error reply. Errors that carry no kind are
// reported as InvalidRequest.
func FormatError(err error) string {
	var e *calcerr.Error
	if !errors.As(err, &e) {
		e = calcerr.New(calcerr.InvalidRequest, err.Error())
	}
	return "ERR; " + e.Error()
}

// FormatSeconds renders d as seconds with millisecond precision.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Milliseconds())/1000, 'f', 3, 64)
}

// FormatNumber renders a result in its shortest decimal form.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatCount renders an integer counter.
func FormatCount(n uint64) string {
	return strconv.FormatUint(n, 10)
}
