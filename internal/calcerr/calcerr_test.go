package calcerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{InvalidRequest, "InvalidRequest"},
		{InvalidVariableRange, "InvalidVariableRange"},
		{ExpressionParsingError, "ExpressionParsingError"},
		{UnboundVariable, "UnboundVariable"},
		{DivisionByZero, "DivisionByZero"},
		{ZeroOverZero, "ZeroOverZero"},
		{MergeLengthMismatch, "MergeLengthMismatch"},
		{Kind(42), "Kind(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := Newf(DivisionByZero, "division by zero at node '%s'", "(1/0)")
	assert.Equal(t, "(DivisionByZero) division by zero at node '(1/0)'", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("compute: %w", New(ZeroOverZero, "undefined"))

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ZeroOverZero, kind)
	assert.True(t, Is(wrapped, ZeroOverZero))
	assert.False(t, Is(wrapped, DivisionByZero))

	_, ok = KindOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}
