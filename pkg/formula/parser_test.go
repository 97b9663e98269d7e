package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/errors"
)

func evalConst(t *testing.T, input string) float64 {
	t.Helper()
	node, err := Parse(input)
	require.NoError(t, err)
	value, err := Eval(node, func(code string) (float64, error) {
		t.Fatalf("unexpected reference %q", code)
		return 0, nil
	})
	require.NoError(t, err)
	return value
}

func TestParseArithmetic(t *testing.T) {
	assert.Equal(t, 7.0, evalConst(t, "1 + 2 * 3"))
	assert.Equal(t, 9.0, evalConst(t, "(1 + 2) * 3"))
	assert.Equal(t, 2.5, evalConst(t, "5 / 2"))
	assert.Equal(t, -4.0, evalConst(t, "-4"))
	assert.Equal(t, 6.0, evalConst(t, "2 - -4"))
	assert.Equal(t, 1.1, evalConst(t, "1.1"))
}

func TestParseReferences(t *testing.T) {
	node, err := Parse("DEMAND * 1.1 + adjustment")
	require.NoError(t, err)

	// Codes are case insensitive and normalized to upper case.
	assert.Equal(t, []string{"ADJUSTMENT", "DEMAND"}, Dependencies(node))

	value, err := Eval(node, func(code string) (float64, error) {
		switch code {
		case "DEMAND":
			return 100, nil
		case "ADJUSTMENT":
			return 5, nil
		}
		return 0, nil
	})
	require.NoError(t, err)
	assert.InDelta(t, 115.0, value, 1e-9)
}

func TestDivisionByZeroYieldsZero(t *testing.T) {
	node, err := Parse("DEMAND / SUPPLY")
	require.NoError(t, err)

	value, err := Eval(node, func(code string) (float64, error) {
		if code == "DEMAND" {
			return 42, nil
		}
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"1 +",
		"(1 + 2",
		"1 2",
		"1 & 2",
		"1..2",
	}
	for _, input := range cases {
		_, err := Parse(input)
		require.Error(t, err, input)

		var planningErr *errors.PlanningError
		require.ErrorAs(t, err, &planningErr, input)
		assert.Equal(t, errors.CodeInvalidFormula, planningErr.Code, input)
	}
}
