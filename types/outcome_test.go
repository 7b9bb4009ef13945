package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeNegate(t *testing.T) {
	require.True(t, True().Negate().IsFalse())
	require.True(t, False().Negate().IsTrue())

	// Traps pass through negation unchanged: a fault is not a
	// boolean, so Not cannot turn it into one.
	trap := Trapped("division by zero")
	neg := trap.Negate()
	require.True(t, neg.IsTrap())
	require.Equal(t, "division by zero", neg.Reason)
}

func TestOutcomeBool(t *testing.T) {
	require.True(t, Bool(true).IsTrue())
	require.True(t, Bool(false).IsFalse())
	require.False(t, Bool(false).IsTrap())
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "true", True().String())
	require.Equal(t, "false", False().String())
	require.Contains(t, Trapped("boom").String(), "trap")
}
