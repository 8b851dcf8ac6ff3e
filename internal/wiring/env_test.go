package wiring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetenvFallsBackWhenUnset(t *testing.T) {
	t.Setenv("HEXIS_TEST_UNSET_KEY", "")
	require.Equal(t, "fallback", getenv("HEXIS_TEST_UNSET_KEY", "fallback"))
}

func TestGetenvReturnsSetValue(t *testing.T) {
	t.Setenv("HEXIS_TEST_KEY", "value")
	require.Equal(t, "value", getenv("HEXIS_TEST_KEY", "fallback"))
}

func TestGetenvIntParsesOrFallsBack(t *testing.T) {
	t.Setenv("HEXIS_TEST_INT", "42")
	require.Equal(t, 42, getenvInt("HEXIS_TEST_INT", 7))

	t.Setenv("HEXIS_TEST_INT_BAD", "not-a-number")
	require.Equal(t, 7, getenvInt("HEXIS_TEST_INT_BAD", 7))
}

func TestGetenvFloatParsesOrFallsBack(t *testing.T) {
	t.Setenv("HEXIS_TEST_FLOAT", "1.5")
	require.InDelta(t, 1.5, getenvFloat("HEXIS_TEST_FLOAT", 0), 0.0001)

	t.Setenv("HEXIS_TEST_FLOAT_BAD", "nope")
	require.InDelta(t, 0.25, getenvFloat("HEXIS_TEST_FLOAT_BAD", 0.25), 0.0001)
}

func TestGetenvBoolParsesOrFallsBack(t *testing.T) {
	t.Setenv("HEXIS_TEST_BOOL", "true")
	require.True(t, getenvBool("HEXIS_TEST_BOOL", false))

	t.Setenv("HEXIS_TEST_BOOL_BAD", "maybe")
	require.True(t, getenvBool("HEXIS_TEST_BOOL_BAD", true))
}
