package wiring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileAllowListSkipsInvalidPatterns(t *testing.T) {
	patterns := []string{`^ls\b`, `(unclosed`, `^echo\b`}
	compiled := compileAllowList(patterns)
	require.Len(t, compiled, 2)
	require.True(t, compiled[0].MatchString("ls -la"))
	require.True(t, compiled[1].MatchString("echo hi"))
}

func TestCompileAllowListEmptyInputReturnsEmptySlice(t *testing.T) {
	require.Empty(t, compileAllowList(nil))
}
