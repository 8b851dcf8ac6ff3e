package config

import (
	"os"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// resolveEnvIndirection implements the "env:VAR" convention used by
// ToolsConfig.api_keys: a value of the form "env:FOO" is resolved against
// the process environment; any other value is returned verbatim.
func resolveEnvIndirection(v string) string {
	const prefix = "env:"
	if len(v) > len(prefix) && v[:len(prefix)] == prefix {
		return os.Getenv(v[len(prefix):])
	}
	return v
}

func isMissingKeyErr(err error) bool {
	return xerrors.KindOf(err) == KindMissingKey
}
