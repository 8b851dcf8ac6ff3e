package shell

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/tools"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

func TestIsDeniedCatchesForkBomb(t *testing.T) {
	denied, _ := isDenied(":(){ :|:& };:")
	require.True(t, denied)
}

func TestIsDeniedCatchesSudo(t *testing.T) {
	denied, _ := isDenied("sudo rm -rf /var/log")
	require.True(t, denied)
}

func TestIsDeniedAllowsOrdinaryCommand(t *testing.T) {
	denied, _ := isDenied("echo hello")
	require.False(t, denied)
}

func TestShellDeniedWithoutAllowShell(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background()}
	_, err := Shell{}.Execute(ec, map[string]any{"command": "echo hi"})
	require.Error(t, err)
	require.Equal(t, tools.KindShellDisabled, xerrors.KindOf(err))
}

func TestShellRejectsDenyPattern(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), AllowShell: true}
	_, err := Shell{}.Execute(ec, map[string]any{"command": "sudo reboot"})
	require.Error(t, err)
	require.Equal(t, tools.KindShellDisabled, xerrors.KindOf(err))
}

func TestShellHappyPath(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), AllowShell: true}
	res, err := Shell{}.Execute(ec, map[string]any{"command": "echo hi"})
	require.NoError(t, err)
	require.Contains(t, res.Output["stdout"], "hi")
}

func TestSafeShellRequiresAllowListMatch(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), AllowShell: true}
	s := SafeShell{AllowList: []*regexp.Regexp{regexp.MustCompile(`^echo `)}}
	_, err := s.Execute(ec, map[string]any{"command": "ls -la"})
	require.Error(t, err)
	require.Equal(t, tools.KindShellDisabled, xerrors.KindOf(err))

	res, err := s.Execute(ec, map[string]any{"command": "echo ok"})
	require.NoError(t, err)
	require.Contains(t, res.Output["stdout"], "ok")
}

func TestRunScriptRejectsUnknownExtension(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), AllowShell: true}
	_, err := RunScript{}.Execute(ec, map[string]any{"path": "thing.exe"})
	require.Error(t, err)
	require.Equal(t, tools.KindInvalidParams, xerrors.KindOf(err))
}
