package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/tools"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	return dir
}

func TestReadFileDeniedWithoutPermission(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: newWorkspace(t)}
	_, err := ReadFile{}.Execute(ec, map[string]any{"path": "hello.txt"})
	require.Error(t, err)
	require.Equal(t, tools.KindPermissionDenied, xerrors.KindOf(err))
}

func TestReadFileHappyPath(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: newWorkspace(t), AllowFileRead: true}
	res, err := ReadFile{}.Execute(ec, map[string]any{"path": "hello.txt"})
	require.NoError(t, err)
	require.Equal(t, "hi there", res.Output["content"])
}

func TestReadFilePathEscapeDenied(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: newWorkspace(t), AllowFileRead: true}
	_, err := ReadFile{}.Execute(ec, map[string]any{"path": "../../etc/passwd"})
	require.Error(t, err)
	require.Equal(t, tools.KindPathNotAllowed, xerrors.KindOf(err))
}

func TestReadFileNotFound(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: newWorkspace(t), AllowFileRead: true}
	_, err := ReadFile{}.Execute(ec, map[string]any{"path": "missing.txt"})
	require.Error(t, err)
	require.Equal(t, tools.KindFileNotFound, xerrors.KindOf(err))
}

func TestWriteFileThenReadRoundTrip(t *testing.T) {
	dir := newWorkspace(t)
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: dir, AllowFileRead: true, AllowFileWrite: true}
	_, err := WriteFile{}.Execute(ec, map[string]any{"path": "new.txt", "content": "written"})
	require.NoError(t, err)
	res, err := ReadFile{}.Execute(ec, map[string]any{"path": "new.txt"})
	require.NoError(t, err)
	require.Equal(t, "written", res.Output["content"])
}

func TestEditFileReplacesFirstOccurrence(t *testing.T) {
	dir := newWorkspace(t)
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: dir, AllowFileRead: true, AllowFileWrite: true}
	_, err := EditFile{}.Execute(ec, map[string]any{"path": "hello.txt", "old_string": "hi", "new_string": "hey"})
	require.NoError(t, err)
	res, err := ReadFile{}.Execute(ec, map[string]any{"path": "hello.txt"})
	require.NoError(t, err)
	require.Equal(t, "hey there", res.Output["content"])
}

func TestListDirectory(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: newWorkspace(t), AllowFileRead: true}
	res, err := ListDirectory{}.Execute(ec, map[string]any{"path": "."})
	require.NoError(t, err)
	entries := res.Output["entries"].([]map[string]any)
	require.Len(t, entries, 2)
}

func TestGlobMatchesPattern(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: newWorkspace(t), AllowFileRead: true}
	res, err := Glob{}.Execute(ec, map[string]any{"pattern": "*.txt"})
	require.NoError(t, err)
	require.Equal(t, []string{"hello.txt"}, res.Output["matches"])
}

func TestGrepFindsMatchingLine(t *testing.T) {
	ec := &tools.ExecContext{Go: context.Background(), WorkspacePath: newWorkspace(t), AllowFileRead: true}
	res, err := Grep{}.Execute(ec, map[string]any{"pattern": "hi"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Output["count"])
}
