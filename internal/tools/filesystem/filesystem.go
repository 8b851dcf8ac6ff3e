// Package filesystem implements the filesystem tool family from §4.C:
// read_file, write_file, edit_file, glob, grep, list_directory. Every path
// is resolved against ctx.WorkspacePath and rejected if it would escape it.
package filesystem

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/QuixiAI/Hexis/internal/tools"
)

const maxReadBytes = 10 << 20 // 10 MB ceiling on reads, per §4.C

var mustSchema = tools.MustSchema

// resolvePath joins name onto the workspace root and verifies the result
// does not escape it, returning path_not_allowed otherwise.
func resolvePath(ec *tools.ExecContext, name string) (string, error) {
	if ec.WorkspacePath == "" {
		return "", tools.Errorf(tools.KindPathNotAllowed, "no workspace configured for this context")
	}
	root, err := filepath.Abs(ec.WorkspacePath)
	if err != nil {
		return "", tools.Wrap(tools.KindPathNotAllowed, err)
	}
	joined := filepath.Join(root, name)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", tools.Wrap(tools.KindPathNotAllowed, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", tools.Errorf(tools.KindPathNotAllowed, "path %q escapes workspace", name)
	}
	return abs, nil
}

// ReadFile returns a file's content, enforcing AllowFileRead and the size
// ceiling.
type ReadFile struct{}

func (ReadFile) Spec() tools.Spec {
	return tools.Spec{
		Name:        "read_file",
		Description: "Read the content of a file within the workspace.",
		Category:    tools.CategoryFilesystem,
		EnergyCost:  1,
		IsReadOnly:  true,
		Parameters:  mustSchema(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
	}
}

func (ReadFile) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowFileRead {
		return tools.Result{}, tools.Errorf(tools.KindPermissionDenied, "file reads are not permitted in this context")
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "path is required")
	}
	abs, err := resolvePath(ec, path)
	if err != nil {
		return tools.Result{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Result{}, tools.Errorf(tools.KindFileNotFound, "no such file: %s", path)
		}
		return tools.Result{}, tools.Wrap(tools.KindPermissionDenied, err)
	}
	if info.IsDir() {
		return tools.Result{}, tools.Errorf(tools.KindFileNotFound, "%s is a directory", path)
	}
	if info.Size() > maxReadBytes {
		return tools.Result{}, tools.Errorf(tools.KindFileTooLarge, "%s is %d bytes, exceeds the 10 MB read ceiling", path, info.Size())
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindPermissionDenied, err)
	}
	return tools.Result{Output: map[string]any{"content": string(content), "size": info.Size()}}, nil
}

// WriteFile overwrites (or creates) a file, enforcing AllowFileWrite.
type WriteFile struct{}

func (WriteFile) Spec() tools.Spec {
	return tools.Spec{
		Name:        "write_file",
		Description: "Write content to a file within the workspace, creating it if absent.",
		Category:    tools.CategoryFilesystem,
		EnergyCost:  2,
		Parameters:  mustSchema(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`),
	}
}

func (WriteFile) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowFileWrite {
		return tools.Result{}, tools.Errorf(tools.KindPermissionDenied, "file writes are not permitted in this context")
	}
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "path is required")
	}
	abs, err := resolvePath(ec, path)
	if err != nil {
		return tools.Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return tools.Result{}, tools.Wrap(tools.KindPermissionDenied, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return tools.Result{}, tools.Wrap(tools.KindPermissionDenied, err)
	}
	return tools.Result{Output: map[string]any{"bytes_written": len(content)}}, nil
}

// EditFile performs a single exact-match string replacement in a file.
type EditFile struct{}

func (EditFile) Spec() tools.Spec {
	return tools.Spec{
		Name:        "edit_file",
		Description: "Replace the first occurrence of old_string with new_string in a file.",
		Category:    tools.CategoryFilesystem,
		EnergyCost:  2,
		Parameters:  mustSchema(`{"type":"object","properties":{"path":{"type":"string"},"old_string":{"type":"string"},"new_string":{"type":"string"}},"required":["path","old_string","new_string"]}`),
	}
}

func (EditFile) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowFileRead || !ec.AllowFileWrite {
		return tools.Result{}, tools.Errorf(tools.KindPermissionDenied, "editing requires both read and write permission")
	}
	path, _ := args["path"].(string)
	oldStr, _ := args["old_string"].(string)
	newStr, _ := args["new_string"].(string)
	if path == "" || oldStr == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "path and old_string are required")
	}
	abs, err := resolvePath(ec, path)
	if err != nil {
		return tools.Result{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Result{}, tools.Errorf(tools.KindFileNotFound, "no such file: %s", path)
		}
		return tools.Result{}, tools.Wrap(tools.KindPermissionDenied, err)
	}
	idx := strings.Index(string(data), oldStr)
	if idx < 0 {
		return tools.Result{}, tools.Errorf(tools.KindExecutionFailed, "old_string not found in %s", path)
	}
	updated := string(data)[:idx] + newStr + string(data)[idx+len(oldStr):]
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return tools.Result{}, tools.Wrap(tools.KindPermissionDenied, err)
	}
	return tools.Result{Output: map[string]any{"replaced": 1}}, nil
}

// Glob matches files under the workspace against a doublestar pattern.
type Glob struct{}

func (Glob) Spec() tools.Spec {
	return tools.Spec{
		Name:             "glob",
		Description:      "List files under the workspace matching a glob pattern.",
		Category:         tools.CategoryFilesystem,
		EnergyCost:       1,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       mustSchema(`{"type":"object","properties":{"pattern":{"type":"string"}},"required":["pattern"]}`),
	}
}

func (Glob) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowFileRead {
		return tools.Result{}, tools.Errorf(tools.KindPermissionDenied, "file reads are not permitted in this context")
	}
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "pattern is required")
	}
	root, err := filepath.Abs(ec.WorkspacePath)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindPathNotAllowed, err)
	}
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindInvalidParams, err)
	}
	sort.Strings(matches)
	return tools.Result{Output: map[string]any{"matches": matches, "count": len(matches)}}, nil
}

// Grep performs a regex search across files under the workspace.
type Grep struct{}

func (Grep) Spec() tools.Spec {
	return tools.Spec{
		Name:             "grep",
		Description:      "Search file contents under the workspace with a regular expression.",
		Category:         tools.CategoryFilesystem,
		EnergyCost:       2,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       mustSchema(`{"type":"object","properties":{"pattern":{"type":"string"},"glob":{"type":"string"}},"required":["pattern"]}`),
	}
}

type grepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

func (Grep) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowFileRead {
		return tools.Result{}, tools.Errorf(tools.KindPermissionDenied, "file reads are not permitted in this context")
	}
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "pattern is required")
	}
	globPattern, _ := args["glob"].(string)
	if globPattern == "" {
		globPattern = "**/*"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindInvalidParams, err)
	}
	root, err := filepath.Abs(ec.WorkspacePath)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindPathNotAllowed, err)
	}
	fsys := os.DirFS(root)
	candidates, err := doublestar.Glob(fsys, globPattern)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindInvalidParams, err)
	}

	var out []grepMatch
	for _, rel := range candidates {
		abs := filepath.Join(root, rel)
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() || info.Size() > maxReadBytes {
			continue
		}
		f, err := os.Open(abs)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				out = append(out, grepMatch{Path: rel, Line: lineNo, Text: scanner.Text()})
			}
		}
		f.Close()
	}
	matches := make([]map[string]any, len(out))
	for i, m := range out {
		matches[i] = map[string]any{"path": m.Path, "line": m.Line, "text": m.Text}
	}
	return tools.Result{Output: map[string]any{"matches": matches, "count": len(matches)}}, nil
}

// ListDirectory lists immediate children of a directory within the workspace.
type ListDirectory struct{}

func (ListDirectory) Spec() tools.Spec {
	return tools.Spec{
		Name:             "list_directory",
		Description:      "List the immediate contents of a directory within the workspace.",
		Category:         tools.CategoryFilesystem,
		EnergyCost:       1,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       mustSchema(`{"type":"object","properties":{"path":{"type":"string"}}}`),
	}
}

func (ListDirectory) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowFileRead {
		return tools.Result{}, tools.Errorf(tools.KindPermissionDenied, "file reads are not permitted in this context")
	}
	path, _ := args["path"].(string)
	abs, err := resolvePath(ec, path)
	if err != nil {
		return tools.Result{}, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Result{}, tools.Errorf(tools.KindDirectoryNotFound, "no such directory: %s", path)
		}
		return tools.Result{}, tools.Wrap(tools.KindPermissionDenied, err)
	}
	names := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		names = append(names, map[string]any{"name": e.Name(), "is_dir": e.IsDir()})
	}
	return tools.Result{Output: map[string]any{"entries": names}}, nil
}
