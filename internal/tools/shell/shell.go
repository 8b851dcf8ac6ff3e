// Package shell implements the shell tool family from §4.C: shell (deny
// list plus optional allow list), safe_shell (allow list only), and
// run_script (dispatch by extension). None of these tools support parallel
// execution: two concurrent shells racing over the same workspace is the
// kind of surprise a reader of the action log should never have to explain.
package shell

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/QuixiAI/Hexis/internal/tools"
)

const (
	defaultInnerTimeout = 30 * time.Second
	maxInnerTimeout     = 120 * time.Second
)

// denyPatterns are explicit dangerous shell patterns per §4.C: recursive
// deletes of root/home, filesystem format/mount, privilege escalation,
// curl|sh pipes, fork bombs.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-[a-zA-Z]*r[a-zA-Z]*f?\s+(/|~|\$HOME)\b`),
	regexp.MustCompile(`rm\s+-[a-zA-Z]*f[a-zA-Z]*r?\s+(/|~|\$HOME)\b`),
	regexp.MustCompile(`mkfs(\.\w+)?\b`),
	regexp.MustCompile(`\bmount\b`),
	regexp.MustCompile(`\bsudo\b`),
	regexp.MustCompile(`\bsu\s+-`),
	regexp.MustCompile(`curl[^|]*\|\s*sh\b`),
	regexp.MustCompile(`wget[^|]*\|\s*sh\b`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\}`), // classic fork bomb
}

func isDenied(command string) (bool, string) {
	for _, p := range denyPatterns {
		if p.MatchString(command) {
			return true, p.String()
		}
	}
	return false, ""
}

// Limiter throttles concurrent shell invocations process-wide; shared
// across Shell, SafeShell, and RunScript handlers.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter builds a token-bucket limiter allowing burst concurrent shells
// and refilling at ratePerSecond.
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (l *Limiter) wait(ctx context.Context) error {
	if l == nil || l.rl == nil {
		return nil
	}
	return l.rl.Wait(ctx)
}

func runCommand(ec *tools.ExecContext, limiter *Limiter, name string, args []string, timeout time.Duration) (tools.Result, error) {
	if timeout <= 0 || timeout > maxInnerTimeout {
		timeout = defaultInnerTimeout
	}
	if err := limiter.wait(ec.Go); err != nil {
		return tools.Result{}, tools.Wrap(tools.KindShellTimeout, err)
	}

	ctx, cancel := context.WithTimeout(ec.Go, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if ec.WorkspacePath != "" {
		cmd.Dir = ec.WorkspacePath
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return tools.Result{}, tools.Errorf(tools.KindShellTimeout, "command exceeded %s", timeout)
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return tools.Result{}, tools.Errorf(tools.KindShellExitError, "command exited with error: %s", stderr.String())
		}
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{
		"stdout": stdout.String(),
		"stderr": stderr.String(),
	}}, nil
}

// Shell runs an arbitrary command line through /bin/sh -c, checked against
// the deny list (and, if configured, an allow list).
type Shell struct {
	Limiter   *Limiter
	AllowList []*regexp.Regexp
}

func (Shell) Spec() tools.Spec {
	return tools.Spec{
		Name:             "shell",
		Description:      "Run a shell command. Subject to a deny list of dangerous patterns.",
		Category:         tools.CategoryShell,
		EnergyCost:       5,
		RequiresApproval: true,
		SupportsParallel: false,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"command":{"type":"string"},"timeout_seconds":{"type":"number"}},"required":["command"]}`),
	}
}

func (s Shell) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowShell {
		return tools.Result{}, tools.Errorf(tools.KindShellDisabled, "shell is not permitted in this context")
	}
	command, _ := args["command"].(string)
	if command == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "command is required")
	}
	if denied, pattern := isDenied(command); denied {
		return tools.Result{}, tools.Errorf(tools.KindShellDisabled, "command matches deny pattern %q", pattern)
	}
	if len(s.AllowList) > 0 {
		allowed := false
		for _, p := range s.AllowList {
			if p.MatchString(command) {
				allowed = true
				break
			}
		}
		if !allowed {
			return tools.Result{}, tools.Errorf(tools.KindShellDisabled, "command does not match any allow-listed pattern")
		}
	}
	timeout := timeoutFromArgs(args)
	return runCommand(ec, s.Limiter, "/bin/sh", []string{"-c", command}, timeout)
}

// SafeShell runs only commands matching an administrator-supplied allow
// list, at lower energy cost and without an approval gate.
type SafeShell struct {
	Limiter   *Limiter
	AllowList []*regexp.Regexp
}

func (SafeShell) Spec() tools.Spec {
	return tools.Spec{
		Name:        "safe_shell",
		Description: "Run a shell command restricted to an administrator-defined allow list.",
		Category:    tools.CategoryShell,
		EnergyCost:  2,
		Parameters:  tools.MustSchema(`{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`),
	}
}

func (s SafeShell) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowShell {
		return tools.Result{}, tools.Errorf(tools.KindShellDisabled, "shell is not permitted in this context")
	}
	command, _ := args["command"].(string)
	if command == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "command is required")
	}
	allowed := false
	for _, p := range s.AllowList {
		if p.MatchString(command) {
			allowed = true
			break
		}
	}
	if !allowed {
		return tools.Result{}, tools.Errorf(tools.KindShellDisabled, "command does not match any allow-listed pattern")
	}
	return runCommand(ec, s.Limiter, "/bin/sh", []string{"-c", command}, defaultInnerTimeout)
}

// interpreters maps a script file extension to the interpreter invocation
// used to run it, per §4.C's "small fixed table of interpreters".
var interpreters = map[string][]string{
	".py": {"python3"},
	".sh": {"/bin/sh"},
	".js": {"node"},
	".rb": {"ruby"},
}

// RunScript dispatches a script file to its interpreter by extension.
type RunScript struct {
	Limiter *Limiter
}

func (RunScript) Spec() tools.Spec {
	return tools.Spec{
		Name:             "run_script",
		Description:      "Run a script file within the workspace, dispatched to an interpreter by file extension.",
		Category:         tools.CategoryShell,
		EnergyCost:       5,
		RequiresApproval: true,
		SupportsParallel: false,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"path":{"type":"string"},"args":{"type":"array","items":{"type":"string"}}},"required":["path"]}`),
	}
}

func (r RunScript) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if !ec.AllowShell {
		return tools.Result{}, tools.Errorf(tools.KindShellDisabled, "shell is not permitted in this context")
	}
	path, _ := args["path"].(string)
	if path == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "path is required")
	}
	ext := filepath.Ext(path)
	interp, ok := interpreters[ext]
	if !ok {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "no interpreter registered for extension %q", ext)
	}
	var scriptArgs []string
	if raw, ok := args["args"].([]any); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				scriptArgs = append(scriptArgs, s)
			}
		}
	}
	cmdName := interp[0]
	cmdArgs := append(append([]string{}, interp[1:]...), path)
	cmdArgs = append(cmdArgs, scriptArgs...)
	return runCommand(ec, r.Limiter, cmdName, cmdArgs, defaultInnerTimeout)
}

func timeoutFromArgs(args map[string]any) time.Duration {
	if v, ok := args["timeout_seconds"].(float64); ok && v > 0 {
		return time.Duration(v * float64(time.Second))
	}
	return defaultInnerTimeout
}
