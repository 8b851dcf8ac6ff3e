package tools

import "github.com/QuixiAI/Hexis/internal/xerrors"

// Errorf and Wrap let tool handlers construct typed errors without each
// handler package importing xerrors directly.
func Errorf(kind, format string, args ...any) error { return xerrors.Newf(kind, format, args...) }
func Wrap(kind string, err error) error {
	wrapped := xerrors.Wrap(kind, err)
	if wrapped == nil {
		return nil
	}
	return wrapped
}

// Kind* enumerates the closed ToolErrorType set from §7, carried as
// xerrors.Error.Kind values so every policy/execution failure is a typed,
// chainable error rather than a bare string.
const (
	KindUnknownTool       = "tool.unknown_tool"
	KindInvalidParams     = "tool.invalid_params"
	KindExecutionFailed   = "tool.execution_failed"
	KindTimeout           = "tool.timeout"
	KindCancelled         = "tool.cancelled"
	KindContextDenied     = "tool.context_denied"
	KindInsufficientEnergy = "tool.insufficient_energy"
	KindBoundaryViolation = "tool.boundary_violation"
	KindApprovalRequired  = "tool.approval_required"
	KindDisabled          = "tool.disabled"
	KindFileNotFound      = "tool.file_not_found"
	KindDirectoryNotFound = "tool.directory_not_found"
	KindPermissionDenied  = "tool.permission_denied"
	KindFileTooLarge      = "tool.file_too_large"
	KindPathNotAllowed    = "tool.path_not_allowed"
	KindShellDisabled     = "tool.shell_disabled"
	KindShellTimeout      = "tool.shell_timeout"
	KindShellExitError    = "tool.shell_exit_error"
	KindNetworkError      = "tool.network_error"
	KindHTTPError         = "tool.http_error"
	KindFetchTimeout      = "tool.fetch_timeout"
	KindMissingConfig     = "tool.missing_config"
	KindMissingAPIKey     = "tool.missing_api_key"
	KindMissingDependency = "tool.missing_dependency"
	KindAuthFailed        = "tool.auth_failed"
	KindRateLimited       = "tool.rate_limited"
)
