package models

import "github.com/pkg/errors"

// Sentinel errors for the taxonomy of spec.md §7. Callers classify a wrapped
// error with errors.Is against these, or type-assert the richer *XxxError
// variants below for additional context.
var (
	ErrPlanInvalid        = errors.New("plan invalid")
	ErrWorkspaceError     = errors.New("workspace error")
	ErrAgentExecutionError = errors.New("agent execution error")
	ErrAgentTimeout       = errors.New("agent timeout")
	ErrAgentCancelled     = errors.New("agent cancelled")
	ErrScopeViolation     = errors.New("scope violation")
	ErrCommitError        = errors.New("commit error")
	ErrStackConflict      = errors.New("stack conflict")
	ErrBackendUnavailable = errors.New("vcs backend unavailable")
)

// PlanInvalidError reports why plan construction-time validation failed.
type PlanInvalidError struct {
	Reason string
	TaskID string
}

func (e *PlanInvalidError) Error() string {
	if e.TaskID != "" {
		return "plan invalid: " + e.Reason + " (task " + e.TaskID + ")"
	}
	return "plan invalid: " + e.Reason
}

func (e *PlanInvalidError) Unwrap() error { return ErrPlanInvalid }

// WorkspaceErrorDetail wraps a workspace creation/removal failure.
type WorkspaceErrorDetail struct {
	TaskID string
	Op     string // "acquire" or "release"
	Cause  error
}

func (e *WorkspaceErrorDetail) Error() string {
	return "workspace " + e.Op + " failed for task " + e.TaskID + ": " + e.Cause.Error()
}

func (e *WorkspaceErrorDetail) Unwrap() error { return ErrWorkspaceError }

// BackendUnavailableError reports that a VcsMode's required binary is missing.
type BackendUnavailableError struct {
	Mode   VcsMode
	Detail string
}

func (e *BackendUnavailableError) Error() string {
	return "vcs backend unavailable for mode " + string(e.Mode) + ": " + e.Detail
}

func (e *BackendUnavailableError) Unwrap() error { return ErrBackendUnavailable }
