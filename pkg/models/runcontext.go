package models

import (
	"context"
	"log/slog"
	"time"
)

// VcsMode selects the VcsCoordinator strategy for a run.
type VcsMode string

const (
	VcsFlat            VcsMode = "flat"
	VcsWorktreeParallel VcsMode = "worktree-parallel"
	VcsStacked         VcsMode = "stacked"
)

// StackingStrategy selects the ordering StackBuilder uses to assemble branches.
type StackingStrategy string

const (
	StackDependencyOrder StackingStrategy = "dependency-order"
	StackComplexityFirst StackingStrategy = "complexity-first"
	StackFileImpact      StackingStrategy = "file-impact"
)

// ConflictPolicy controls how StackBuilder handles cherry-pick conflicts.
type ConflictPolicy string

const (
	ConflictAuto   ConflictPolicy = "auto"
	ConflictManual ConflictPolicy = "manual"
	ConflictFail   ConflictPolicy = "fail"
)

// ValidationMode controls how strictly FileScopeGuard treats violations.
type ValidationMode string

const (
	ValidationStrict     ValidationMode = "strict"
	ValidationPermissive ValidationMode = "permissive"
)

// RetryableKind classifies a failure as eligible for retry.
type RetryableKind string

const (
	RetryableTimeout           RetryableKind = "timeout"
	RetryableNonzeroExit       RetryableKind = "nonzero_exit"
	RetryableTransientVcsError RetryableKind = "transient_vcs_error"
)

// RetryPolicy bounds how many times, and for which failure kinds, a task
// may be retried.
type RetryPolicy struct {
	MaxRetries     int
	RetryableKinds map[RetryableKind]bool
}

// Allows reports whether the given failure kind is eligible for retry.
func (p RetryPolicy) Allows(kind RetryableKind) bool {
	if p.RetryableKinds == nil {
		return false
	}
	return p.RetryableKinds[kind]
}

// NewRetryPolicy builds a RetryPolicy from a max-retries count and a list
// of retryable kind names, as read from configuration.
func NewRetryPolicy(maxRetries int, kinds []string) RetryPolicy {
	m := make(map[RetryableKind]bool, len(kinds))
	for _, k := range kinds {
		m[RetryableKind(k)] = true
	}
	return RetryPolicy{MaxRetries: maxRetries, RetryableKinds: m}
}

// RunContext is the immutable per-run configuration threaded through every
// component. It also carries the ambient logger and event sink — neither
// of which is serialized or persisted.
type RunContext struct {
	ConcurrencyCap   int
	PerTaskTimeout   time.Duration
	RetryPolicy      RetryPolicy
	VcsMode          VcsMode
	StackingStrategy StackingStrategy
	ConflictPolicy   ConflictPolicy
	ValidationMode   ValidationMode
	CleanupOnSuccess bool
	CleanupOnFailure bool
	BranchPrefix     string
	ShadowPath       string
	BaseRef          string
	Trunk            string
	Submit           bool
	Draft            bool
	AutoMerge        bool
	AgentExecutable  string

	RepoRoot string

	Logger    *slog.Logger
	EventSink chan<- Event
}

// Logf is a convenience wrapper that no-ops if Logger is nil, matching the
// teacher's defensive pattern of never panicking on an unset ambient logger.
func (rc *RunContext) Logf(level slog.Level, msg string, args ...any) {
	if rc == nil || rc.Logger == nil {
		return
	}
	rc.Logger.Log(context.Background(), level, msg, args...)
}

// Emit sends an event to the sink without blocking the caller; if the sink
// is full or unset, the event is dropped rather than stalling a state
// transition (spec.md §5: "the event sink is multi-writer, single-reader ...
// non-blocking").
func (rc *RunContext) Emit(ev Event) {
	if rc == nil || rc.EventSink == nil {
		return
	}
	select {
	case rc.EventSink <- ev:
	default:
	}
}
