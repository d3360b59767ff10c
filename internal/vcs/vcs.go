// Package vcs implements VcsCoordinator (spec.md §4.6): the strategy layer
// that decides how a task's work gets a workspace, gets committed, and
// ultimately gets assembled into review-ready branches. Three strategies
// share one VcsBackend port (internal/git.Backend): flat, worktree-parallel,
// and stacked. Grounded on the teacher's command pattern in
// internal/cmd/add.go (branch-from-base creation) and internal/worktree's
// pool, composed here behind a single interface so internal/scheduler never
// branches on VcsMode itself.
package vcs

import (
	"fmt"
	"sync"

	"github.com/taskforge/taskforge/pkg/models"
)

// Backend is the subset of internal/git.Backend the coordinator needs.
type Backend interface {
	CreateBranch(workdir, name string, opts BranchOpts) error
	Commit(workdir, message string, files []string) (string, error)
	DiffNameOnly(workdir, baseRef string) ([]string, error)
	AddWorktreeFromBase(repoRoot, path, branch, baseRef string) error
	RemoveWorktree(repoRoot, path string, force bool) error
	DeleteBranch(repoRoot, branch string, force bool) error
	HasConflicts(workdir string) (bool, error)
}

// BranchOpts mirrors internal/git.BranchOpts without importing that package,
// keeping vcs's Backend port decoupled from git's concrete types.
type BranchOpts struct {
	Base string
}

// WorkspacePool is the subset of internal/worktree.Pool the worktree-backed
// strategies need.
type WorkspacePool interface {
	Acquire(taskID, baseRef, branchName string) (*models.WorkspaceHandle, error)
	Release(handle *models.WorkspaceHandle, keepOnFailure bool) error
}

// Capabilities describes what a VcsCoordinator strategy supports, so
// internal/scheduler can size its worker pool and internal/orchestrator can
// decide whether finalize() is meaningful.
type Capabilities struct {
	Parallel          bool
	Stacking          bool
	RequiresWorktrees bool
}

// Coordinator is the VcsCoordinator port of spec.md §4.6.
type Coordinator interface {
	Initialize(plan *models.Plan) error
	Prepare(task models.Task) (*models.WorkspaceHandle, error)
	Commit(task models.Task, workspace *models.WorkspaceHandle, filesTouched []string) (string, error)
	Release(workspace *models.WorkspaceHandle, keepOnFailure bool)
	Finalize(successfulTaskIDs []string) (*models.StackResult, error)
	Capabilities() Capabilities
}

// commitMessage formats a task's commit message in the one format every
// strategy shares: "[<id>] <name>" subject plus a description body.
func commitMessage(t models.Task) string {
	msg := fmt.Sprintf("[%s] %s", t.ID, t.Name)
	if t.Description != "" {
		msg += "\n\n" + t.Description
	}
	return msg
}

// workspaceBranchName derives the per-task branch name from the run's
// configured prefix, e.g. "taskforge/task-a".
func workspaceBranchName(prefix, taskID string) string {
	if prefix == "" {
		return taskID
	}
	return prefix + "/" + taskID
}

// New constructs the Coordinator for rc.VcsMode, wiring backend/pool/repoRoot
// per mode. pool may be nil for VcsFlat, which never provisions worktrees.
func New(rc *models.RunContext, backend Backend, pool WorkspacePool) (Coordinator, error) {
	switch rc.VcsMode {
	case models.VcsFlat:
		return newFlatCoordinator(rc, backend), nil
	case models.VcsWorktreeParallel:
		if pool == nil {
			return nil, fmt.Errorf("vcs: worktree-parallel mode requires a WorkspacePool")
		}
		return newWorktreeCoordinator(rc, backend, pool, false), nil
	case models.VcsStacked:
		if pool == nil {
			return nil, fmt.Errorf("vcs: stacked mode requires a WorkspacePool")
		}
		return newWorktreeCoordinator(rc, backend, pool, true), nil
	default:
		return nil, fmt.Errorf("vcs: unknown mode %q", rc.VcsMode)
	}
}

// flatCoordinator runs every task in the single shared working copy,
// serializing prepare/commit through one mutex since there is exactly one
// workspace. Grounded on the teacher's single-workdir Git usage before
// worktree pooling was introduced.
type flatCoordinator struct {
	rc      *models.RunContext
	backend Backend
	mu      sync.Mutex
}

func newFlatCoordinator(rc *models.RunContext, backend Backend) *flatCoordinator {
	return &flatCoordinator{rc: rc, backend: backend}
}

func (c *flatCoordinator) Initialize(plan *models.Plan) error { return nil }

func (c *flatCoordinator) Prepare(task models.Task) (*models.WorkspaceHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &models.WorkspaceHandle{
		TaskID:       task.ID,
		AbsolutePath: c.rc.RepoRoot,
		BranchName:   "", // flat mode makes no per-task branch
		BaseRef:      c.rc.BaseRef,
	}, nil
}

func (c *flatCoordinator) Commit(task models.Task, workspace *models.WorkspaceHandle, filesTouched []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, err := c.backend.Commit(workspace.AbsolutePath, commitMessage(task), filesTouched)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrCommitError, err)
	}
	return hash, nil
}

func (c *flatCoordinator) Release(workspace *models.WorkspaceHandle, keepOnFailure bool) {
	// Nothing to release: flat mode never provisions a dedicated workspace.
}

func (c *flatCoordinator) Finalize(successfulTaskIDs []string) (*models.StackResult, error) {
	// Flat mode has no stack to assemble: every task already landed on trunk.
	return &models.StackResult{Branches: []string{c.rc.Trunk}}, nil
}

func (c *flatCoordinator) Capabilities() Capabilities {
	return Capabilities{Parallel: false, Stacking: false, RequiresWorktrees: false}
}

// worktreeCoordinator backs both worktree-parallel and stacked modes: each
// task gets its own git worktree and branch from pool, commits independently
// and in parallel. Finalize reports each task's own branch as independent;
// in stacked mode internal/orchestrator assembles the chain afterwards with
// internal/stack's Builder.
type worktreeCoordinator struct {
	rc       *models.RunContext
	backend  Backend
	pool     WorkspacePool
	stacking bool

	mu       sync.Mutex
	handles  map[string]*models.WorkspaceHandle
	branches map[string]string // taskID -> branch name, retained after Release for Finalize
}

func newWorktreeCoordinator(rc *models.RunContext, backend Backend, pool WorkspacePool, stacking bool) *worktreeCoordinator {
	return &worktreeCoordinator{
		rc:       rc,
		backend:  backend,
		pool:     pool,
		stacking: stacking,
		handles:  make(map[string]*models.WorkspaceHandle),
		branches: make(map[string]string),
	}
}

func (c *worktreeCoordinator) Initialize(plan *models.Plan) error { return nil }

func (c *worktreeCoordinator) Prepare(task models.Task) (*models.WorkspaceHandle, error) {
	branch := workspaceBranchName(c.rc.BranchPrefix, task.ID)
	baseRef := c.rc.BaseRef
	if c.stacking {
		// In stacked mode each task still branches from the run's common
		// base: per-task dependency ordering is resolved later by
		// StackBuilder's cherry-pick chain, not by branching from a
		// dependency's in-flight branch (which may not exist yet, since
		// tasks with no ordering constraint between them run concurrently).
		baseRef = c.rc.BaseRef
	}
	h, err := c.pool.Acquire(task.ID, baseRef, branch)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.handles[task.ID] = h
	c.branches[task.ID] = h.BranchName
	c.mu.Unlock()
	return h, nil
}

func (c *worktreeCoordinator) Commit(task models.Task, workspace *models.WorkspaceHandle, filesTouched []string) (string, error) {
	hash, err := c.backend.Commit(workspace.AbsolutePath, commitMessage(task), filesTouched)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrCommitError, err)
	}
	return hash, nil
}

func (c *worktreeCoordinator) Release(workspace *models.WorkspaceHandle, keepOnFailure bool) {
	if workspace == nil {
		return
	}
	_ = c.pool.Release(workspace, keepOnFailure)
}

func (c *worktreeCoordinator) Finalize(successfulTaskIDs []string) (*models.StackResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	branches := make([]string, 0, len(successfulTaskIDs))
	for _, id := range successfulTaskIDs {
		if b, ok := c.branches[id]; ok {
			branches = append(branches, b)
		}
	}
	if !c.stacking {
		// worktree-parallel: each task's branch stands alone, no chain to
		// assemble. internal/orchestrator may still hand these branches to
		// StackBuilder on request, but Coordinator itself reports them flat.
		return &models.StackResult{Branches: branches}, nil
	}
	// Stacked mode's actual chain assembly (dependency ordering,
	// cherry-pick, conflict handling) is StackBuilder's job; Coordinator
	// only hands over the candidate branch set here. internal/orchestrator
	// wires a real internal/stack.Builder in front of this result.
	return &models.StackResult{Branches: branches}, nil
}

func (c *worktreeCoordinator) Capabilities() Capabilities {
	return Capabilities{Parallel: true, Stacking: c.stacking, RequiresWorktrees: true}
}
