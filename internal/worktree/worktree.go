// Package worktree implements WorktreePool (spec.md §4.4): acquire/release
// of isolated per-task git worktrees rooted under a shadow directory.
// Grounded on the teacher's internal/worktree/worktree.go, generalized from
// a single-worktree-at-a-time Manager (keyed by branch, driven by the CLI
// interactively) into a pool keyed by task id that acquire/release
// serialize per-path, as spec.md §4.4 requires.
package worktree

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/taskforge/taskforge/pkg/filesystem"
	"github.com/taskforge/taskforge/pkg/models"
	"github.com/taskforge/taskforge/pkg/repository"
)

// GitInterface is the subset of VCS operations WorktreePool needs.
type GitInterface interface {
	AddWorktreeFromBase(repoRoot, path, branch, baseRef string) error
	RemoveWorktree(repoRoot, path string, force bool) error
	DeleteBranch(repoRoot, branch string, force bool) error
	ListWorktrees(repoRoot string) ([]models.Worktree, error)
	PruneWorktrees(repoRoot string) error
	HasConflicts(workdir string) (bool, error)
}

// Pool manages isolated per-task workspaces under a shadow root directory.
type Pool struct {
	git        GitInterface
	fs         filesystem.FileSystemInterface
	repoRoot   string
	shadowRoot string

	mu      sync.Mutex                                                     // guards handles and per-path locks
	handles *repository.InMemoryRepository[models.WorkspaceHandle, string] // taskID -> handle
	locks   map[string]*sync.Mutex                                        // path -> serialization lock
}

// New builds a Pool rooted at shadowPath, joined onto repoRoot when relative.
func New(g GitInterface, repoRoot, shadowPath string) *Pool {
	shadowRoot := shadowPath
	if !filepath.IsAbs(shadowRoot) {
		shadowRoot = filepath.Join(repoRoot, shadowPath)
	}
	return &Pool{
		git:        g,
		fs:         filesystem.NewStandardFileSystem(),
		repoRoot:   repoRoot,
		shadowRoot: shadowRoot,
		handles: repository.NewInMemoryRepository(
			func(h *models.WorkspaceHandle) string { return h.TaskID },
			func() string { return "" }, // taskID is always assigned by Acquire, never generated
			func(h *models.WorkspaceHandle, id string) { h.TaskID = id },
		),
		locks: make(map[string]*sync.Mutex),
	}
}

// ShadowRoot returns the directory under which per-task worktrees live.
func (p *Pool) ShadowRoot() string { return p.shadowRoot }

// Acquire creates a new workspace for taskID, checked out at baseRef on a
// fresh branch named branchName. If branchName collides with an existing
// worktree branch, a numeric disambiguator is appended and creation is
// retried once; a second collision fails per spec.md §4.4.
func (p *Pool) Acquire(taskID, baseRef, branchName string) (*models.WorkspaceHandle, error) {
	path := filepath.Join(p.shadowRoot, taskID)
	pathLock := p.lockFor(path)
	pathLock.Lock()
	defer pathLock.Unlock()

	if err := p.fs.MkdirAll(p.shadowRoot, 0o755); err != nil {
		return nil, &models.WorkspaceErrorDetail{TaskID: taskID, Op: "acquire", Cause: fmt.Errorf("create shadow root: %w", err)}
	}

	branch := branchName
	if err := p.git.AddWorktreeFromBase(p.repoRoot, path, branch, baseRef); err != nil {
		branch = branchName + "-2"
		if err2 := p.git.AddWorktreeFromBase(p.repoRoot, path, branch, baseRef); err2 != nil {
			return nil, &models.WorkspaceErrorDetail{TaskID: taskID, Op: "acquire", Cause: fmt.Errorf("branch name collision on %q and %q: %w", branchName, branch, err2)}
		}
	}

	handle := &models.WorkspaceHandle{
		TaskID:       taskID,
		AbsolutePath: path,
		BranchName:   branch,
		BaseRef:      baseRef,
		CreatedAt:    time.Now(),
	}

	p.mu.Lock()
	_ = p.handles.Save(handle)
	p.mu.Unlock()

	return handle, nil
}

// Release removes the workspace directory and, if its branch carries no
// committed work beyond baseRef, deletes the branch. keepOnFailure
// preserves both the directory and branch for debugging. Calling Release
// twice on the same handle is a no-op the second time (spec.md §8
// idempotence property, §3 invariant 8).
func (p *Pool) Release(handle *models.WorkspaceHandle, keepOnFailure bool) error {
	if handle == nil {
		return nil
	}
	pathLock := p.lockFor(handle.AbsolutePath)
	pathLock.Lock()
	defer pathLock.Unlock()

	p.mu.Lock()
	current, err := p.handles.Find(handle.TaskID)
	alreadyReleased := err != nil || current != handle
	p.mu.Unlock()
	if alreadyReleased {
		return nil
	}

	if keepOnFailure {
		p.forget(handle.TaskID)
		return nil
	}

	if err := p.git.RemoveWorktree(p.repoRoot, handle.AbsolutePath, true); err != nil {
		// Removal failure is logged by the caller but does not fail the
		// run (spec.md §4.4); still forget the handle so a second
		// Release call is a safe no-op.
		p.forget(handle.TaskID)
		return fmt.Errorf("remove worktree %s: %w", handle.AbsolutePath, err)
	}
	if err := p.git.DeleteBranch(p.repoRoot, handle.BranchName, false); err != nil {
		p.forget(handle.TaskID)
		return fmt.Errorf("delete branch %s: %w", handle.BranchName, err)
	}
	p.forget(handle.TaskID)
	return nil
}

func (p *Pool) forget(taskID string) {
	p.mu.Lock()
	_ = p.handles.Delete(taskID) // no-op if already forgotten
	p.mu.Unlock()
}

// List returns the currently live workspace handles.
func (p *Pool) List() []models.WorkspaceHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	all, _ := p.handles.FindAll()
	return all
}

// ReapOrphans does a best-effort cleanup of shadow root directory entries
// that have no corresponding live handle, then prunes git's worktree
// bookkeeping. Called on shutdown per spec.md §5.
func (p *Pool) ReapOrphans() {
	entries, err := p.fs.ReadDir(p.shadowRoot)
	if err != nil {
		return
	}
	p.mu.Lock()
	all, _ := p.handles.FindAll()
	p.mu.Unlock()
	live := make(map[string]bool, len(all))
	for _, h := range all {
		live[h.TaskID] = true
	}

	for _, e := range entries {
		if !e.IsDir() || live[e.Name()] {
			continue
		}
		_ = p.git.RemoveWorktree(p.repoRoot, filepath.Join(p.shadowRoot, e.Name()), true)
	}
	_ = p.git.PruneWorktrees(p.repoRoot)
}

// lockFor returns the serialization lock for a given workspace path,
// creating it if necessary.
func (p *Pool) lockFor(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[path]
	if !ok {
		l = &sync.Mutex{}
		p.locks[path] = l
	}
	return l
}
