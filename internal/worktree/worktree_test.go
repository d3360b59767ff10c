package worktree

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/taskforge/taskforge/pkg/models"
)

// mockGit implements GitInterface with injectable error fields, matching
// the teacher's own worktree_test.go mock style.
type mockGit struct {
	addError        error
	removeError     error
	deleteBranchErr error
	addCalls        []string
}

func (m *mockGit) AddWorktreeFromBase(repoRoot, path, branch, baseRef string) error {
	m.addCalls = append(m.addCalls, branch)
	return m.addError
}

func (m *mockGit) RemoveWorktree(repoRoot, path string, force bool) error {
	return m.removeError
}

func (m *mockGit) DeleteBranch(repoRoot, branch string, force bool) error {
	return m.deleteBranchErr
}

func (m *mockGit) ListWorktrees(repoRoot string) ([]models.Worktree, error) {
	return nil, nil
}

func (m *mockGit) PruneWorktrees(repoRoot string) error { return nil }

func (m *mockGit) HasConflicts(workdir string) (bool, error) { return false, nil }

func TestAcquireSuccess(t *testing.T) {
	g := &mockGit{}
	root := t.TempDir()
	pool := New(g, root, ".taskforge/shadows")

	h, err := pool.Acquire("task-a", "main", "task/task-a")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if h.TaskID != "task-a" || h.BranchName != "task/task-a" {
		t.Errorf("unexpected handle: %+v", h)
	}
	want := filepath.Join(root, ".taskforge/shadows", "task-a")
	if h.AbsolutePath != want {
		t.Errorf("AbsolutePath = %s, want %s", h.AbsolutePath, want)
	}
}

func TestAcquireRetriesOnBranchCollisionThenFails(t *testing.T) {
	g := &mockGit{addError: errors.New("branch exists")}
	pool := New(g, t.TempDir(), ".taskforge/shadows")

	_, err := pool.Acquire("task-a", "main", "task/task-a")
	if err == nil {
		t.Fatal("expected failure after repeated branch collision")
	}
	if len(g.addCalls) != 2 {
		t.Errorf("expected 2 add attempts, got %d: %v", len(g.addCalls), g.addCalls)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	g := &mockGit{}
	pool := New(g, t.TempDir(), ".taskforge/shadows")

	h, err := pool.Acquire("task-a", "main", "task/task-a")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := pool.Release(h, false); err != nil {
		t.Fatalf("first Release() error = %v", err)
	}
	if err := pool.Release(h, false); err != nil {
		t.Fatalf("second Release() should be a no-op, got error = %v", err)
	}
}

func TestReleaseKeepOnFailurePreservesWorktree(t *testing.T) {
	g := &mockGit{}
	pool := New(g, t.TempDir(), ".taskforge/shadows")

	h, err := pool.Acquire("task-a", "main", "task/task-a")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := pool.Release(h, true); err != nil {
		t.Fatalf("Release(keepOnFailure=true) error = %v", err)
	}
	if len(pool.List()) != 0 {
		t.Errorf("expected handle to be forgotten even when kept on disk")
	}
}

func TestListReflectsLiveHandles(t *testing.T) {
	g := &mockGit{}
	pool := New(g, t.TempDir(), ".taskforge/shadows")
	if _, err := pool.Acquire("a", "main", "task/a"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := pool.Acquire("b", "main", "task/b"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if len(pool.List()) != 2 {
		t.Errorf("expected 2 live handles, got %d", len(pool.List()))
	}
}
