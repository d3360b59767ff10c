// Package git implements the VcsBackend port of spec.md §4.6 (init,
// createBranch, commit, restack, submit, hasConflicts, abortMerge,
// isAvailable) plus the worktree-level operations internal/worktree needs,
// over the plain git binary. Grounded on the teacher's internal/git/git.go
// (porcelain parsing, command construction), generalized in one respect:
// the teacher's Git type holds a single mutable workDir field it swaps in
// and out of for per-path operations, which is unsafe once multiple
// worktrees are driven concurrently (spec.md §5). Backend instead takes the
// working directory as an explicit parameter on every call.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/taskforge/taskforge/pkg/command"
	"github.com/taskforge/taskforge/pkg/models"
)

// Backend drives the plain git CLI. It holds no per-call mutable state, so
// a single Backend is safe to share across concurrently executing tasks.
type Backend struct {
	exec command.CommandExecutor
}

// New constructs a Backend over the standard os/exec-backed CommandExecutor.
func New() *Backend { return &Backend{exec: command.NewStandardExecutor()} }

// IsAvailable reports whether the git binary is on PATH.
func (b *Backend) IsAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Init performs one-time per-run setup: verifying the repository exists at
// workdir and that trunk resolves to a commit.
func (b *Backend) Init(workdir, trunk string) error {
	if !b.IsAvailable() {
		return &models.BackendUnavailableError{Mode: models.VcsFlat, Detail: "git binary not found on PATH"}
	}
	if _, err := b.run(workdir, "rev-parse", "--show-toplevel"); err != nil {
		return fmt.Errorf("init: %s is not a git repository: %w", workdir, err)
	}
	if trunk != "" {
		if _, err := b.run(workdir, "rev-parse", "--verify", trunk); err != nil {
			return fmt.Errorf("init: trunk ref %q does not resolve: %w", trunk, err)
		}
	}
	return nil
}

// BranchOpts configures CreateBranch.
type BranchOpts struct {
	Base  string // branch or ref to branch from
	Track bool   // set up tracking against Base, where the backend supports it
}

// CreateBranch creates a new branch named name in workdir, rooted at
// opts.Base (falling back to the current HEAD if empty).
func (b *Backend) CreateBranch(workdir, name string, opts BranchOpts) error {
	args := []string{"branch", name}
	if opts.Base != "" {
		args = append(args, opts.Base)
	}
	if _, err := b.run(workdir, args...); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

// CommitOpts configures Commit.
type CommitOpts struct {
	Files []string // paths to stage; empty means stage everything (git add -A)
}

// Commit stages the given files (or everything, if Files is empty) and
// creates a commit in workdir with the given message, returning the new
// commit's hash.
func (b *Backend) Commit(workdir, message string, opts CommitOpts) (string, error) {
	if len(opts.Files) == 0 {
		if _, err := b.run(workdir, "add", "-A"); err != nil {
			return "", fmt.Errorf("stage files: %w", err)
		}
	} else {
		args := append([]string{"add"}, opts.Files...)
		if _, err := b.run(workdir, args...); err != nil {
			return "", fmt.Errorf("stage files: %w", err)
		}
	}
	if _, err := b.run(workdir, "commit", "--allow-empty-message", "-m", message); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	out, err := b.run(workdir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve new commit: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Restack rebases workdir's current branch onto parent.
func (b *Backend) Restack(workdir, parent string) error {
	if _, err := b.run(workdir, "rebase", parent); err != nil {
		return fmt.Errorf("restack onto %s: %w", parent, err)
	}
	return nil
}

// SubmitOpts configures Submit.
type SubmitOpts struct {
	Draft     bool
	AutoMerge bool
}

// Submit is unsupported by the plain-git backend: publishing a reviewable
// unit requires a hosting-specific CLI (gh, glab, a stacking tool), which
// is deliberately out of scope per spec.md §1 ("the VCS backend binaries
// ... are deliberately out of scope"). Callers see a typed
// BackendUnavailableError; internal/stack's Builder ignores it, leaving
// reviewUrls empty, rather than failing the whole finalize.
func (b *Backend) Submit(branches []string, opts SubmitOpts) ([]string, error) {
	return nil, &models.BackendUnavailableError{Mode: models.VcsStacked, Detail: "submit requires a hosting-specific CLI, not wired for the plain git backend"}
}

// HasConflicts reports whether workdir currently has unmerged paths.
func (b *Backend) HasConflicts(workdir string) (bool, error) {
	out, err := b.run(workdir, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return false, fmt.Errorf("check conflicts: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// AbortMerge aborts an in-progress cherry-pick or merge in workdir.
func (b *Backend) AbortMerge(workdir string) error {
	if _, err := b.run(workdir, "cherry-pick", "--abort"); err == nil {
		return nil
	}
	if _, err := b.run(workdir, "merge", "--abort"); err != nil {
		return fmt.Errorf("abort merge: %w", err)
	}
	return nil
}

// CherryPick cherry-picks commit onto workdir's current branch.
func (b *Backend) CherryPick(workdir, commit string) error {
	if _, err := b.run(workdir, "cherry-pick", commit); err != nil {
		return fmt.Errorf("cherry-pick %s: %w", commit, err)
	}
	return nil
}

// ResetHard resets workdir's current branch to ref.
func (b *Backend) ResetHard(workdir, ref string) error {
	if _, err := b.run(workdir, "reset", "--hard", ref); err != nil {
		return fmt.Errorf("reset --hard %s: %w", ref, err)
	}
	return nil
}

// CheckoutNewBranchFrom checks out a new branch at path pointed at baseRef,
// used by StackBuilder when assembling the stack in the main working copy
// rather than through a dedicated worktree.
func (b *Backend) CheckoutNewBranchFrom(workdir, branch, baseRef string) error {
	if _, err := b.run(workdir, "checkout", "-b", branch, baseRef); err != nil {
		return fmt.Errorf("checkout -b %s %s: %w", branch, baseRef, err)
	}
	return nil
}

// --- Worktree-level operations, used by internal/worktree.Pool ---

// AddWorktreeFromBase creates a new worktree at path on a fresh branch,
// rooted at baseRef.
func (b *Backend) AddWorktreeFromBase(repoRoot, path, branch, baseRef string) error {
	if _, err := b.run(repoRoot, "worktree", "add", "-b", branch, path, baseRef); err != nil {
		return fmt.Errorf("add worktree: %w", err)
	}
	return nil
}

// RemoveWorktree removes the worktree at path.
func (b *Backend) RemoveWorktree(repoRoot, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	if _, err := b.run(repoRoot, args...); err != nil {
		return fmt.Errorf("remove worktree: %w", err)
	}
	return nil
}

// DeleteBranch deletes a local branch.
func (b *Backend) DeleteBranch(repoRoot, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := b.run(repoRoot, "branch", flag, branch); err != nil {
		return fmt.Errorf("delete branch %s: %w", branch, err)
	}
	return nil
}

// PruneWorktrees removes worktree bookkeeping for deleted directories.
func (b *Backend) PruneWorktrees(repoRoot string) error {
	if _, err := b.run(repoRoot, "worktree", "prune"); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}
	return nil
}

// ListWorktrees lists all worktrees known to the repository at repoRoot,
// parsing the porcelain format the way the teacher's ListWorktrees does.
func (b *Backend) ListWorktrees(repoRoot string) ([]models.Worktree, error) {
	output, err := b.run(repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	var worktrees []models.Worktree
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "worktree ") {
			continue
		}
		path := strings.TrimPrefix(lines[i], "worktree ")
		var branch, commitHash string
		j := i + 1
		for ; j < len(lines) && !strings.HasPrefix(lines[j], "worktree "); j++ {
			switch {
			case strings.HasPrefix(lines[j], "branch "):
				branch = strings.TrimPrefix(lines[j], "branch ")
				branch = strings.TrimPrefix(branch, "refs/heads/")
			case strings.HasPrefix(lines[j], "HEAD "):
				commitHash = strings.TrimPrefix(lines[j], "HEAD ")
			}
		}
		i = j - 1
		worktrees = append(worktrees, models.Worktree{
			Path:       path,
			Branch:     branch,
			CommitHash: commitHash,
		})
	}
	return worktrees, nil
}

// DiffNameOnly returns the paths that differ between workdir's working
// tree and baseRef — the authoritative "files touched" computation used by
// AgentRunner (never parsing agent-reported output, per spec.md §9).
func (b *Backend) DiffNameOnly(workdir, baseRef string) ([]string, error) {
	out, err := b.run(workdir, "diff", "--name-only", baseRef)
	if err != nil {
		return b.statusPorcelainFallback(workdir)
	}
	return splitLines(out), nil
}

// statusPorcelainFallback mirrors the teacher's detectChangedFiles
// fallback: parse `git status --porcelain` when a diff against baseRef
// isn't possible (e.g. baseRef unreachable from a shallow clone).
func (b *Backend) statusPorcelainFallback(workdir string) ([]string, error) {
	out, err := b.run(workdir, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status fallback: %w", err)
	}
	var files []string
	for _, line := range splitLines(out) {
		if len(line) > 3 {
			files = append(files, strings.TrimSpace(line[3:]))
		}
	}
	return files, nil
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// run executes a git command with workdir as its working directory, via
// pkg/command's CommandExecutor port rather than shelling out directly.
func (b *Backend) run(workdir string, args ...string) (string, error) {
	out, err := b.exec.ExecuteInDirWithOutput(context.Background(), workdir, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}
