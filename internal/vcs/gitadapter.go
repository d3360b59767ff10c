package vcs

import "github.com/taskforge/taskforge/internal/git"

// GitAdapter adapts internal/git.Backend's concrete option structs to the
// vcs.Backend port, so this package's Coordinator implementations never
// import internal/git directly and stay testable against a fake Backend.
type GitAdapter struct {
	Git *git.Backend
}

func (a GitAdapter) CreateBranch(workdir, name string, opts BranchOpts) error {
	return a.Git.CreateBranch(workdir, name, git.BranchOpts{Base: opts.Base})
}

func (a GitAdapter) Commit(workdir, message string, files []string) (string, error) {
	return a.Git.Commit(workdir, message, git.CommitOpts{Files: files})
}

func (a GitAdapter) DiffNameOnly(workdir, baseRef string) ([]string, error) {
	return a.Git.DiffNameOnly(workdir, baseRef)
}

func (a GitAdapter) AddWorktreeFromBase(repoRoot, path, branch, baseRef string) error {
	return a.Git.AddWorktreeFromBase(repoRoot, path, branch, baseRef)
}

func (a GitAdapter) RemoveWorktree(repoRoot, path string, force bool) error {
	return a.Git.RemoveWorktree(repoRoot, path, force)
}

func (a GitAdapter) DeleteBranch(repoRoot, branch string, force bool) error {
	return a.Git.DeleteBranch(repoRoot, branch, force)
}

func (a GitAdapter) HasConflicts(workdir string) (bool, error) {
	return a.Git.HasConflicts(workdir)
}
