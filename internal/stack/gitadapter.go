package stack

import "github.com/taskforge/taskforge/internal/git"

// GitAdapter adapts internal/git.Backend's concrete SubmitOpts to the
// stack.Backend port, keeping this package's Assemble logic testable
// against a fake Backend.
type GitAdapter struct {
	Git *git.Backend
}

func (a GitAdapter) CheckoutNewBranchFrom(workdir, branch, baseRef string) error {
	return a.Git.CheckoutNewBranchFrom(workdir, branch, baseRef)
}

func (a GitAdapter) CherryPick(workdir, commit string) error {
	return a.Git.CherryPick(workdir, commit)
}

func (a GitAdapter) HasConflicts(workdir string) (bool, error) {
	return a.Git.HasConflicts(workdir)
}

func (a GitAdapter) AbortMerge(workdir string) error {
	return a.Git.AbortMerge(workdir)
}

func (a GitAdapter) ResetHard(workdir, ref string) error {
	return a.Git.ResetHard(workdir, ref)
}

func (a GitAdapter) Restack(workdir, parent string) error {
	return a.Git.Restack(workdir, parent)
}

func (a GitAdapter) Submit(branches []string, opts SubmitOpts) ([]string, error) {
	return a.Git.Submit(branches, git.SubmitOpts{Draft: opts.Draft, AutoMerge: opts.AutoMerge})
}
