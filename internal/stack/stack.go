// Package stack implements StackBuilder (spec.md §4.7): assembling the
// commits of completed tasks into an ordered chain of branches that
// reflects the dependency partial order, handling cherry-pick conflicts per
// the run's configured policy. Grounded on the ordering/tie-break shape of
// internal/dag.Graph.TopologicalOrder, generalized to operate over an
// arbitrary subset of tasks (only those that actually completed) with a
// pluggable tie-break per stacking strategy.
package stack

import (
	"fmt"
	"sort"

	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/pkg/models"
)

// Backend is the subset of VCS operations StackBuilder needs to assemble a
// chain of branches from independently-committed worktree branches.
type Backend interface {
	CheckoutNewBranchFrom(workdir, branch, baseRef string) error
	CherryPick(workdir, commit string) error
	HasConflicts(workdir string) (bool, error)
	AbortMerge(workdir string) error
	ResetHard(workdir, ref string) error
	Restack(workdir, parent string) error
	Submit(branches []string, opts SubmitOpts) ([]string, error)
}

// SubmitOpts mirrors internal/git.SubmitOpts, kept local so this package
// doesn't import internal/git directly.
type SubmitOpts struct {
	Draft     bool
	AutoMerge bool
}

// TaskCommit is one completed task's {task id, commit} pair, the input to
// Assemble per spec.md §4.7.
type TaskCommit struct {
	TaskID string
	Commit string
}

// Builder assembles a stack of branches over a single assembly workdir
// (the main working copy; worktree commits are reachable from any clone of
// the same repository via cherry-pick).
type Builder struct {
	backend Backend
	workdir string
}

// New builds a Builder that performs all branch-chain assembly in workdir.
func New(backend Backend, workdir string) *Builder {
	return &Builder{backend: backend, workdir: workdir}
}

// Assemble builds the ordered branch chain for the given completed
// {task, commit} pairs, per spec.md §4.7's algorithm.
func (b *Builder) Assemble(graph *dag.Graph, commits []TaskCommit, rc *models.RunContext) (*models.StackResult, error) {
	byID := make(map[string]string, len(commits))
	ids := make([]string, 0, len(commits))
	for _, tc := range commits {
		byID[tc.TaskID] = tc.Commit
		ids = append(ids, tc.TaskID)
	}

	order, err := orderedSubset(graph, ids, rc.StackingStrategy)
	if err != nil {
		return nil, fmt.Errorf("stack: %w", err)
	}

	result := &models.StackResult{}
	prevBranch := rc.BaseRef

	for _, id := range order {
		branch := rc.BranchPrefix + "/" + id
		if rc.BranchPrefix == "" {
			branch = id
		}
		if err := b.backend.CheckoutNewBranchFrom(b.workdir, branch, prevBranch); err != nil {
			return result, fmt.Errorf("%w: checkout %s from %s: %v", models.ErrStackConflict, branch, prevBranch, err)
		}

		if err := b.backend.CherryPick(b.workdir, byID[id]); err != nil {
			conflicted, checkErr := b.backend.HasConflicts(b.workdir)
			if checkErr != nil {
				conflicted = true
			}
			if !conflicted {
				return result, fmt.Errorf("%w: cherry-pick %s onto %s: %v", models.ErrStackConflict, byID[id], branch, err)
			}

			conflict := models.StackConflict{TaskID: id, Detail: err.Error()}
			switch rc.ConflictPolicy {
			case models.ConflictFail:
				_ = b.backend.AbortMerge(b.workdir)
				return nil, fmt.Errorf("%w: %s", models.ErrStackConflict, conflict.Detail)
			case models.ConflictManual: // abort, record the conflict, and stop building the chain
				_ = b.backend.AbortMerge(b.workdir)
				result.Conflicts = append(result.Conflicts, conflict)
				return result, nil
			default: // auto: abort and skip this task, keep building the rest of the chain
				_ = b.backend.AbortMerge(b.workdir)
				result.Conflicts = append(result.Conflicts, conflict)
				continue
			}
		}

		result.Branches = append(result.Branches, branch)
		prevBranch = branch
	}

	if len(result.Branches) > 0 {
		_ = b.backend.Restack(b.workdir, rc.BaseRef)
	}

	if rc.Submit {
		urls, err := b.backend.Submit(result.Branches, SubmitOpts{Draft: rc.Draft, AutoMerge: rc.AutoMerge})
		if err != nil {
			// A backend that cannot submit (e.g. plain git with no hosting
			// CLI) does not fail the whole finalize; the branches still
			// exist locally and reviewUrls is simply empty.
		} else {
			result.ReviewURLs = urls
		}
	}

	return result, nil
}

// orderedSubset computes a topological order restricted to ids, breaking
// ties per strategy, using Kahn's algorithm the same way
// dag.Graph.TopologicalOrder does but over an arbitrary subset.
func orderedSubset(graph *dag.Graph, ids []string, strategy models.StackingStrategy) ([]string, error) {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		n := 0
		for _, dep := range graph.Dependencies(id) {
			if idSet[dep] {
				n++
			}
		}
		inDegree[id] = n
	}

	less := tieBreaker(graph, strategy)

	var ready []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })

	var order []string
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var next []string
		for _, dep := range graph.Dependents(id) {
			if !idSet[dep] {
				continue
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				next = append(next, dep)
			}
		}
		sort.Slice(next, func(i, j int) bool { return less(next[i], next[j]) })
		ready = append(ready, next...)
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
	}

	if len(order) != len(ids) {
		return nil, fmt.Errorf("cannot order stack: dependency among completed tasks not satisfiable (missing a completed ancestor)")
	}
	return order, nil
}

// tieBreaker returns the comparator used to break ties among
// simultaneously-ready tasks, one per spec.md §4.7 stacking strategy.
func tieBreaker(graph *dag.Graph, strategy models.StackingStrategy) func(a, b string) bool {
	switch strategy {
	case models.StackComplexityFirst:
		return func(a, b string) bool {
			ra, rb := graph.Task(a).Complexity.Rank(), graph.Task(b).Complexity.Rank()
			if ra != rb {
				return ra < rb
			}
			return graph.Index(a) < graph.Index(b)
		}
	case models.StackFileImpact:
		return func(a, b string) bool {
			fa, fb := len(graph.Task(a).Files), len(graph.Task(b).Files)
			if fa != fb {
				return fa < fb
			}
			return graph.Index(a) < graph.Index(b)
		}
	default: // dependency-order
		return func(a, b string) bool { return graph.Index(a) < graph.Index(b) }
	}
}
