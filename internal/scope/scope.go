// Package scope implements FileScopeGuard (spec.md §4.5): pure,
// side-effect-free validation that a task's actual file changes stayed
// within its declared scope, checked against the declared scopes of every
// other task in the plan. Grounded on the validation style of the
// teacher's internal/claude/dependency.go (graph-shaped, no I/O).
package scope

import (
	"strings"

	"github.com/taskforge/taskforge/internal/dag"
	"github.com/taskforge/taskforge/pkg/models"
)

// Guard enforces file-scope rules over a fixed dependency Graph.
type Guard struct {
	graph *dag.Graph
}

// New builds a Guard bound to the given dependency graph.
func New(graph *dag.Graph) *Guard {
	return &Guard{graph: graph}
}

// Check validates actualFiles (the authoritative, diff-derived touched-file
// list for taskID — never agent-reported, per spec.md's design note)
// against taskID's declared scope and every other task's declared scope.
func (g *Guard) Check(taskID string, actualFiles []string, mode models.ValidationMode) models.ValidationReport {
	report := models.ValidationReport{OK: true}

	if len(actualFiles) == 0 {
		// no_changes is always a violation (detects agent hallucinations),
		// per spec.md §4.5 and the Open Question decision in DESIGN.md.
		report.OK = false
		report.Violations = append(report.Violations, models.Violation{
			Kind:   models.ViolationNoChanges,
			Detail: "agent reported completion but no files changed in the workspace",
		})
		return report
	}

	closure := g.dependencyClosure(taskID)
	own := g.graph.Task(taskID)

	for _, f := range actualFiles {
		switch {
		case matchesScope(own.Files, f):
			// allowed: within the task's own declared scope.
		default:
			if ownerID, ok := g.findForbiddenOwner(taskID, closure, f); ok {
				v := models.Violation{
					Kind:    models.ViolationOwnedByOtherTask,
					File:    f,
					OwnerID: ownerID,
					Detail:  "file belongs to another task's declared scope",
				}
				report.OK = false
				report.Violations = append(report.Violations, v)
				continue
			}
			v := models.Violation{
				Kind:   models.ViolationOutOfScope,
				File:   f,
				Detail: "file is outside the task's declared scope and not owned by any forbidden task",
			}
			if mode == models.ValidationStrict {
				report.OK = false
				report.Violations = append(report.Violations, v)
			} else {
				report.Warnings = append(report.Warnings, v)
			}
		}
	}
	return report
}

// findForbiddenOwner reports the id of another task (not taskID, not in
// taskID's dependency closure) whose declared scope contains f, if any.
// Tasks in the dependency closure are readable but not writable: writing to
// one of their declared files is reported as out_of_scope, not
// owned_by_other_task, per spec.md §4.5.
func (g *Guard) findForbiddenOwner(taskID string, closure map[string]bool, f string) (string, bool) {
	for _, id := range g.graph.OrderedIDs() {
		if id == taskID || closure[id] {
			continue
		}
		other := g.graph.Task(id)
		if matchesScope(other.Files, f) {
			return id, true
		}
	}
	return "", false
}

// dependencyClosure returns the set of task ids transitively reachable via
// Dependencies edges from taskID (taskID's ancestors in the DAG).
func (g *Guard) dependencyClosure(taskID string) map[string]bool {
	closure := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		for _, dep := range g.graph.Dependencies(id) {
			if !closure[dep] {
				closure[dep] = true
				visit(dep)
			}
		}
	}
	visit(taskID)
	return closure
}

// matchesScope reports whether f matches any entry in patterns, honoring
// exact-path vs. directory-prefix ("/"-suffixed) semantics.
func matchesScope(patterns []string, f string) bool {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(f, p) {
				return true
			}
		} else if p == f {
			return true
		}
	}
	return false
}
