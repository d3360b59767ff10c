// Package dag builds and validates the dependency graph over a Plan's
// tasks: cycle detection, topological ordering, and ready/leaf discovery.
// Grounded on the teacher's internal/claude/dependency.go, generalized from
// a mutable task queue to a graph over an immutable models.Plan.
package dag

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/taskforge/taskforge/pkg/models"
)

// Graph is the validated dependency graph over a Plan's tasks.
type Graph struct {
	plan  *models.Plan
	tasks map[string]models.Task
	// dependents[id] lists the tasks that declare id as a dependency.
	dependents map[string][]string
}

// Build validates the plan (§7: PlanInvalid on missing dep, cycle,
// duplicate id, or unknown complexity) and constructs its dependency graph.
func Build(plan *models.Plan) (*Graph, error) {
	tasks := make(map[string]models.Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if t.ID == "" {
			return nil, &models.PlanInvalidError{Reason: "task has empty id"}
		}
		if _, dup := tasks[t.ID]; dup {
			return nil, &models.PlanInvalidError{Reason: "duplicate task id", TaskID: t.ID}
		}
		if !t.Complexity.Valid() {
			return nil, &models.PlanInvalidError{Reason: "unknown complexity " + string(t.Complexity), TaskID: t.ID}
		}
		tasks[t.ID] = t
	}

	dependents := make(map[string][]string, len(tasks))
	for _, t := range plan.Tasks {
		for _, dep := range t.Dependencies {
			if _, ok := tasks[dep]; !ok {
				return nil, &models.PlanInvalidError{Reason: "missing dependency " + dep, TaskID: t.ID}
			}
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	g := &Graph{plan: plan, tasks: tasks, dependents: dependents}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// checkAcyclic runs a DFS cycle check over the dependency relation, in the
// style of dependency.go's hasCycle (visited + recursion-stack sets).
func (g *Graph) checkAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.tasks))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range g.tasks[id].Dependencies {
			switch color[dep] {
			case gray:
				return &models.PlanInvalidError{Reason: "cycle detected", TaskID: dep}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	// Stable iteration order for deterministic error messages.
	ids := g.OrderedIDs()
	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return errors.Wrap(err, "dag validation")
			}
		}
	}
	return nil
}

// OrderedIDs returns task ids in plan declaration order.
func (g *Graph) OrderedIDs() []string {
	ids := make([]string, len(g.plan.Tasks))
	for i, t := range g.plan.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Task returns the task with the given id.
func (g *Graph) Task(id string) models.Task {
	return g.tasks[id]
}

// Dependencies returns the declared dependency ids of a task.
func (g *Graph) Dependencies(id string) []string {
	return g.tasks[id].Dependencies
}

// Dependents returns the ids of tasks that declare id as a dependency.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// Leaves returns task ids with no dependencies, in plan declaration order.
func (g *Graph) Leaves() []string {
	var out []string
	for _, id := range g.OrderedIDs() {
		if len(g.tasks[id].Dependencies) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// DependentsRemaining counts, among id's direct dependents, how many are
// not yet in a terminal state according to the given state map. Used by
// the scheduler's "fewest dependents remaining" dispatch tie-break.
func (g *Graph) DependentsRemaining(id string, states map[string]models.TaskState) int {
	n := 0
	for _, d := range g.dependents[id] {
		if !states[d].IsTerminal() {
			n++
		}
	}
	return n
}

// TopologicalOrder computes a topological order over all tasks using
// Kahn's algorithm, breaking ties by plan declaration index — the same
// shape as dependency.go's GetTopologicalOrder, generalized to operate on
// an immutable Graph rather than a live task-status map.
func (g *Graph) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.tasks))
	for id := range g.tasks {
		inDegree[id] = len(g.tasks[id].Dependencies)
	}

	indexOf := make(map[string]int, len(g.tasks))
	for i, id := range g.OrderedIDs() {
		indexOf[id] = i
	}

	var queue []string
	for _, id := range g.OrderedIDs() {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return indexOf[queue[i]] < indexOf[queue[j]] })

	var result []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		var next []string
		for _, dep := range g.dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				next = append(next, dep)
			}
		}
		sort.Slice(next, func(i, j int) bool { return indexOf[next[i]] < indexOf[next[j]] })
		queue = append(queue, next...)
		sort.Slice(queue, func(i, j int) bool { return indexOf[queue[i]] < indexOf[queue[j]] })
	}

	if len(result) != len(g.tasks) {
		return nil, &models.PlanInvalidError{Reason: "cycle detected during topological sort"}
	}
	return result, nil
}

// Index returns the plan declaration index of id.
func (g *Graph) Index(id string) int {
	return g.plan.IndexOf(id)
}
