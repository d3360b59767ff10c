package models

// Complexity is an advisory size classification for a Task, used by
// StackBuilder's complexity-first ordering strategy. It is never enforced
// by the core.
type Complexity string

const (
	ComplexityXS Complexity = "XS"
	ComplexityS  Complexity = "S"
	ComplexityM  Complexity = "M"
	ComplexityL  Complexity = "L"
	ComplexityXL Complexity = "XL"
)

// complexityRank gives complexity-first ordering a total order to sort by.
var complexityRank = map[Complexity]int{
	ComplexityXS: 0,
	ComplexityS:  1,
	ComplexityM:  2,
	ComplexityL:  3,
	ComplexityXL: 4,
}

// Rank returns the ordinal position of c among the five complexity tiers,
// or -1 if c is not one of them.
func (c Complexity) Rank() int {
	if r, ok := complexityRank[c]; ok {
		return r
	}
	return -1
}

// Valid reports whether c is one of the five recognized complexity tiers.
func (c Complexity) Valid() bool {
	_, ok := complexityRank[c]
	return ok
}

// Task is the atomic unit of work in a Plan.
type Task struct {
	ID                 string     `json:"id" yaml:"id"`
	Name               string     `json:"name" yaml:"name"`
	Description        string     `json:"description" yaml:"description"`
	Complexity         Complexity `json:"complexity" yaml:"complexity"`
	Files              []string   `json:"files" yaml:"files"`
	Dependencies       []string   `json:"dependencies" yaml:"dependencies"`
	AcceptanceCriteria []string   `json:"acceptanceCriteria" yaml:"acceptanceCriteria"`
}

// Plan is the validated input to the Orchestrator: a named set of Tasks
// forming a DAG over Dependencies.
type Plan struct {
	Name     string `json:"name" yaml:"name"`
	Strategy string `json:"strategy" yaml:"strategy"`
	Tasks    []Task `json:"tasks" yaml:"tasks"`
}

// TaskByID returns the task with the given id, or false if no task has it.
func (p *Plan) TaskByID(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// IndexOf returns the plan-declaration-order index of the task with the
// given id, or -1 if not found. Used as the tie-breaker for
// dependency-order stacking and for dispatch tie-breaking.
func (p *Plan) IndexOf(id string) int {
	for i, t := range p.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ExactScope and DirScope split a task's declared Files into exact-path
// entries and directory-prefix entries (those ending in "/"), per the
// scope semantics of FileScopeGuard.
func (t Task) ExactScope() []string {
	var out []string
	for _, f := range t.Files {
		if !isDirPrefix(f) {
			out = append(out, f)
		}
	}
	return out
}

func (t Task) DirScope() []string {
	var out []string
	for _, f := range t.Files {
		if isDirPrefix(f) {
			out = append(out, f)
		}
	}
	return out
}

func isDirPrefix(pattern string) bool {
	return len(pattern) > 0 && pattern[len(pattern)-1] == '/'
}
