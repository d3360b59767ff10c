package models

// ViolationKind classifies a FileScopeGuard finding.
type ViolationKind string

const (
	ViolationOutOfScope       ViolationKind = "out_of_scope"
	ViolationOwnedByOtherTask ViolationKind = "owned_by_other_task"
	ViolationNoChanges        ViolationKind = "no_changes"
)

// Violation is a single finding from FileScopeGuard.Check.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	File    string        `json:"file,omitempty"`
	OwnerID string        `json:"ownerId,omitempty"`
	Detail  string        `json:"detail,omitempty"`
}

// ValidationReport is the result of FileScopeGuard.Check.
type ValidationReport struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations,omitempty"`
	Warnings   []Violation `json:"warnings,omitempty"`
}
