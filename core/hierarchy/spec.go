package hierarchy

import (
	"fmt"
	"strings"
)

// FeatureNode is the root of a plan.
type FeatureNode struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TaskNode is a leaf of the plan. Effort is an estimate in days.
type TaskNode struct {
	Title  string `json:"title"`
	Effort *int   `json:"effort,omitempty"`
}

// PBINode is a product backlog item and its ordered tasks.
type PBINode struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Tasks       []TaskNode `json:"tasks,omitempty"`
}

// HierarchySpec is one Feature with its ordered PBIs. It is read-only once
// handed to an Orchestrator.
type HierarchySpec struct {
	Feature FeatureNode `json:"feature"`
	PBIs    []PBINode   `json:"pbis"`
}

// Validate reports whether the plan can be built at all.
func (h *HierarchySpec) Validate() error {
	if h == nil {
		return fmt.Errorf("hierarchy cannot be nil")
	}
	if strings.TrimSpace(h.Feature.Title) == "" {
		return fmt.Errorf("feature title cannot be empty")
	}
	return nil
}

// TaskCount returns the number of tasks across all PBIs.
func (h *HierarchySpec) TaskCount() int {
	n := 0
	for _, p := range h.PBIs {
		n += len(p.Tasks)
	}
	return n
}

// ItemDefaults are applied to every item created in one run.
type ItemDefaults struct {
	AssignedTo    string `json:"assigned_to,omitempty"`
	AreaPath      string `json:"area_path,omitempty"`
	IterationPath string `json:"iteration_path,omitempty"`
}

// Or fills every empty field of d from fallback.
func (d ItemDefaults) Or(fallback ItemDefaults) ItemDefaults {
	if d.AssignedTo == "" {
		d.AssignedTo = fallback.AssignedTo
	}
	if d.AreaPath == "" {
		d.AreaPath = fallback.AreaPath
	}
	if d.IterationPath == "" {
		d.IterationPath = fallback.IterationPath
	}
	return d
}
