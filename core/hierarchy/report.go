package hierarchy

import "github.com/opensdd/osdd-ado/core/workitems"

// Level names the tier of a node in the hierarchy.
type Level string

const (
	LevelFeature Level = "feature"
	LevelPBI     Level = "pbi"
	LevelTask    Level = "task"
)

// PBIOutcome is a created PBI with the subset of its tasks that were created.
type PBIOutcome struct {
	PBI   workitems.CreatedItem   `json:"pbi"`
	Tasks []workitems.CreatedItem `json:"tasks"`
}

// NodeFailure records a node whose write failed. PBIIndex and TaskIndex are
// positions in the input spec; -1 when not applicable.
type NodeFailure struct {
	Level     Level  `json:"level"`
	Title     string `json:"title"`
	PBIIndex  int    `json:"pbi_index"`
	TaskIndex int    `json:"task_index"`
	Message   string `json:"error"`
	Err       error  `json:"-"`
}

// Report reflects exactly what was created remotely during one run.
// A PBI that failed has no PBIOutcome; its failure is listed in Failures.
type Report struct {
	RunID    string                 `json:"run_id"`
	Feature  *workitems.CreatedItem `json:"feature"`
	PBIs     []PBIOutcome           `json:"pbis"`
	Failures []NodeFailure          `json:"failures,omitempty"`
}

// Succeeded reports whether the feature was created.
func (r *Report) Succeeded() bool {
	return r != nil && r.Feature != nil
}

// TaskCount returns the number of tasks created across all PBIs.
func (r *Report) TaskCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, p := range r.PBIs {
		n += len(p.Tasks)
	}
	return n
}

func (r *Report) fail(level Level, title string, pbi, task int, err error) {
	r.Failures = append(r.Failures, NodeFailure{
		Level:     level,
		Title:     title,
		PBIIndex:  pbi,
		TaskIndex: task,
		Message:   err.Error(),
		Err:       err,
	})
}
