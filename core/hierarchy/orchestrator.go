package hierarchy

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensdd/osdd-ado/core/workitems"
)

// Creator creates a single work item. *workitems.Client satisfies it.
type Creator interface {
	Create(ctx context.Context, req workitems.CreateRequest) (*workitems.CreatedItem, error)
}

// Orchestrator creates a Feature → PBI → Task tree, parent first, one call at
// a time. It never retries and never rolls back.
type Orchestrator struct {
	Writer Creator
	Pacer  Pacer
	// FeatureTag, when set, is written to System.Tags of the feature.
	FeatureTag string
}

// NewOrchestrator returns an Orchestrator pacing calls with FixedDelay(delay).
func NewOrchestrator(w Creator, delay time.Duration) *Orchestrator {
	return &Orchestrator{Writer: w, Pacer: FixedDelay(delay)}
}

// Build creates the tree described by spec and reports what was created.
//
// A failed feature ends the run with an empty report. A failed PBI is skipped
// together with all of its tasks. A failed task is left out of its PBI's
// outcome while its siblings are still attempted.
func (o *Orchestrator) Build(ctx context.Context, spec HierarchySpec, d ItemDefaults) *Report {
	report := &Report{RunID: uuid.NewString(), PBIs: []PBIOutcome{}}
	log := slog.With("run", report.RunID)

	log.Info("Creating Feature", "title", spec.Feature.Title)
	feature, err := o.Writer.Create(ctx, workitems.CreateRequest{
		Type:          workitems.TypeFeature,
		Title:         spec.Feature.Title,
		Description:   spec.Feature.Description,
		AssignedTo:    d.AssignedTo,
		AreaPath:      d.AreaPath,
		IterationPath: d.IterationPath,
		Tags:          o.FeatureTag,
	})
	if err != nil {
		log.Error("Failed to create Feature, aborting", "title", spec.Feature.Title, "error", err)
		report.fail(LevelFeature, spec.Feature.Title, -1, -1, err)
		return report
	}
	log.Info("Created Feature", "id", feature.ID)
	report.Feature = feature

	for i, pbiNode := range spec.PBIs {
		log.Info("Creating PBI", "title", pbiNode.Title)
		pbi, err := o.Writer.Create(ctx, workitems.CreateRequest{
			Type:          workitems.TypePBI,
			Title:         pbiNode.Title,
			Description:   pbiNode.Description,
			AssignedTo:    d.AssignedTo,
			AreaPath:      d.AreaPath,
			IterationPath: d.IterationPath,
			ParentURL:     feature.URL,
		})
		if err != nil {
			log.Warn("Skipping tasks for failed PBI", "title", pbiNode.Title, "tasks", len(pbiNode.Tasks), "error", err)
			report.fail(LevelPBI, pbiNode.Title, i, -1, err)
			continue
		}
		log.Info("Created PBI", "id", pbi.ID)

		outcome := PBIOutcome{PBI: *pbi, Tasks: []workitems.CreatedItem{}}
		for j, taskNode := range pbiNode.Tasks {
			o.wait(ctx)
			task, err := o.Writer.Create(ctx, workitems.CreateRequest{
				Type:          workitems.TypeTask,
				Title:         taskNode.Title,
				AssignedTo:    d.AssignedTo,
				AreaPath:      d.AreaPath,
				IterationPath: d.IterationPath,
				Effort:        taskNode.Effort,
				ParentURL:     pbi.URL,
			})
			if err != nil {
				log.Warn("Failed to create Task", "title", taskNode.Title, "pbi", pbi.ID, "error", err)
				report.fail(LevelTask, taskNode.Title, i, j, err)
				continue
			}
			log.Info("Created Task", "id", task.ID, "effort", effortAttr(taskNode.Effort), "title", taskNode.Title)
			outcome.Tasks = append(outcome.Tasks, *task)
		}

		report.PBIs = append(report.PBIs, outcome)
		o.wait(ctx)
	}

	log.Info("Hierarchy created", "feature", feature.ID, "pbis", len(report.PBIs),
		"tasks", report.TaskCount(), "failures", len(report.Failures))
	return report
}

func (o *Orchestrator) wait(ctx context.Context) {
	if o.Pacer != nil {
		o.Pacer.Wait(ctx)
	}
}

func effortAttr(e *int) any {
	if e == nil {
		return "?"
	}
	return *e
}
