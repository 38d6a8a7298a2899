package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/opensdd/osdd-ado/core/workitems"
)

// ErrFeatureNotCreated is returned by Service.Create when the root failed.
var ErrFeatureNotCreated = errors.New("failed to create feature")

// Store is the work item surface the Service needs. *workitems.Client satisfies it.
type Store interface {
	Creator
	Get(ctx context.Context, id int) (*workitems.WorkItem, error)
	Update(ctx context.Context, id int, o workitems.FieldOverrides) error
	Delete(ctx context.Context, id int) error
	ListFeatures(ctx context.Context, q workitems.FeatureQuery) ([]workitems.WorkItem, error)
}

// SingleRequest describes one manually created item. ParentID, when non-zero,
// is resolved to the parent's location reference before creation.
type SingleRequest struct {
	Type        string
	Title       string
	Description string
	ItemDefaults
	Effort   *int
	ParentID int
}

// Service exposes the operations offered to the CLI.
type Service struct {
	Items        Store
	Orchestrator *Orchestrator
	// WebBase is "{org_url}/{project}", used to build browser links.
	WebBase string
}

// NewService wires a Service whose orchestrator writes through items.
func NewService(items Store, orch *Orchestrator, webBase string) *Service {
	if orch == nil {
		orch = NewOrchestrator(items, DefaultDelay)
	}
	if orch.Writer == nil {
		orch.Writer = items
	}
	return &Service{Items: items, Orchestrator: orch, WebBase: strings.TrimRight(webBase, "/")}
}

// Create builds the whole hierarchy. The report is always returned; the error
// is ErrFeatureNotCreated when nothing could be created.
func (s *Service) Create(ctx context.Context, spec HierarchySpec, d ItemDefaults) (*Report, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	report := s.Orchestrator.Build(ctx, spec, d)
	if !report.Succeeded() {
		if len(report.Failures) > 0 {
			return report, fmt.Errorf("%w: %w", ErrFeatureNotCreated, report.Failures[0].Err)
		}
		return report, ErrFeatureNotCreated
	}
	return report, nil
}

// CreateSingle creates one item. A parent that cannot be resolved is logged
// and the item is created without a parent.
func (s *Service) CreateSingle(ctx context.Context, req SingleRequest) (*workitems.CreatedItem, error) {
	var parentURL string
	if req.ParentID > 0 {
		parent, err := s.Items.Get(ctx, req.ParentID)
		switch {
		case err != nil:
			slog.Warn("Parent not found, item will be created without parent", "parent", req.ParentID, "error", err)
		default:
			slog.Info("Parent found", "parent", parent.ID, "title", parent.Title)
			parentURL = parent.URL
		}
	}

	return s.Items.Create(ctx, workitems.CreateRequest{
		Type:          req.Type,
		Title:         req.Title,
		Description:   req.Description,
		AssignedTo:    req.AssignedTo,
		AreaPath:      req.AreaPath,
		IterationPath: req.IterationPath,
		Effort:        req.Effort,
		ParentURL:     parentURL,
	})
}

// Update applies field overrides to an existing item.
func (s *Service) Update(ctx context.Context, id int, o workitems.FieldOverrides) error {
	if err := s.Items.Update(ctx, id, o); err != nil {
		return err
	}
	slog.Info("Work item updated", "id", id)
	return nil
}

// Delete removes each id in turn. Every id appears in the result; a nil value
// means the delete succeeded.
func (s *Service) Delete(ctx context.Context, ids []int) map[int]error {
	results := make(map[int]error, len(ids))
	for _, id := range ids {
		err := s.Items.Delete(ctx, id)
		if err != nil {
			slog.Warn("Failed to delete work item", "id", id, "error", err)
		} else {
			slog.Info("Deleted work item", "id", id)
		}
		results[id] = err
	}
	return results
}

// ListFeatures returns features matching q, newest first.
func (s *Service) ListFeatures(ctx context.Context, q workitems.FeatureQuery) ([]workitems.WorkItem, error) {
	return s.Items.ListFeatures(ctx, q)
}

// WebURL is the browser link for a work item.
func (s *Service) WebURL(id int) string {
	return s.WebBase + "/_workitems/edit/" + strconv.Itoa(id)
}
