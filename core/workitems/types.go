package workitems

import (
	"errors"
	"fmt"
)

// Work item types of the Feature → Product Backlog Item → Task hierarchy.
const (
	TypeFeature = "Feature"
	TypePBI     = "Product Backlog Item"
	TypeTask    = "Task"
)

// Field reference names written by this package.
const (
	FieldTitle         = "System.Title"
	FieldDescription   = "System.Description"
	FieldAssignedTo    = "System.AssignedTo"
	FieldAreaPath      = "System.AreaPath"
	FieldIterationPath = "System.IterationPath"
	FieldState         = "System.State"
	FieldTags          = "System.Tags"
	FieldWorkItemType  = "System.WorkItemType"
	FieldCreatedDate   = "System.CreatedDate"
	FieldEffort        = "Microsoft.VSTS.Scheduling.Effort"
)

// RelationHierarchyReverse links a child to its parent.
const RelationHierarchyReverse = "System.LinkTypes.Hierarchy-Reverse"

// maxFailureBody bounds the diagnostic body kept on a Failure.
const maxFailureBody = 200

var (
	// ErrEmptyTitle is returned when a create request has no title.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrNotFound is returned when a work item id does not resolve.
	ErrNotFound = errors.New("work item not found")

	// ErrNoChanges is returned by Update when no override is set.
	ErrNoChanges = errors.New("no fields to update")
)

// CreateRequest holds everything needed to create one work item.
// Empty strings and a nil Effort are left out of the request.
type CreateRequest struct {
	Type          string
	Title         string
	Description   string
	AssignedTo    string
	AreaPath      string
	IterationPath string
	// Effort is an estimate in days. It is sent as given.
	Effort *int
	// ParentURL is the location reference of the parent item.
	ParentURL string
	Tags      string
}

// CreatedItem identifies a work item that was created remotely.
type CreatedItem struct {
	ID int `json:"id"`
	// URL is the location reference children use to point at this item.
	URL   string `json:"url"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// WorkItem is the read view returned by Get and ListFeatures.
type WorkItem struct {
	ID            int    `json:"id"`
	URL           string `json:"url"`
	Type          string `json:"type"`
	Title         string `json:"title"`
	State         string `json:"state"`
	AssignedTo    string `json:"assigned_to"`
	AreaPath      string `json:"area_path"`
	IterationPath string `json:"iteration_path"`
	Tags          string `json:"tags"`
	CreatedDate   string `json:"created_date"`
}

// FieldOverrides lists the fields Update may change. Empty values are kept as-is.
type FieldOverrides struct {
	Title         string
	State         string
	AssignedTo    string
	AreaPath      string
	IterationPath string
}

// Failure reports a call that did not succeed remotely.
// StatusCode is zero when no response was received; Err then holds the cause.
type Failure struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s failed: %v", f.Op, f.Err)
	}
	return fmt.Sprintf("%s returned status %d: %s", f.Op, f.StatusCode, f.Body)
}

func (f *Failure) Unwrap() error { return f.Err }
