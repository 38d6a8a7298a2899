package hierarchy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/opensdd/osdd-ado/core/workitems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store *fakeStore) *Service {
	return NewService(store, &Orchestrator{Writer: store, Pacer: &countingPacer{}}, "https://dev.azure.com/org/proj/")
}

func TestNewService_Defaults(t *testing.T) {
	store := newFakeStore()
	s := NewService(store, nil, "https://dev.azure.com/org/proj")
	require.NotNil(t, s.Orchestrator)
	assert.Equal(t, store, s.Orchestrator.Writer)
	assert.Equal(t, FixedDelay(DefaultDelay), s.Orchestrator.Pacer)

	s = NewService(store, &Orchestrator{}, "")
	assert.Equal(t, store, s.Orchestrator.Writer)
}

func TestService_Create(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)

	report, err := s.Create(context.Background(), authRevamp(), ItemDefaults{})
	require.NoError(t, err)
	assert.Len(t, report.PBIs, 2)
}

func TestService_Create_InvalidSpec(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)

	report, err := s.Create(context.Background(), HierarchySpec{Feature: FeatureNode{Title: " "}}, ItemDefaults{})
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Empty(t, store.creates)
}

func TestService_Create_FeatureFailure(t *testing.T) {
	store := newFakeStore("Auth Revamp")
	s := newTestService(store)

	report, err := s.Create(context.Background(), authRevamp(), ItemDefaults{})
	require.ErrorIs(t, err, ErrFeatureNotCreated)
	var wf *workitems.Failure
	assert.ErrorAs(t, err, &wf)
	require.NotNil(t, report)
	assert.False(t, report.Succeeded())
}

func TestService_CreateSingle(t *testing.T) {
	store := newFakeStore()
	store.items[7] = &workitems.WorkItem{ID: 7, URL: "https://example/wi/7", Title: "Login flow"}
	s := newTestService(store)

	item, err := s.CreateSingle(context.Background(), SingleRequest{
		Type:         workitems.TypeTask,
		Title:        "Add tests",
		ItemDefaults: ItemDefaults{AssignedTo: "dev@example.com"},
		Effort:       effort(1),
		ParentID:     7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Add tests", item.Title)

	require.Len(t, store.creates, 1)
	assert.Equal(t, "https://example/wi/7", store.creates[0].ParentURL)
	assert.Equal(t, "dev@example.com", store.creates[0].AssignedTo)
	assert.Equal(t, 1, *store.creates[0].Effort)
}

func TestService_CreateSingle_UnknownParent(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)

	item, err := s.CreateSingle(context.Background(), SingleRequest{
		Type:     workitems.TypeTask,
		Title:    "Orphan",
		ParentID: 99999,
	})
	require.NoError(t, err)
	assert.NotNil(t, item)
	assert.Empty(t, store.creates[0].ParentURL)
}

func TestService_Update(t *testing.T) {
	store := newFakeStore()
	s := newTestService(store)

	require.NoError(t, s.Update(context.Background(), 5, workitems.FieldOverrides{State: "Active"}))
	assert.Equal(t, "Active", store.updates[5].State)
}

func TestService_Delete(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("forbidden")
	store.deleteErrs = map[int]error{2: boom}
	s := newTestService(store)

	results := s.Delete(context.Background(), []int{1, 2, 3})
	require.Len(t, results, 3)
	assert.NoError(t, results[1])
	assert.ErrorIs(t, results[2], boom)
	assert.NoError(t, results[3])
}

func TestService_ListFeatures(t *testing.T) {
	s := newTestService(newFakeStore())
	features, err := s.ListFeatures(context.Background(), workitems.FeatureQuery{})
	require.NoError(t, err)
	assert.Len(t, features, 1)
}

func TestService_WebURL(t *testing.T) {
	s := newTestService(newFakeStore())
	assert.Equal(t, "https://dev.azure.com/org/proj/_workitems/edit/42", s.WebURL(42))
}

func TestReport_JSON(t *testing.T) {
	store := newFakeStore("Design UI")
	o, _ := newTestOrchestrator(store)
	report := o.Build(context.Background(), authRevamp(), ItemDefaults{})

	raw, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, report.RunID, decoded["run_id"])
	failures := decoded["failures"].([]any)
	require.Len(t, failures, 1)
	f := failures[0].(map[string]any)
	assert.Equal(t, "task", f["level"])
	assert.Contains(t, f["error"], "rejected")
}

func TestHierarchySpec_Validate(t *testing.T) {
	var nilSpec *HierarchySpec
	assert.Error(t, nilSpec.Validate())
	assert.Error(t, (&HierarchySpec{}).Validate())
	assert.NoError(t, (&HierarchySpec{Feature: FeatureNode{Title: "Auth Revamp"}}).Validate())

	spec := authRevamp()
	assert.Equal(t, 3, spec.TaskCount())
}

func TestItemDefaults_Or(t *testing.T) {
	d := ItemDefaults{AssignedTo: "me@example.com"}
	got := d.Or(ItemDefaults{AssignedTo: "cfg@example.com", AreaPath: "One", IterationPath: "One\\S1"})
	assert.Equal(t, ItemDefaults{AssignedTo: "me@example.com", AreaPath: "One", IterationPath: "One\\S1"}, got)
}
