package workitems

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func paths(ops []PatchOperation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Path
	}
	return out
}

func TestBuildCreateDocument(t *testing.T) {
	tests := []struct {
		name      string
		req       CreateRequest
		wantPaths []string
	}{
		{
			name:      "title only",
			req:       CreateRequest{Type: TypeFeature, Title: "Auth Revamp"},
			wantPaths: []string{"/fields/System.Title"},
		},
		{
			name:      "empty description is dropped",
			req:       CreateRequest{Type: TypePBI, Title: "Login flow", Description: ""},
			wantPaths: []string{"/fields/System.Title"},
		},
		{
			name: "all fields in fixed order",
			req: CreateRequest{
				Type:          TypeTask,
				Title:         "Design UI",
				Description:   "Screens",
				AssignedTo:    "dev@example.com",
				AreaPath:      "One\\Area",
				IterationPath: "One\\Sprint 1",
				Effort:        intPtr(2),
				Tags:          "osdd-ado",
			},
			wantPaths: []string{
				"/fields/System.Title",
				"/fields/System.Description",
				"/fields/System.AssignedTo",
				"/fields/System.AreaPath",
				"/fields/System.IterationPath",
				"/fields/Microsoft.VSTS.Scheduling.Effort",
				"/fields/System.Tags",
			},
		},
		{
			name:      "zero effort is still sent",
			req:       CreateRequest{Type: TypeTask, Title: "Spike", Effort: intPtr(0)},
			wantPaths: []string{"/fields/System.Title", "/fields/Microsoft.VSTS.Scheduling.Effort"},
		},
		{
			name:      "parent appends one relation",
			req:       CreateRequest{Type: TypeTask, Title: "Wire backend", ParentURL: "https://dev.azure.com/org/_apis/wit/workItems/7"},
			wantPaths: []string{"/fields/System.Title", "/relations/-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ops := buildCreateDocument(tt.req)
			assert.Equal(t, tt.wantPaths, paths(ops))
			for _, op := range ops {
				assert.Equal(t, "add", op.Op)
			}
		})
	}
}

func TestBuildCreateDocument_RelationShape(t *testing.T) {
	t.Parallel()
	ops := buildCreateDocument(CreateRequest{Type: TypePBI, Title: "Login flow", ParentURL: "https://example/wi/1"})

	raw, err := json.Marshal(ops)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)

	rel := decoded[1]["value"].(map[string]any)
	assert.Equal(t, RelationHierarchyReverse, rel["rel"])
	assert.Equal(t, "https://example/wi/1", rel["url"])
	assert.Equal(t, map[string]any{"comment": ""}, rel["attributes"])
}

func TestBuildCreateDocument_EffortIsInteger(t *testing.T) {
	t.Parallel()
	ops := buildCreateDocument(CreateRequest{Type: TypeTask, Title: "Add endpoint", Effort: intPtr(3)})
	raw, err := json.Marshal(ops)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"path":"/fields/Microsoft.VSTS.Scheduling.Effort","value":3`)
}

func TestBuildUpdateDocument(t *testing.T) {
	t.Parallel()
	assert.Empty(t, buildUpdateDocument(FieldOverrides{}))

	ops := buildUpdateDocument(FieldOverrides{State: "Active", IterationPath: "One\\Sprint 2"})
	assert.Equal(t, []string{"/fields/System.State", "/fields/System.IterationPath"}, paths(ops))
	assert.Equal(t, "Active", ops[0].Value)
}
