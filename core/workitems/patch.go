package workitems

// PatchOperation is one entry of a JSON-patch document.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Relation is the value of a relation-add operation.
type Relation struct {
	Rel        string            `json:"rel"`
	URL        string            `json:"url"`
	Attributes map[string]string `json:"attributes"`
}

type field struct {
	ref   string
	value any
}

func addField(ref string, value any) PatchOperation {
	return PatchOperation{Op: "add", Path: "/fields/" + ref, Value: value}
}

// fieldOps emits one add operation per set field, in the order given.
func fieldOps(fields []field) []PatchOperation {
	ops := make([]PatchOperation, 0, len(fields))
	for _, f := range fields {
		switch v := f.value.(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
		case *int:
			if v == nil {
				continue
			}
			f.value = *v
		}
		ops = append(ops, addField(f.ref, f.value))
	}
	return ops
}

// buildCreateDocument converts a CreateRequest into its patch document.
// A parent reference adds exactly one hierarchy-reverse relation.
func buildCreateDocument(req CreateRequest) []PatchOperation {
	ops := fieldOps([]field{
		{FieldTitle, req.Title},
		{FieldDescription, req.Description},
		{FieldAssignedTo, req.AssignedTo},
		{FieldAreaPath, req.AreaPath},
		{FieldIterationPath, req.IterationPath},
		{FieldEffort, req.Effort},
		{FieldTags, req.Tags},
	})
	if req.ParentURL != "" {
		ops = append(ops, PatchOperation{
			Op:   "add",
			Path: "/relations/-",
			Value: Relation{
				Rel:        RelationHierarchyReverse,
				URL:        req.ParentURL,
				Attributes: map[string]string{"comment": ""},
			},
		})
	}
	return ops
}

func buildUpdateDocument(o FieldOverrides) []PatchOperation {
	return fieldOps([]field{
		{FieldTitle, o.Title},
		{FieldState, o.State},
		{FieldAssignedTo, o.AssignedTo},
		{FieldAreaPath, o.AreaPath},
		{FieldIterationPath, o.IterationPath},
	})
}
