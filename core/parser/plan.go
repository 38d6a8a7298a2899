package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opensdd/osdd-ado/core/hierarchy"
	"gopkg.in/yaml.v3"
)

// LoadPlan reads an already structured hierarchy from a .yaml, .yml or .json file.
func LoadPlan(path string) (*hierarchy.HierarchySpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("plan path cannot be empty")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Convert YAML to JSON first so both formats share the JSON field names.
		var y any
		if err := yaml.Unmarshal(content, &y); err != nil {
			return nil, fmt.Errorf("%w: failed to parse YAML plan: %w", ErrUnparseable, err)
		}
		b, err := json.Marshal(y)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML to JSON: %w", err)
		}
		return Decode(b)
	case ".json":
		return Decode(content)
	default:
		return nil, fmt.Errorf("unsupported plan format: %s", path)
	}
}
