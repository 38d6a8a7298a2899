package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/opensdd/osdd-ado/core/hierarchy"
	"github.com/opensdd/osdd-ado/core/utils"
	"github.com/tidwall/gjson"
)

// anthropicBaseURL can be overridden in tests to point at a httptest server.
var anthropicBaseURL string

const (
	defaultAnthropicURL = "https://api.anthropic.com"
	anthropicVersion    = "2023-06-01"

	// DefaultModel is the model asked to structure plans.
	DefaultModel = "claude-sonnet-4-6"
	// APIKeyEnvVar holds the Anthropic API key.
	APIKeyEnvVar = "ANTHROPIC_API_KEY"

	maxTokens = 8096
)

// ErrUnparseable means no well-formed hierarchy could be obtained.
var ErrUnparseable = errors.New("could not parse plan into a hierarchy")

// Parser turns free text into a hierarchy. It never returns a partial spec.
type Parser interface {
	Parse(ctx context.Context, text string) (*hierarchy.HierarchySpec, error)
}

const systemPrompt = `You are an expert project manager and Azure DevOps work item specialist.

Your job is to analyze unstructured text describing a software project plan and convert it into a structured hierarchy of ADO work items:
  - One Feature (top-level grouping)
  - Multiple Product Backlog Items (PBIs) under the Feature
  - Multiple Tasks under each PBI

Rules:
1. Every PBI must have at least one Task.
2. Task effort should be estimated in days (integer, 1-10).
3. Titles must be concise and actionable.
4. Descriptions should be 1-2 sentences summarizing the goal.
5. Group related work logically, avoiding both over- and under-fragmentation.
6. Preserve phase labels (Phase 1 / Phase 2) in titles when present.

Return ONLY a valid JSON object with this exact structure, no commentary and no markdown fences:
{
  "feature": {
    "title": "<feature title>",
    "description": "<1-2 sentence description>"
  },
  "pbis": [
    {
      "title": "<PBI title>",
      "description": "<1-2 sentence description>",
      "tasks": [
        { "title": "<task title>", "effort": <days as integer> }
      ]
    }
  ]
}`

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Anthropic asks a Claude model to structure the plan.
type Anthropic struct {
	APIKey string
	// Model defaults to DefaultModel.
	Model string
	// HTTP defaults to http.DefaultClient.
	HTTP *http.Client
}

// APIKey reads the Anthropic API key from the environment.
func APIKey() string {
	return strings.TrimSpace(os.Getenv(APIKeyEnvVar))
}

func (a *Anthropic) Parse(ctx context.Context, text string) (*hierarchy.HierarchySpec, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrUnparseable)
	}
	if a.APIKey == "" {
		return nil, fmt.Errorf("anthropic API requires authentication: set %s", APIKeyEnvVar)
	}

	model := a.Model
	if model == "" {
		model = DefaultModel
	}
	body, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []message{{
			Role:    "user",
			Content: "Convert the following project plan into ADO work items:\n\n" + text,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	baseURL := anthropicBaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	slog.Info("Sending plan for analysis", "model", model, "chars", len(text))

	httpClient := a.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic request failed: %w", ErrUnparseable, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read anthropic response: %w", ErrUnparseable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: anthropic API returned status %d: %s", ErrUnparseable, resp.StatusCode, utils.Truncate(string(respBody), 500))
	}

	raw := gjson.GetBytes(respBody, `content.#(type=="text").text`).String()
	spec, err := Decode([]byte(StripFences(raw)))
	if err != nil {
		slog.Debug("Unparseable model output", "raw", utils.Truncate(raw, 500))
		return nil, err
	}
	slog.Info("Plan parsed", "pbis", len(spec.PBIs), "tasks", spec.TaskCount())
	return spec, nil
}

// StripFences removes a surrounding markdown code fence, including a "json"
// language tag, from model output.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		parts := strings.Split(raw, "```")
		if len(parts) > 1 {
			raw = parts[1]
		}
		raw = strings.TrimPrefix(raw, "json")
	}
	return strings.TrimSpace(raw)
}

// Decode parses a JSON hierarchy and validates it.
func Decode(data []byte) (*hierarchy.HierarchySpec, error) {
	var spec hierarchy.HierarchySpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", ErrUnparseable, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	return &spec, nil
}
