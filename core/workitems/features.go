package workitems

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/opensdd/osdd-api/clients/go/osdd/recipes"
	"github.com/opensdd/osdd-ado/core/transport"
	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	defaultFeatureLimit = 200
	// batchSize is the workitemsbatch limit on ids per request.
	batchSize = 200
)

// FeatureQuery narrows ListFeatures.
type FeatureQuery struct {
	// Tag restricts results to features carrying this tag.
	Tag        string
	AssignedTo string
	Filter     *recipes.IssuesFilter
	// Limit caps the number of features returned; zero means 200.
	Limit int
}

type wiqlRequest struct {
	Query string `json:"query"`
}

type batchRequest struct {
	IDs    []int    `json:"ids"`
	Fields []string `json:"fields"`
}

var featureFields = []string{
	FieldWorkItemType,
	FieldTitle,
	FieldState,
	FieldAssignedTo,
	FieldAreaPath,
	FieldIterationPath,
	FieldTags,
	FieldCreatedDate,
}

// ListFeatures runs a WIQL query for features in the project, newest first,
// and resolves the matching ids into WorkItems.
func (c *Client) ListFeatures(ctx context.Context, q FeatureQuery) ([]WorkItem, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultFeatureLimit
	}
	wiql := buildWIQL(q)
	slog.Debug("Querying features", "wiql", wiql, "limit", limit)

	body, err := json.Marshal(wiqlRequest{Query: wiql})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wiql request: %w", err)
	}
	resp, err := c.Sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/_apis/wit/wiql",
		Query:  url.Values{"$top": []string{strconv.Itoa(limit)}},
		Body:   body,
	})
	if err != nil {
		return nil, &Failure{Op: "query features", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newFailure("query features", resp)
	}

	var ids []int
	gjson.GetBytes(resp.Body, "workItems.#.id").ForEach(func(_, v gjson.Result) bool {
		ids = append(ids, int(v.Int()))
		return len(ids) < limit
	})
	if len(ids) == 0 {
		return nil, nil
	}

	items := make([]WorkItem, 0, len(ids))
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		batch, err := c.getBatch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}
	slog.Debug("Features fetched", "count", len(items))
	return items, nil
}

func (c *Client) getBatch(ctx context.Context, ids []int) ([]WorkItem, error) {
	body, err := json.Marshal(batchRequest{IDs: ids, Fields: featureFields})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}
	resp, err := c.Sender.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/_apis/wit/workitemsbatch",
		Body:   body,
	})
	if err != nil {
		return nil, &Failure{Op: "get work items batch", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newFailure("get work items batch", resp)
	}

	var items []WorkItem
	gjson.GetBytes(resp.Body, "value").ForEach(func(_, v gjson.Result) bool {
		items = append(items, parseWorkItem(v))
		return true
	})
	return items, nil
}

// buildWIQL constructs the feature query from tag, assignee and date filters.
func buildWIQL(q FeatureQuery) string {
	clauses := []string{
		"[System.TeamProject] = @project",
		fmt.Sprintf("[%s] = %s", FieldWorkItemType, wiqlString(TypeFeature)),
	}
	if q.Tag != "" {
		clauses = append(clauses, fmt.Sprintf("[%s] CONTAINS %s", FieldTags, wiqlString(q.Tag)))
	}
	if q.AssignedTo != "" {
		clauses = append(clauses, fmt.Sprintf("[%s] = %s", FieldAssignedTo, wiqlString(q.AssignedTo)))
	}

	if filter := q.Filter; filter != nil {
		if filter.HasCreatedAtFilter() {
			cf := filter.GetCreatedAtFilter()
			if cf.HasFrom() {
				clauses = append(clauses, fmt.Sprintf("[%s] >= %s", FieldCreatedDate, wiqlString(formatTimestampForWIQL(cf.GetFrom()))))
			}
			if cf.HasTo() {
				clauses = append(clauses, fmt.Sprintf("[%s] <= %s", FieldCreatedDate, wiqlString(formatTimestampForWIQL(cf.GetTo()))))
			}
		}
		if filter.HasUpdatedAtFilter() {
			uf := filter.GetUpdatedAtFilter()
			if uf.HasFrom() {
				clauses = append(clauses, fmt.Sprintf("[System.ChangedDate] >= %s", wiqlString(formatTimestampForWIQL(uf.GetFrom()))))
			}
			if uf.HasTo() {
				clauses = append(clauses, fmt.Sprintf("[System.ChangedDate] <= %s", wiqlString(formatTimestampForWIQL(uf.GetTo()))))
			}
		}
	}

	return "SELECT [System.Id] FROM WorkItems WHERE " + strings.Join(clauses, " AND ") +
		fmt.Sprintf(" ORDER BY [%s] DESC", FieldCreatedDate)
}

// wiqlString quotes s as a WIQL string literal.
func wiqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// formatTimestampForWIQL formats a protobuf timestamp for WIQL date comparisons.
func formatTimestampForWIQL(ts *timestamppb.Timestamp) string {
	if ts == nil {
		return ""
	}
	return ts.AsTime().UTC().Format("2006-01-02")
}
