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

	"github.com/opensdd/osdd-ado/core/transport"
	"github.com/opensdd/osdd-ado/core/utils"
	"github.com/tidwall/gjson"
)

const workItemsPath = "/_apis/wit/workitems"

// Client reads and writes work items through a transport.Sender.
type Client struct {
	Sender transport.Sender
}

// NewClient returns a Client that sends through s.
func NewClient(s transport.Sender) *Client {
	return &Client{Sender: s}
}

// Create submits one work item. Exactly one write is attempted; there is no
// retry. Any non-success outcome is returned as a *Failure.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*CreatedItem, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, ErrEmptyTitle
	}
	if strings.TrimSpace(req.Type) == "" {
		return nil, fmt.Errorf("work item type cannot be empty")
	}

	body, err := json.Marshal(buildCreateDocument(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch document: %w", err)
	}

	op := fmt.Sprintf("create %s %q", req.Type, req.Title)
	resp, err := c.Sender.Send(ctx, &transport.Request{
		Method:      http.MethodPost,
		Path:        workItemsPath + "/" + url.PathEscape("$"+req.Type),
		Body:        body,
		ContentType: transport.JSONPatchContentType,
	})
	if err != nil {
		return nil, &Failure{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, newFailure(op, resp)
	}

	id := gjson.GetBytes(resp.Body, "id")
	loc := gjson.GetBytes(resp.Body, "url").String()
	if !id.Exists() || loc == "" {
		return nil, &Failure{Op: op, StatusCode: resp.StatusCode, Body: utils.Truncate(string(resp.Body), maxFailureBody),
			Err: fmt.Errorf("response is missing id or url")}
	}

	slog.Debug("Work item created", "type", req.Type, "id", id.Int())
	return &CreatedItem{
		ID:    int(id.Int()),
		URL:   loc,
		Type:  req.Type,
		Title: req.Title,
	}, nil
}

// Get fetches a work item with its relations. ErrNotFound is returned for 404.
func (c *Client) Get(ctx context.Context, id int) (*WorkItem, error) {
	op := fmt.Sprintf("get work item %d", id)
	resp, err := c.Sender.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   workItemsPath + "/" + strconv.Itoa(id),
		Query:  url.Values{"$expand": []string{"relations"}},
	})
	if err != nil {
		return nil, &Failure{Op: op, Err: err}
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	default:
		return nil, newFailure(op, resp)
	}

	item := parseWorkItem(gjson.ParseBytes(resp.Body))
	return &item, nil
}

// Update applies the non-empty overrides to an existing work item.
func (c *Client) Update(ctx context.Context, id int, o FieldOverrides) error {
	ops := buildUpdateDocument(o)
	if len(ops) == 0 {
		return ErrNoChanges
	}
	body, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to marshal patch document: %w", err)
	}

	op := fmt.Sprintf("update work item %d", id)
	resp, err := c.Sender.Send(ctx, &transport.Request{
		Method:      http.MethodPatch,
		Path:        workItemsPath + "/" + strconv.Itoa(id),
		Body:        body,
		ContentType: transport.JSONPatchContentType,
	})
	if err != nil {
		return &Failure{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return newFailure(op, resp)
	}
	return nil
}

// Delete removes a work item (it goes to the recycle bin remotely).
func (c *Client) Delete(ctx context.Context, id int) error {
	op := fmt.Sprintf("delete work item %d", id)
	resp, err := c.Sender.Send(ctx, &transport.Request{
		Method: http.MethodDelete,
		Path:   workItemsPath + "/" + strconv.Itoa(id),
	})
	if err != nil {
		return &Failure{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return newFailure(op, resp)
	}
	return nil
}

func newFailure(op string, resp *transport.Response) *Failure {
	return &Failure{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       utils.Truncate(string(resp.Body), maxFailureBody),
	}
}

// fieldPath escapes the dots inside a field reference name for gjson.
func fieldPath(ref string) string {
	return "fields." + strings.ReplaceAll(ref, ".", `\.`)
}

func parseWorkItem(r gjson.Result) WorkItem {
	f := func(ref string) string { return r.Get(fieldPath(ref)).String() }

	assignee := r.Get(fieldPath(FieldAssignedTo))
	assignedTo := assignee.String()
	if assignee.IsObject() {
		assignedTo = assignee.Get("uniqueName").String()
	}

	return WorkItem{
		ID:            int(r.Get("id").Int()),
		URL:           r.Get("url").String(),
		Type:          f(FieldWorkItemType),
		Title:         f(FieldTitle),
		State:         f(FieldState),
		AssignedTo:    assignedTo,
		AreaPath:      f(FieldAreaPath),
		IterationPath: f(FieldIterationPath),
		Tags:          f(FieldTags),
		CreatedDate:   f(FieldCreatedDate),
	}
}
