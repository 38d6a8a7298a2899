package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// APIVersion is appended to every request issued by Client.
	APIVersion = "7.0"

	// JSONPatchContentType is required by Azure DevOps for work item writes.
	JSONPatchContentType = "application/json-patch+json"

	// JSONContentType is used for query bodies (WIQL, batch reads).
	JSONContentType = "application/json"
)

// Scheme selects how a token is placed in the Authorization header.
type Scheme string

const (
	// Bearer sends the token as an OAuth access token (AzureAuth output).
	Bearer Scheme = "bearer"
	// Basic sends the token as a personal access token with an empty username.
	Basic Scheme = "basic"
	// Auto picks Bearer for JWT access tokens and Basic for anything else.
	Auto Scheme = "auto"
)

// schemeFor resolves Auto against a concrete token.
func schemeFor(s Scheme, token string) Scheme {
	if s != Auto {
		return s
	}
	if strings.HasPrefix(token, "eyJ") && strings.Count(token, ".") == 2 {
		return Bearer
	}
	return Basic
}

// Request describes a single call against the work item tracking API.
// Path is relative to the client's base URL, e.g. "/_apis/wit/workitems/42".
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// Response carries the raw status and body; interpreting them is the caller's job.
type Response struct {
	StatusCode int
	Body       []byte
}

// Sender sends an authenticated request and returns status and body.
// A non-nil error means no response was obtained at all.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Client is the net/http Sender used against a real organisation.
type Client struct {
	// BaseURL is "{org_url}/{project}" without a trailing slash.
	BaseURL string
	Tokens  TokenProvider
	Scheme  Scheme
	// HTTP defaults to http.DefaultClient.
	HTTP *http.Client
}

// NewClient builds a Client for the given organisation and project.
func NewClient(orgURL, project string, tokens TokenProvider, scheme Scheme) *Client {
	return &Client{
		BaseURL: strings.TrimRight(orgURL, "/") + "/" + url.PathEscape(project),
		Tokens:  tokens,
		Scheme:  scheme,
	}
}

// Send issues r against BaseURL with api-version and auth applied.
func (c *Client) Send(ctx context.Context, r *Request) (*Response, error) {
	if r == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	q := url.Values{}
	for k, vs := range r.Query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("api-version", APIVersion)
	target := strings.TrimRight(c.BaseURL, "/") + r.Path + "?" + q.Encode()

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", JSONContentType)
	if len(r.Body) > 0 {
		ct := r.ContentType
		if ct == "" {
			ct = JSONContentType
		}
		req.Header.Set("Content-Type", ct)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	slog.Debug("Sending request", "method", r.Method, "path", r.Path)

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	slog.Debug("Received response", "method", r.Method, "path", r.Path, "status", resp.StatusCode)
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.Tokens == nil {
		return nil
	}
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire token: %w", err)
	}
	if token == "" {
		return nil
	}
	switch schemeFor(c.Scheme, token) {
	case Basic:
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(":"+token)))
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}
