package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_BaseURL(t *testing.T) {
	t.Parallel()
	c := NewClient("https://dev.azure.com/org/", "My Project", StaticToken("x"), Bearer)
	assert.Equal(t, "https://dev.azure.com/org/My%20Project", c.BaseURL)
}

func TestSchemeFor(t *testing.T) {
	t.Parallel()
	jwt := "eyJhbGciOi.eyJzdWIiOi.c2lnbmF0dXJl"
	assert.Equal(t, Bearer, schemeFor(Auto, jwt))
	assert.Equal(t, Basic, schemeFor(Auto, "abcdef0123456789pat"))
	assert.Equal(t, Basic, schemeFor(Auto, "eyJnot-a-jwt"))
	assert.Equal(t, Bearer, schemeFor(Bearer, "abc"))
	assert.Equal(t, Basic, schemeFor(Basic, jwt))
}

func TestClient_Send(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "proj", StaticToken("tok"), Bearer)
	resp, err := c.Send(context.Background(), &Request{
		Method:      http.MethodPost,
		Path:        "/_apis/wit/workitems/$Task",
		Query:       map[string][]string{"$top": {"5"}},
		Body:        []byte(`[]`),
		ContentType: JSONPatchContentType,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"id":1}`, string(resp.Body))

	assert.Equal(t, "/proj/_apis/wit/workitems/$Task", got.URL.Path)
	assert.Equal(t, APIVersion, got.URL.Query().Get("api-version"))
	assert.Equal(t, "5", got.URL.Query().Get("$top"))
	assert.Equal(t, JSONPatchContentType, got.Header.Get("Content-Type"))
	assert.Equal(t, JSONContentType, got.Header.Get("Accept"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "[]", string(gotBody))
}

func TestClient_Send_DoesNotMutateQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	q := map[string][]string{"$expand": {"relations"}}
	c := NewClient(srv.URL, "proj", nil, Bearer)
	_, err := c.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/x", Query: q})
	require.NoError(t, err)
	assert.NotContains(t, q, "api-version")
}

func TestClient_Send_AuthSchemes(t *testing.T) {
	jwt := "eyJhbGciOi.eyJzdWIiOi.c2lnbmF0dXJl"
	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte(":pat123"))

	tests := []struct {
		name   string
		tokens TokenProvider
		scheme Scheme
		want   string
	}{
		{name: "bearer", tokens: StaticToken("abc"), scheme: Bearer, want: "Bearer abc"},
		{name: "basic pat", tokens: StaticToken("pat123"), scheme: Basic, want: basic},
		{name: "auto jwt", tokens: StaticToken(jwt), scheme: Auto, want: "Bearer " + jwt},
		{name: "auto pat", tokens: StaticToken("pat123"), scheme: Auto, want: basic},
		{name: "no provider", tokens: nil, scheme: Bearer, want: ""},
		{name: "empty token", tokens: StaticToken(""), scheme: Bearer, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var auth string
			srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "proj", tt.tokens, tt.scheme)
			_, err := c.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, auth)
		})
	}
}

func TestClient_Send_TokenError(t *testing.T) {
	t.Parallel()
	boom := errors.New("no broker")
	c := NewClient("http://127.0.0.1:1", "proj", TokenFunc(func(context.Context) (string, error) {
		return "", boom
	}), Bearer)

	_, err := c.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to acquire token")
}

func TestClient_Send_NoBodyNoContentType(t *testing.T) {
	var ct string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "proj", nil, Bearer)
	_, err := c.Send(context.Background(), &Request{Method: http.MethodDelete, Path: "/x"})
	require.NoError(t, err)
	assert.Empty(t, ct)
}

func TestClient_Send_Validation(t *testing.T) {
	t.Parallel()
	_, err := (&Client{BaseURL: "http://x"}).Send(context.Background(), nil)
	assert.Error(t, err)

	_, err = (&Client{}).Send(context.Background(), &Request{Method: http.MethodGet})
	assert.ErrorContains(t, err, "base URL cannot be empty")
}

func TestClient_Send_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "proj", nil, Bearer)
	_, err := c.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	assert.ErrorContains(t, err, "failed to send request")
}
