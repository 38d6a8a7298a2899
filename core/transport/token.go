package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/opensdd/osdd-ado/core/utils"
	"golang.org/x/sync/singleflight"
)

// ErrNoToken is returned by Chain when no provider produced a token.
var ErrNoToken = errors.New("no token available")

// TokenProvider yields the credential placed in the Authorization header.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a plain function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns the same value.
type StaticToken string

// Token returns s.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// EnvToken reads the token from the named environment variable.
type EnvToken struct {
	Var string
}

// Token returns the trimmed value of Var, empty when unset.
func (e EnvToken) Token(context.Context) (string, error) {
	if e.Var == "" {
		return "", fmt.Errorf("token env var name cannot be empty")
	}
	return strings.TrimSpace(os.Getenv(e.Var)), nil
}

const defaultCommandTimeout = 30 * time.Second

// CommandToken obtains an access token from the AzureAuth CLI.
type CommandToken struct {
	Path string
	// Mode is passed to --mode, e.g. "broker" or "iwa".
	Mode   string
	Domain string
	// Timeout bounds a single invocation; zero means 30s.
	Timeout time.Duration
}

// Token runs azureauth and returns the token it prints.
func (c CommandToken) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.Path) == "" {
		return "", fmt.Errorf("azureauth path cannot be empty")
	}
	if _, err := os.Stat(c.Path); err != nil {
		return "", fmt.Errorf("azureauth not available at %s: %w", c.Path, err)
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"ado", "token", "--mode", c.Mode, "--output", "token"}
	if c.Domain != "" {
		args = append(args, "--domain", c.Domain)
	}
	slog.Debug("Requesting token from azureauth", "mode", c.Mode)
	out, err := utils.RunCommand(ctx, c.Path, args...)
	if err != nil {
		return "", fmt.Errorf("azureauth %s mode failed: %w", c.Mode, err)
	}
	return out, nil
}

// Chain tries each provider in order and returns the first non-empty token.
// Provider errors are logged and skipped.
type Chain []TokenProvider

// Token returns the first non-empty token, or ErrNoToken.
func (ch Chain) Token(ctx context.Context) (string, error) {
	var errs []error
	for i, p := range ch {
		if p == nil {
			continue
		}
		token, err := p.Token(ctx)
		if err != nil {
			slog.Warn("Token provider failed, trying next", "index", i, "error", err)
			errs = append(errs, err)
			continue
		}
		if token != "" {
			return token, nil
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%w: %w", ErrNoToken, errors.Join(errs...))
	}
	return "", ErrNoToken
}

// Cached memoises the first non-empty token from Source for the life of the
// session. Concurrent callers share a single fetch. Invalidate forces the next
// call to go back to Source.
type Cached struct {
	Source TokenProvider

	mu    sync.Mutex
	token string
	group singleflight.Group
}

// NewCached wraps source with a session cache.
func NewCached(source TokenProvider) *Cached {
	return &Cached{Source: source}
}

const cachedTokenKey = "token"

// Token returns the cached token, fetching it from Source on first use.
func (c *Cached) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if c.Source == nil {
		return "", fmt.Errorf("token source cannot be nil")
	}

	v, err, _ := c.group.Do(cachedTokenKey, func() (any, error) {
		t, err := c.Source.Token(ctx)
		if err != nil {
			return "", err
		}
		if t != "" {
			c.mu.Lock()
			c.token = t
			c.mu.Unlock()
		}
		return t, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.group.Forget(cachedTokenKey)
}
