package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/opensdd/osdd-ado/core/config"
	"github.com/opensdd/osdd-ado/core/hierarchy"
	"github.com/opensdd/osdd-ado/core/transport"
	"github.com/opensdd/osdd-ado/core/workitems"
	"github.com/spf13/cobra"
)

// patEnvVar holds a personal access token used by auth_mode "pat" and as the
// fallback after azureauth.
const patEnvVar = "OSDD_ADO_PAT"

type app struct {
	cfgPath string
	verbose bool

	cfg    config.Config
	tokens *transport.Cached
	// rawIn is the command's stdin; in buffers it for line prompts.
	rawIn  io.Reader
	in     *bufio.Reader
	errOut io.Writer
}

func (a *app) setupLogging(cmd *cobra.Command) {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.errOut = cmd.ErrOrStderr()
	a.rawIn = cmd.InOrStdin()
	a.in = bufio.NewReader(a.rawIn)
	slog.SetDefault(slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level})))
}

func (a *app) loadConfig() error {
	if a.cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		a.cfgPath = p
	}
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	a.cfg = cfg
	return nil
}

// tokenProvider builds the auth chain: azureauth broker, then IWA, then a PAT
// from the environment, then an interactive prompt.
func (a *app) tokenProvider() (*transport.Cached, transport.Scheme) {
	prompt := transport.TokenFunc(a.promptPAT)
	pat := transport.EnvToken{Var: patEnvVar}
	if a.cfg.AuthMode == config.AuthPAT {
		return transport.NewCached(transport.Chain{pat, prompt}), transport.Basic
	}
	chain := transport.Chain{}
	if a.cfg.AzureAuthPath != "" {
		chain = append(chain,
			transport.CommandToken{Path: a.cfg.AzureAuthPath, Mode: "broker", Domain: "microsoft.com"},
			transport.CommandToken{Path: a.cfg.AzureAuthPath, Mode: "iwa", Domain: "microsoft.com"},
		)
	}
	chain = append(chain, pat, prompt)
	return transport.NewCached(chain), transport.Auto
}

// promptPAT asks for a personal access token. Input is not echoed when stdin
// is a terminal.
func (a *app) promptPAT(context.Context) (string, error) {
	slog.Warn("No token from configured providers, prompting for PAT")
	fmt.Fprint(a.errOut, "Enter your ADO Personal Access Token: ")
	if f, ok := a.rawIn.(*os.File); ok && term.IsTerminal(f.Fd()) {
		b, err := term.ReadPassword(f.Fd())
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// service wires config → transport → workitems → hierarchy.
func (a *app) service() (*hierarchy.Service, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (run `osdd-ado config set <key> <value>`)", err)
	}
	tokens, scheme := a.tokenProvider()
	a.tokens = tokens

	sender := transport.NewClient(a.cfg.OrgURL, a.cfg.Project, a.tokens, scheme)
	items := workitems.NewClient(sender)
	orch := hierarchy.NewOrchestrator(items, a.cfg.Delay)
	orch.FeatureTag = a.cfg.FeatureTag
	return hierarchy.NewService(items, orch, a.cfg.WebBase()), nil
}

func (a *app) confirm(out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, _ := a.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func readText(in io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}
