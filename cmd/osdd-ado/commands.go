package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opensdd/osdd-ado/core/hierarchy"
	"github.com/opensdd/osdd-ado/core/parser"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "osdd-ado",
		Short:         "Turn a project plan into Azure DevOps work items",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.setupLogging(cmd)
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default ~/.config/osdd-ado/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newCreateCmd(a),
		newParseCmd(a),
		newCreateSingleCmd(a),
		newGetCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newFeaturesCmd(a),
		newConfigCmd(a),
	)
	return root
}

type defaultsFlags struct {
	hierarchy.ItemDefaults
}

func (d *defaultsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.AssignedTo, "assigned-to", "", "assignee (defaults to config assigned_to)")
	cmd.Flags().StringVar(&d.AreaPath, "area-path", "", "area path (defaults to config area_path)")
	cmd.Flags().StringVar(&d.IterationPath, "iteration-path", "", "iteration path (defaults to config iteration_path)")
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		planPath string
		textPath string
		delay    time.Duration
		yes      bool
		asJSON   bool
		defaults defaultsFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a Feature → PBI → Task hierarchy from a plan",
		Long: `Create a Feature → PBI → Task hierarchy from a plan.

The plan is either a structured file (--plan) or free-form text parsed with
Claude (--text). With --text - the plan is read from stdin, which leaves no
input for the confirmation or PAT prompts: -y is required and the token must
come from azureauth or OSDD_ADO_PAT.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if textPath == "-" && !yes {
				return errStdinNeedsYes
			}
			spec, err := loadSpec(cmd, a, planPath, textPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printPreview(out, spec)
			if !yes && !a.confirm(out, "Create these work items in ADO?") {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}

			if cmd.Flags().Changed("delay") {
				a.cfg.Delay = delay
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			report, err := svc.Create(cmd.Context(), *spec, defaults.Or(a.cfg.ItemDefaults()))
			if asJSON && report != nil {
				if encErr := writeJSON(out, report); encErr != nil {
					return encErr
				}
			} else if report != nil {
				printSummary(out, svc, report)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "structured plan file (.yaml, .yml or .json)")
	cmd.Flags().StringVar(&textPath, "text", "", "free-form plan text file to parse with Claude (- for stdin, requires -y)")
	cmd.Flags().DurationVar(&delay, "delay", hierarchy.DefaultDelay, "pause between create calls")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	defaults.register(cmd)
	cmd.MarkFlagsMutuallyExclusive("plan", "text")
	cmd.MarkFlagsOneRequired("plan", "text")
	return cmd
}

var errStdinNeedsYes = errors.New("--text - reads the plan from stdin; pass -y to skip the confirmation prompt")

func newParseCmd(a *app) *cobra.Command {
	var textPath string
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse free-form plan text into a hierarchy and print it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := loadSpec(cmd, a, "", textPath)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), spec)
		},
	}
	cmd.Flags().StringVar(&textPath, "text", "-", "plan text file (- for stdin)")
	return cmd
}

// loadSpec reads a structured plan file or sends plan text to the parser.
// A parse failure means there is nothing to build.
func loadSpec(cmd *cobra.Command, a *app, planPath, textPath string) (*hierarchy.HierarchySpec, error) {
	if planPath != "" {
		return parser.LoadPlan(planPath)
	}
	text, err := readText(a.in, textPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no text provided")
	}
	p := &parser.Anthropic{APIKey: parser.APIKey()}
	spec, err := p.Parse(cmd.Context(), text)
	if err != nil {
		return nil, fmt.Errorf("nothing to build: %w", err)
	}
	return spec, nil
}

func printPreview(out io.Writer, spec *hierarchy.HierarchySpec) {
	fmt.Fprintf(out, "\nFeature: %s\n", spec.Feature.Title)
	if spec.Feature.Description != "" {
		fmt.Fprintf(out, "  %s\n", spec.Feature.Description)
	}
	for i, pbi := range spec.PBIs {
		fmt.Fprintf(out, "\n  PBI %d: %s\n", i+1, pbi.Title)
		if pbi.Description != "" {
			fmt.Fprintf(out, "    %s\n", pbi.Description)
		}
		for _, t := range pbi.Tasks {
			fmt.Fprintf(out, "    -> [%sd] %s\n", effortLabel(t.Effort), t.Title)
		}
	}
	fmt.Fprintln(out)
}

func effortLabel(e *int) string {
	if e == nil {
		return "?"
	}
	return strconv.Itoa(*e)
}

func printSummary(out io.Writer, svc *hierarchy.Service, r *hierarchy.Report) {
	if !r.Succeeded() {
		fmt.Fprintln(out, "Feature was not created; nothing else was attempted.")
		return
	}
	fmt.Fprintf(out, "Done!\n\nFeature  : #%d\nPBIs     : %d\nTasks    : %d\n", r.Feature.ID, len(r.PBIs), r.TaskCount())
	if len(r.Failures) > 0 {
		fmt.Fprintf(out, "Failures : %d\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Fprintf(out, "  - %s %q: %s\n", f.Level, f.Title, f.Message)
		}
	}
	fmt.Fprintf(out, "\n%s\n", svc.WebURL(r.Feature.ID))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
