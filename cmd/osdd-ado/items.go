package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opensdd/osdd-api/clients/go/osdd"
	"github.com/opensdd/osdd-api/clients/go/osdd/recipes"
	"github.com/opensdd/osdd-ado/core/config"
	"github.com/opensdd/osdd-ado/core/hierarchy"
	"github.com/opensdd/osdd-ado/core/workitems"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var typeAliases = map[string]string{
	"feature": workitems.TypeFeature,
	"pbi":     workitems.TypePBI,
	"task":    workitems.TypeTask,
}

func newCreateSingleCmd(a *app) *cobra.Command {
	var (
		req      hierarchy.SingleRequest
		typ      string
		effort   int
		defaults defaultsFlags
	)
	cmd := &cobra.Command{
		Use:   "create-single",
		Short: "Create one work item, optionally under a parent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			wit, ok := typeAliases[strings.ToLower(typ)]
			if !ok {
				return fmt.Errorf("unknown type %q (feature, pbi or task)", typ)
			}
			req.Type = wit
			req.ItemDefaults = defaults.Or(a.cfg.ItemDefaults())
			if cmd.Flags().Changed("effort") {
				req.Effort = &effort
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			item, err := svc.CreateSingle(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s ID=%d\n  %s\n", item.Type, item.ID, svc.WebURL(item.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "task", "work item type: feature, pbi or task")
	cmd.Flags().StringVar(&req.Title, "title", "", "title")
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	cmd.Flags().IntVar(&effort, "effort", 1, "effort in days")
	cmd.Flags().IntVar(&req.ParentID, "parent", 0, "parent work item id")
	defaults.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			item, err := svc.Items.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), item)
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var o workitems.FieldOverrides
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			if err := svc.Update(cmd.Context(), id, o); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Work item %d updated.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.Title, "title", "", "new title")
	cmd.Flags().StringVar(&o.State, "state", "", "new state (New/Active/Resolved/Closed)")
	cmd.Flags().StringVar(&o.AssignedTo, "assigned-to", "", "new assignee")
	cmd.Flags().StringVar(&o.AreaPath, "area-path", "", "new area path")
	cmd.Flags().StringVar(&o.IterationPath, "iteration-path", "", "new iteration path")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>[,<id>...]",
		Short: "Delete work items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := parseIDs(args)
			if len(ids) == 0 {
				return fmt.Errorf("no valid ids provided")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "About to delete: %v\n", ids)
			if !yes && !a.confirm(out, "Confirm deletion?") {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			results := svc.Delete(cmd.Context(), ids)
			failed := 0
			for _, id := range ids {
				if err := results[id]; err != nil {
					failed++
					fmt.Fprintf(out, "  FAILED ID=%d: %v\n", id, err)
					continue
				}
				fmt.Fprintf(out, "  OK Deleted ID=%d\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletes failed", failed, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

// parseIDs accepts space and comma separated ids, ignoring anything non-numeric.
func parseIDs(args []string) []int {
	var ids []int
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || id <= 0 {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

func newFeaturesCmd(a *app) *cobra.Command {
	var (
		q       workitems.FeatureQuery
		since   string
		mine    bool
		anyTags bool
	)
	cmd := &cobra.Command{
		Use:   "features",
		Short: "List features created by this tool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !anyTags && q.Tag == "" {
				q.Tag = a.cfg.FeatureTag
			}
			if mine {
				q.AssignedTo = a.cfg.AssignedTo
			}
			if since != "" {
				from, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
				q.Filter = recipes.IssuesFilter_builder{
					CreatedAtFilter: osdd.DatesFilter_builder{From: timestamppb.New(from)}.Build(),
				}.Build()
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			features, err := svc.ListFeatures(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(features) == 0 {
				fmt.Fprintln(out, "No features found.")
				return nil
			}
			for _, f := range features {
				fmt.Fprintf(out, "#%-8d %-10s %s\n          %s\n", f.ID, f.State, f.Title, svc.WebURL(f.ID))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Tag, "tag", "", "tag to filter on (defaults to config feature_tag)")
	cmd.Flags().BoolVar(&anyTags, "all", false, "do not filter by tag")
	cmd.Flags().BoolVar(&mine, "mine", false, "only features assigned to config assigned_to")
	cmd.Flags().StringVar(&since, "since", "", "only features created on or after YYYY-MM-DD")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum number of features")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", a.cfgPath)
			rows := map[string]string{
				"org_url":        a.cfg.OrgURL,
				"project":        a.cfg.Project,
				"assigned_to":    a.cfg.AssignedTo,
				"area_path":      a.cfg.AreaPath,
				"iteration_path": a.cfg.IterationPath,
				"auth_mode":      a.cfg.AuthMode,
				"feature_tag":    a.cfg.FeatureTag,
				"delay":          a.cfg.Delay.String(),
			}
			keys := make([]string, 0, len(rows))
			for k := range rows {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%-15s %s\n", k, rows[k])
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one configuration key and save",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Start from the file so env overrides are not persisted.
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(a.cfgPath, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved.")
			return nil
		},
	})
	return cmd
}
