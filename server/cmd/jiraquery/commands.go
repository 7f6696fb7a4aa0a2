package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jiraquery/jiraquery/pkg/issue"
	"github.com/jiraquery/jiraquery/server/internal/config"
	"github.com/jiraquery/jiraquery/server/internal/jira"
	"github.com/jiraquery/jiraquery/server/internal/query"
	"github.com/jiraquery/jiraquery/server/internal/refdata"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	timeout    time.Duration
	verbose    bool
}

// groupingFlags binds --<name>, --<name>-type and --<name>-format.
type groupingFlags struct {
	field, kind, format string
}

func (g *groupingFlags) register(cmd *cobra.Command, name, usage string) {
	cmd.Flags().StringVar(&g.field, name, "", usage)
	cmd.Flags().StringVar(&g.kind, name+"-type", "", "grouping type of --"+name+": Text or Date")
	cmd.Flags().StringVar(&g.format, name+"-format", "", "date pattern of --"+name+", e.g. yyyy-MM or %Y-%m")
}

func (g groupingFlags) grouping() issue.FieldGrouping {
	return issue.FieldGrouping{Field: g.field, Type: issue.ParseGroupKind(g.kind), Format: g.format}
}

func newRootCmd(out io.Writer) *cobra.Command {
	gf := &globalFlags{}
	root := &cobra.Command{
		Use:           "jiraquery",
		Short:         "Query, enrich and aggregate Jira issues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&gf.configPath, "config", "c", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&gf.envFile, "env-file", ".env", "dotenv file with secrets; ignored when missing")
	root.PersistentFlags().DurationVar(&gf.timeout, "timeout", 2*time.Minute, "overall deadline")
	root.PersistentFlags().BoolVarP(&gf.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		fieldsCmd(gf),
		issuesCmd(gf),
		aggregateCmd(gf),
		compareCmd(gf),
	)
	return root
}

func fieldsCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List every field with its display name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, gf, func(ctx context.Context, svc *query.Service) (any, error) {
				return svc.FieldNames(ctx)
			})
		},
	}
}

func issuesCmd(gf *globalFlags) *cobra.Command {
	var (
		jql, selectList, expand string
		raw                     bool
	)
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "Fetch the issues matching a JQL query",
		Long: `Fetch the issues matching a JQL query.

By default issues are flattened and enriched with the computed X- fields.
--raw prints Jira's issue objects unmodified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, gf, func(ctx context.Context, svc *query.Service) (any, error) {
				if raw {
					return svc.Raw(ctx, jql, expand, splitList(selectList))
				}
				return svc.Simplified(ctx, jql, splitList(selectList))
			})
		},
	}
	cmd.Flags().StringVar(&jql, "jql", "", "JQL query (required)")
	cmd.Flags().StringVar(&selectList, "select", "", "comma-separated fields to fetch")
	cmd.Flags().StringVar(&expand, "expand", "", "Jira expand parameter, with --raw")
	cmd.Flags().BoolVar(&raw, "raw", false, "print Jira's issue objects unmodified")
	_ = cmd.MarkFlagRequired("jql")
	return cmd
}

func aggregateCmd(gf *globalFlags) *cobra.Command {
	var (
		jql             string
		group, subGroup groupingFlags
		value, op       string
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Build a pivot table of the issues matching a JQL query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, gf, func(ctx context.Context, svc *query.Service) (any, error) {
				return svc.Aggregate(ctx, query.AggregateRequest{
					JQL:      jql,
					Group:    group.grouping(),
					SubGroup: subGroup.grouping(),
					Value:    issue.FieldAggregation{Field: value, Operation: issue.ParseOperation(op)},
				})
			})
		},
	}
	cmd.Flags().StringVar(&jql, "jql", "", "JQL query (required)")
	group.register(cmd, "group", "row field (required)")
	subGroup.register(cmd, "sub-group", "column field")
	cmd.Flags().StringVar(&value, "value", "", "field reduced per cell")
	cmd.Flags().StringVar(&op, "operation", "Count", "Count, Sum, Min, Max, Avg, CountRatio or SumRatio")
	_ = cmd.MarkFlagRequired("jql")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func compareCmd(gf *globalFlags) *cobra.Command {
	var (
		baselineJQL, compareJQL  string
		group, subGroup          groupingFlags
		compareGroup, compareSub groupingFlags
		value, op                string
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Divide a comparison pivot table by a baseline pivot table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := query.ComparisonRequest{
				BaselineJQL: baselineJQL,
				CompareJQL:  compareJQL,
				Group:       group.grouping(),
				SubGroup:    subGroup.grouping(),
				Value:       issue.FieldAggregation{Field: value, Operation: issue.ParseOperation(op)},
			}
			if compareGroup.field != "" {
				g := compareGroup.grouping()
				req.CompareGroup = &g
			}
			if compareSub.field != "" {
				g := compareSub.grouping()
				req.CompareSubGroup = &g
			}
			return run(cmd, gf, func(ctx context.Context, svc *query.Service) (any, error) {
				return svc.Compare(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&baselineJQL, "baseline-jql", "", "JQL of the baseline table (required)")
	cmd.Flags().StringVar(&compareJQL, "compare-jql", "", "JQL of the comparison table (required)")
	group.register(cmd, "group", "row field (required)")
	subGroup.register(cmd, "sub-group", "column field")
	compareGroup.register(cmd, "compare-group", "row field of the comparison table (default --group)")
	compareSub.register(cmd, "compare-sub-group", "column field of the comparison table (default --sub-group)")
	cmd.Flags().StringVar(&value, "value", "", "field reduced per cell")
	cmd.Flags().StringVar(&op, "operation", "Count", "Count, Sum, Min, Max, Avg, CountRatio or SumRatio")
	_ = cmd.MarkFlagRequired("baseline-jql")
	_ = cmd.MarkFlagRequired("compare-jql")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

// run wires a query.Service from the config, runs fn under the global
// deadline and prints its result as indented JSON.
func run(cmd *cobra.Command, gf *globalFlags, fn func(context.Context, *query.Service) (any, error)) error {
	if gf.envFile != "" {
		if err := godotenv.Load(gf.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", gf.envFile, err)
		}
	}
	level := slog.LevelError
	if gf.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return err
	}
	client := jira.New(cfg.Jira)
	cache := refdata.New(client, cfg.Refdata.TTL)
	svc := query.New(client, cache, cfg.Mapping)

	ctx, cancel := context.WithTimeout(cmd.Context(), gf.timeout)
	defer cancel()
	result, err := fn(ctx, svc)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// splitList splits a comma-separated flag, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
