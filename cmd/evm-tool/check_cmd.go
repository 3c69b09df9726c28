package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/modules/schedule/infrastructure/files"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
)

type checkOptions struct {
	unknownDeps string
	errorsCSV   string
	json        bool
	limit       int
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a schedule CSV and report row errors and dependency stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := envDefaults(cmd, &opts.unknownDeps, &opts.limit); err != nil {
				return err
			}
			return runCheck(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.unknownDeps, "unknown-deps", "", "Unknown predecessor handling: error|warn (default EVM_UNKNOWN_DEPS or error)")
	cmd.Flags().StringVar(&opts.errorsCSV, "errors-csv", "", "Write the error list as CSV to this path")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the import result as JSON")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Number of errors to print (default EVM_ERROR_PREVIEW or 10)")
	return cmd
}

func runCheck(out io.Writer, path string, opts checkOptions) error {
	if opts.limit < 0 {
		return withCode(exitUsage, fmt.Errorf("invalid --limit %d", opts.limit))
	}
	res, err := readSchedule(path, opts.unknownDeps)
	if err != nil {
		return err
	}

	if opts.json {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		printCheckReport(out, path, res, opts.limit)
	}

	if opts.errorsCSV != "" && len(res.Errors) > 0 {
		if err := files.WriteTextFile(opts.errorsCSV, services.ErrorsToCSV(res.Errors)); err != nil {
			return withCode(exitIO, err)
		}
		if !opts.json {
			fmt.Fprintf(out, "Wrote errors CSV: %s\n", opts.errorsCSV)
		}
	}

	if res.Stats.Failed > 0 {
		return withCode(exitValidation, fmt.Errorf("%d of %d rows failed validation", res.Stats.Failed, res.Stats.Rows))
	}
	return nil
}

func printCheckReport(out io.Writer, path string, res *task.ImportResult, limit int) {
	fmt.Fprintf(out, "# CSV Check: %s\n", path)
	fmt.Fprintf(out, "Rows %d / Imported %d / Failed %d\n", res.Stats.Rows, res.Stats.Imported, res.Stats.Failed)
	if d := res.Stats.Dep; d != nil {
		fmt.Fprintf(out, "Deps: Cycles %d / Isolated %d / UnknownRefs %d\n", d.Cycles, d.Isolated, d.UnknownRefs)
		if len(d.CyclesList) > 0 {
			fmt.Fprintf(out, "Cycle example: %s\n", services.FormatCycle(d.CyclesList[0]))
		}
	}
	if len(res.Stats.ByColumn) > 0 {
		cols := make([]string, 0, len(res.Stats.ByColumn))
		for col := range res.Stats.ByColumn {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		items := make([]string, 0, len(cols))
		for _, col := range cols {
			items = append(items, fmt.Sprintf("%s:%d", col, res.Stats.ByColumn[col]))
		}
		fmt.Fprintf(out, "ByColumn: %s\n", strings.Join(items, " / "))
	}
	if len(res.Errors) == 0 {
		fmt.Fprintln(out, "No errors.")
		return
	}
	shown := res.Errors
	if len(shown) > limit {
		shown = shown[:limit]
	}
	fmt.Fprintf(out, "Errors (first %d of %d):\n", len(shown), len(res.Errors))
	for _, e := range shown {
		line := fmt.Sprintf("  Row %d %s %s", e.Row, e.Column, e.Message)
		if e.Value != "" {
			line += " [" + e.Value + "]"
		}
		fmt.Fprintln(out, line)
	}
}
