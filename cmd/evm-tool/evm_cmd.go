package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/configuration"
	"github.com/3chihiro/evm-tool/pkg/money"
)

type evmOptions struct {
	asOf        string
	calendar    string
	unknownDeps string
	byTask      bool
	json        bool
}

type evmOutput struct {
	services.EVMSummary
	Tasks []services.TaskEVM `json:"tasks,omitempty"`
}

func newEVMCmd() *cobra.Command {
	var opts evmOptions

	cmd := &cobra.Command{
		Use:   "evm <file>",
		Short: "Compute PV, EV, AC, SV, CV, SPI and CPI for a schedule CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := envDefaults(cmd, &opts.unknownDeps, nil)
			if err != nil {
				return err
			}
			return runEVM(cmd.OutOrStdout(), cmd.ErrOrStderr(), conf, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "As-of date (YYYY-MM-DD, default today UTC)")
	cmd.Flags().StringVar(&opts.calendar, "calendar", "", "Calendar file (.yaml, .json or .toml); default EVM_CALENDAR_FILE or EVM_HOLIDAYS/EVM_OFF_WEEKDAYS")
	cmd.Flags().StringVar(&opts.unknownDeps, "unknown-deps", "", "Unknown predecessor handling: error|warn (default EVM_UNKNOWN_DEPS or error)")
	cmd.Flags().BoolVar(&opts.byTask, "by-task", false, "Include the per-task breakdown")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print JSON")
	return cmd
}

func runEVM(out, errOut io.Writer, conf *configuration.Configuration, path string, opts evmOptions) error {
	asOf, err := parseAsOf(opts.asOf)
	if err != nil {
		return err
	}
	cal, err := loadCalendar(opts.calendar, conf)
	if err != nil {
		return err
	}
	res, err := readSchedule(path, opts.unknownDeps)
	if err != nil {
		return err
	}
	warnSkipped(errOut, res)

	result := evmOutput{EVMSummary: services.BuildEVMSummary(res.Tasks, asOf, cal)}
	if opts.byTask {
		result.Tasks = services.ComputeTaskEVM(res.Tasks, asOf, cal)
	}
	if opts.json {
		return writeJSON(out, result)
	}

	fmt.Fprintln(out, result.Summary)
	if opts.byTask {
		return printTaskEVM(out, result.Tasks)
	}
	return nil
}

func printTaskEVM(out io.Writer, rows []services.TaskEVM) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TaskID\tTaskName\tPlanned\tPlanned%\tPV\tEV\tAC\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.TaskID,
			r.TaskName,
			money.FormatYen(r.PlannedTotal),
			strconv.FormatFloat(r.PlannedFraction*100, 'f', 1, 64),
			money.FormatYen(r.PV),
			money.FormatYen(r.EV),
			money.FormatYen(r.AC),
		)
	}
	if err := tw.Flush(); err != nil {
		return withCode(exitIO, err)
	}
	return nil
}

// warnSkipped tells the user that rows with errors are left out of the result.
func warnSkipped(errOut io.Writer, res *task.ImportResult) {
	if res.Stats.Failed > 0 {
		fmt.Fprintf(errOut, "warning: %d of %d rows failed validation and were skipped (run check for details)\n",
			res.Stats.Failed, res.Stats.Rows)
	}
}
