package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3chihiro/evm-tool/modules/schedule/infrastructure/files"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/configuration"
	"github.com/3chihiro/evm-tool/pkg/history"
)

type shiftOptions struct {
	tasks             []string
	days              int
	mode              string
	linked            bool
	actualFollowsPlan bool
	output            string
	diff              bool
	calendar          string
	unknownDeps       string
}

func newShiftCmd() *cobra.Command {
	var opts shiftOptions

	cmd := &cobra.Command{
		Use:   "shift <file>",
		Short: "Move or resize tasks by whole days, enforcing finish-to-start dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := envDefaults(cmd, &opts.unknownDeps, nil)
			if err != nil {
				return err
			}
			return runShift(cmd.OutOrStdout(), cmd.ErrOrStderr(), conf, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.tasks, "task", nil, "Task IDs to shift, e.g. 3 or 3,4 (required)")
	cmd.Flags().IntVar(&opts.days, "days", 0, "Shift in days; negative moves earlier")
	cmd.Flags().StringVar(&opts.mode, "mode", string(services.DragMove), "Edit mode: move|resize-start|resize-finish")
	cmd.Flags().BoolVar(&opts.linked, "linked", false, "Shift dependent tasks along")
	cmd.Flags().BoolVar(&opts.actualFollowsPlan, "actual-follows-plan", false, "Shift actual dates with the plan")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output CSV path, - for stdout (required)")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "Print the change as an RFC 6902 JSON patch")
	cmd.Flags().StringVar(&opts.calendar, "calendar", "", "Calendar file (.yaml, .json or .toml); default EVM_CALENDAR_FILE or EVM_HOLIDAYS/EVM_OFF_WEEKDAYS")
	cmd.Flags().StringVar(&opts.unknownDeps, "unknown-deps", "", "Unknown predecessor handling: error|warn (default EVM_UNKNOWN_DEPS or error)")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runShift(out, errOut io.Writer, conf *configuration.Configuration, path string, opts shiftOptions) error {
	ids, err := parseTaskIDs(opts.tasks)
	if err != nil {
		return err
	}
	mode, err := services.ParseDragMode(opts.mode)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if strings.TrimSpace(opts.output) == "" {
		return withCode(exitUsage, errors.New("--output is required"))
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

	dragOpts := services.DragOptions{
		PxPerDay:          1,
		LinkedShifts:      opts.linked,
		ActualFollowsPlan: opts.actualFollowsPlan,
	}
	command, _, err := services.ShiftTasks(res.Tasks, ids, opts.days, mode, dragOpts, cal)
	if err != nil {
		var violation *services.ViolationError
		if errors.As(err, &violation) {
			return withCode(exitConstraint, err)
		}
		return withCode(exitUsage, err)
	}

	before := res.Tasks
	after := before
	if command != nil {
		after = command.Apply(before)
	}

	// Keep stdout a clean CSV stream when writing the result there.
	report := out
	if opts.output == "-" {
		report = errOut
	}
	printChanges(report, command)

	if opts.diff {
		patch, err := history.NewPatchCommand(before, after)
		if err != nil {
			return withCode(exitIO, err)
		}
		fmt.Fprintln(report, string(patch.Operations()))
	}

	if err := files.WriteTextFile(opts.output, services.ToCSV(after)); err != nil {
		return withCode(exitIO, err)
	}
	return nil
}

func printChanges(out io.Writer, command *services.ScheduleCommand) {
	if command == nil {
		fmt.Fprintln(out, "No changes.")
		return
	}
	fmt.Fprintf(out, "%s: %d task(s) changed\n", command.Label, len(command.Changes))
	for _, ch := range command.Changes {
		fmt.Fprintf(out, "  Task %d: %s..%s -> %s..%s\n",
			ch.TaskID, ch.Before.Start, ch.Before.Finish, ch.After.Start, ch.After.Finish)
	}
}
