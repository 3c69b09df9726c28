package main

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3chihiro/evm-tool/modules/schedule/infrastructure/files"
	"github.com/3chihiro/evm-tool/modules/schedule/infrastructure/xlsx"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/configuration"
)

type exportOptions struct {
	output      string
	asOf        string
	calendar    string
	unknownDeps string
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Re-export the accepted tasks as CSV, or as an XLSX workbook with EVM and errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := envDefaults(cmd, &opts.unknownDeps, nil)
			if err != nil {
				return err
			}
			return runExport(cmd.OutOrStdout(), cmd.ErrOrStderr(), conf, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path; .xlsx selects a workbook, anything else CSV (required)")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "As-of date for the EVM sheet (YYYY-MM-DD, default today UTC)")
	cmd.Flags().StringVar(&opts.calendar, "calendar", "", "Calendar file (.yaml, .json or .toml); default EVM_CALENDAR_FILE or EVM_HOLIDAYS/EVM_OFF_WEEKDAYS")
	cmd.Flags().StringVar(&opts.unknownDeps, "unknown-deps", "", "Unknown predecessor handling: error|warn (default EVM_UNKNOWN_DEPS or error)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runExport(out, errOut io.Writer, conf *configuration.Configuration, path string, opts exportOptions) error {
	if strings.TrimSpace(opts.output) == "" {
		return withCode(exitUsage, fmt.Errorf("--output is required"))
	}
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

	if strings.EqualFold(filepath.Ext(opts.output), ".xlsx") {
		var buf bytes.Buffer
		report := xlsx.Report{Tasks: res.Tasks, Errors: res.Errors, AsOf: asOf, Calendar: cal}
		if err := xlsx.Write(&buf, report); err != nil {
			return withCode(exitIO, err)
		}
		if err := files.WriteFile(opts.output, buf.Bytes()); err != nil {
			return withCode(exitIO, err)
		}
	} else if err := files.WriteTextFile(opts.output, services.ToCSV(res.Tasks)); err != nil {
		return withCode(exitIO, err)
	}

	if opts.output != "-" {
		fmt.Fprintf(out, "Wrote %d tasks to %s\n", len(res.Tasks), opts.output)
	}
	return nil
}
