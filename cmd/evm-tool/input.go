package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"
	"github.com/spf13/cobra"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/modules/schedule/infrastructure/files"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/calendar"
	"github.com/3chihiro/evm-tool/pkg/configuration"
)

// envDefaults reads the EVM_* environment, which supplies the value of any
// of unknown-deps, limit and calendar that the command line leaves unset.
func envDefaults(cmd *cobra.Command, unknownDeps *string, limit *int) (*configuration.Configuration, error) {
	conf, err := configuration.Load(nil)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	conf.Unload()
	if unknownDeps != nil && !cmd.Flags().Changed("unknown-deps") {
		*unknownDeps = conf.Import.UnknownDeps
	}
	if limit != nil && !cmd.Flags().Changed("limit") {
		*limit = conf.Import.ErrorPreview
	}
	return conf, nil
}

func readSchedule(path, unknownDeps string) (*task.ImportResult, error) {
	mode, err := services.ParseUnknownDepsMode(unknownDeps)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	text, err := files.ReadTextFile(path)
	if err != nil {
		if errors.Is(err, files.ErrNotText) {
			return nil, withCode(exitValidation, err)
		}
		return nil, withCode(exitIO, err)
	}
	return services.ParseCSVText(text, services.ImportOptions{UnknownDeps: mode}), nil
}

// loadCalendar falls back to EVM_CALENDAR_FILE, EVM_HOLIDAYS and
// EVM_OFF_WEEKDAYS when path is empty.
func loadCalendar(path string, conf *configuration.Configuration) (*calendar.Calendar, error) {
	if strings.TrimSpace(path) == "" {
		cal, err := conf.BuildCalendar()
		if err != nil {
			return nil, withCode(exitUsage, err)
		}
		return cal, nil
	}
	cal, err := calendar.LoadFile(path)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("invalid --calendar: %w", err))
	}
	return cal, nil
}

func parseAsOf(v string) (civil.Date, error) {
	if strings.TrimSpace(v) == "" {
		return calendar.Today(), nil
	}
	d, err := calendar.ParseISO(strings.TrimSpace(v))
	if err != nil {
		return civil.Date{}, withCode(exitUsage, fmt.Errorf("invalid --as-of: %w", err))
	}
	return d, nil
}

// parseTaskIDs accepts "1,2" as well as repeated flags.
func parseTaskIDs(values []string) ([]int, error) {
	var ids []int
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id <= 0 {
				return nil, withCode(exitUsage, fmt.Errorf("invalid --task %q", part))
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, withCode(exitUsage, errors.New("--task is required"))
	}
	return ids, nil
}
