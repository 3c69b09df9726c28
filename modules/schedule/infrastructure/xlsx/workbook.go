// Package xlsx renders a schedule as an Excel workbook.
package xlsx

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/golang-sql/civil"
	"github.com/xuri/excelize/v2"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/calendar"
)

const (
	SheetTasks  = "Tasks"
	SheetEVM    = "EVM"
	SheetErrors = "Errors"
)

// Report is everything a workbook is built from. Errors may be empty.
type Report struct {
	Tasks    []task.Task
	Errors   []task.ImportError
	AsOf     civil.Date
	Calendar *calendar.Calendar
}

// Build lays out the Tasks sheet in CSV column order, an EVM sheet with the
// portfolio summary followed by per-task contributions, and an Errors sheet.
func Build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetTasks); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "rename sheet")
	}
	for _, name := range []string{SheetEVM, SheetErrors} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "create sheet %s", name)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "create style")
	}

	steps := []func(*excelize.File, int) error{
		func(f *excelize.File, style int) error { return writeTasks(f, style, r.Tasks) },
		func(f *excelize.File, style int) error { return writeEVM(f, style, r) },
		func(f *excelize.File, style int) error { return writeErrors(f, style, r.Errors) },
	}
	for _, step := range steps {
		if err := step(f, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, r Report) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrapf(err, "write %s header", sheet)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return errors.Wrapf(err, "style %s header", sheet)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write %s row %d", sheet, i+2)
		}
	}
	return nil
}

func strings2any(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func number(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func date(p *civil.Date) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func writeTasks(f *excelize.File, style int, tasks []task.Task) error {
	rows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []any{
			t.ProjectName,
			t.TaskID,
			t.TaskName,
			t.Start.String(),
			t.Finish.String(),
			number(t.DurationDays),
			number(t.ProgressPercent),
			string(t.ResourceType),
			t.ContractorName,
			number(t.UnitCost),
			number(t.ContractAmount),
			number(t.PlannedCost),
			number(t.ActualCost),
			date(t.ActualStart),
			date(t.ActualFinish),
			services.FormatDependencies(t.PredIDs),
			t.Notes,
		})
	}
	return writeRows(f, SheetTasks, style, strings2any(services.Columns), rows)
}

func writeEVM(f *excelize.File, style int, r Report) error {
	summary := services.BuildEVMSummary(r.Tasks, r.AsOf, r.Calendar)
	res := summary.Result
	// The per-task table header lands on row 11.
	rows := [][]any{
		{"AsOf", r.AsOf.String()},
		{"PV", res.PV},
		{"EV", res.EV},
		{"AC", res.AC},
		{"SV", res.SV},
		{"CV", res.CV},
		{"SPI", res.SPI},
		{"CPI", res.CPI},
		{},
		{"TaskID", "TaskName", "PlannedTotal", "PlannedFraction", "PV", "EV", "AC"},
	}
	for _, row := range services.ComputeTaskEVM(r.Tasks, r.AsOf, r.Calendar) {
		rows = append(rows, []any{row.TaskID, row.TaskName, row.PlannedTotal, row.PlannedFraction, row.PV, row.EV, row.AC})
	}
	if err := writeRows(f, SheetEVM, style, []any{"Metric", "Value"}, rows); err != nil {
		return err
	}
	return f.SetCellStyle(SheetEVM, "A11", "G11", style)
}

func writeErrors(f *excelize.File, style int, errs []task.ImportError) error {
	rows := make([][]any, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, []any{e.Row, e.Column, e.Message, e.Value})
	}
	return writeRows(f, SheetErrors, style, strings2any(services.ErrorColumns), rows)
}
