package services

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/golang-sql/civil"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
)

// ToCSV serializes tasks in the fixed column order, one row per task in input order.
func ToCSV(tasks []task.Task) string {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, tasks)
	return buf.String()
}

func WriteCSV(w io.Writer, tasks []task.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := cw.Write(TaskRecord(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TaskRecord renders t as cells in Columns order.
func TaskRecord(t task.Task) []string {
	return []string{
		t.ProjectName,
		strconv.Itoa(t.TaskID),
		t.TaskName,
		t.Start.String(),
		t.Finish.String(),
		formatNumber(t.DurationDays),
		formatNumber(t.ProgressPercent),
		string(t.ResourceType),
		t.ContractorName,
		formatNumber(t.UnitCost),
		formatNumber(t.ContractAmount),
		formatNumber(t.PlannedCost),
		formatNumber(t.ActualCost),
		formatDate(t.ActualStart),
		formatDate(t.ActualFinish),
		FormatDependencies(t.PredIDs),
		t.Notes,
	}
}

// ErrorsToCSV serializes import errors with the header Row,Column,Message,Value.
func ErrorsToCSV(errs []task.ImportError) string {
	var buf bytes.Buffer
	_ = WriteErrorsCSV(&buf, errs)
	return buf.String()
}

func WriteErrorsCSV(w io.Writer, errs []task.ImportError) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ErrorColumns); err != nil {
		return err
	}
	for _, e := range errs {
		if err := cw.Write([]string{strconv.Itoa(e.Row), e.Column, e.Message, e.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatNumber(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatDate(p *civil.Date) string {
	if p == nil {
		return ""
	}
	return p.String()
}

// FormatDependencies renders predecessor IDs as a Dependencies cell.
func FormatDependencies(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}
