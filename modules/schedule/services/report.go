package services

import (
	"math"
	"strconv"

	"github.com/golang-sql/civil"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/calendar"
	"github.com/3chihiro/evm-tool/pkg/money"
)

// SummaryItem is one labelled line of the EVM summary.
type SummaryItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// EVMSummary is a display-ready rendering of EvmResult.
type EVMSummary struct {
	AsOf    civil.Date    `json:"asOf"`
	Result  EvmResult     `json:"result"`
	Items   []SummaryItem `json:"items"`
	Summary string        `json:"summary"`
}

func BuildEVMSummary(tasks []task.Task, asOf civil.Date, cal *calendar.Calendar) EVMSummary {
	r := ComputeEVM(tasks, asOf, cal)
	items := []SummaryItem{
		{Label: "PV", Value: money.FormatYen(float64(r.PV))},
		{Label: "EV", Value: money.FormatYen(float64(r.EV))},
		{Label: "AC", Value: money.FormatYen(float64(r.AC))},
		{Label: "SV", Value: money.FormatYen(float64(r.SV))},
		{Label: "CV", Value: money.FormatYen(float64(r.CV))},
		{Label: "SPI", Value: money.FormatRatio(r.SPI)},
		{Label: "CPI", Value: money.FormatRatio(r.CPI)},
	}
	summary := "As of " + asOf.String()
	for _, it := range items {
		summary += " | " + it.Label + " " + it.Value
	}
	return EVMSummary{AsOf: asOf, Result: r, Items: items, Summary: summary}
}

// TableColumns is the header of the task table view.
var TableColumns = []string{
	ColTaskID,
	ColTaskName,
	ColStart,
	ColFinish,
	ColDurationDays,
	"Progress",
	ColResourceType,
	"Contractor",
	ColUnitCost,
	ColContractAmount,
	ColPlannedCost,
	ColActualCost,
	ColNotes,
}

// BuildTaskTable renders tasks for display: progress as a rounded percentage
// and money columns in yen. Missing values are empty.
func BuildTaskTable(tasks []task.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.Itoa(t.TaskID),
			t.TaskName,
			t.Start.String(),
			t.Finish.String(),
			formatNumber(t.DurationDays),
			formatPercent(t.ProgressPercent),
			string(t.ResourceType),
			t.ContractorName,
			formatYen(t.UnitCost),
			formatYen(t.ContractAmount),
			formatYen(t.PlannedCost),
			formatYen(t.ActualCost),
			t.Notes,
		})
	}
	return rows
}

func formatPercent(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(int(math.Round(finite(p)))) + "%"
}

func formatYen(p *float64) string {
	if p == nil {
		return ""
	}
	return money.FormatYen(*p)
}
