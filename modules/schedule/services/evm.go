package services

import (
	"math"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/calendar"
)

// EvmResult holds portfolio EVM metrics. Currency values are whole units.
type EvmResult struct {
	PV  int64   `json:"PV"`
	EV  int64   `json:"EV"`
	AC  int64   `json:"AC"`
	SV  int64   `json:"SV"`
	CV  int64   `json:"CV"`
	SPI float64 `json:"SPI"`
	CPI float64 `json:"CPI"`
}

// TaskEVM is the contribution of a single task, before rounding.
type TaskEVM struct {
	TaskID          int     `json:"taskId"`
	TaskName        string  `json:"taskName"`
	PlannedTotal    float64 `json:"plannedTotal"`
	PlannedFraction float64 `json:"plannedFraction"`
	PV              float64 `json:"pv"`
	EV              float64 `json:"ev"`
	AC              float64 `json:"ac"`
}

func finite(p *float64) float64 {
	v := task.Float(p)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// WorkingDaysForTask is the explicit DurationDays when set, else the working days between start and finish.
func WorkingDaysForTask(t task.Task, cal *calendar.Calendar) float64 {
	if t.DurationDays != nil {
		return finite(t.DurationDays)
	}
	return float64(cal.CountWorkingDays(t.Start, t.Finish))
}

// PlannedTotal is the budget at completion of t. An explicit PlannedCost
// always wins, even if unit cost or contract amount were edited later.
func PlannedTotal(t task.Task, cal *calendar.Calendar) float64 {
	if t.PlannedCost != nil && !math.IsNaN(*t.PlannedCost) && !math.IsInf(*t.PlannedCost, 0) {
		return *t.PlannedCost
	}
	wd := WorkingDaysForTask(t, cal)
	contract := finite(t.ContractAmount)
	unit := finite(t.UnitCost)

	switch t.ResourceType {
	case task.Contractor:
		if contract > 0 {
			return contract
		}
	case task.InHouse:
		if unit > 0 && wd > 0 {
			return unit * wd
		}
	}

	if contract != 0 && wd > 0 {
		return contract
	}
	if unit != 0 && wd > 0 {
		return unit * wd
	}
	return 0
}

// PlannedFraction is the share of working days in [start, finish] elapsed by asOf.
func PlannedFraction(start, finish, asOf civil.Date, cal *calendar.Calendar) float64 {
	if start.After(finish) {
		return 0
	}
	total := cal.CountWorkingDays(start, finish)
	if total <= 0 {
		return 0
	}
	if asOf.Before(start) {
		return 0
	}
	worked := cal.CountWorkingDays(start, calendar.MinDate(asOf, finish))
	return clamp01(float64(worked) / float64(total))
}

// DailyRateFromContract spreads a contract amount over its duration; 0 for non-positive durations.
func DailyRateFromContract(amount, days float64) float64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || math.IsNaN(days) || math.IsInf(days, 0) || days <= 0 {
		return 0
	}
	return amount / days
}

// ComputeTaskEVM returns each task's contribution to ComputeEVM, in input order.
func ComputeTaskEVM(tasks []task.Task, asOf civil.Date, cal *calendar.Calendar) []TaskEVM {
	out := make([]TaskEVM, 0, len(tasks))
	for _, t := range tasks {
		total := PlannedTotal(t, cal)
		frac := PlannedFraction(t.Start, t.Finish, asOf, cal)
		out = append(out, TaskEVM{
			TaskID:          t.TaskID,
			TaskName:        t.TaskName,
			PlannedTotal:    total,
			PlannedFraction: frac,
			PV:              total * frac,
			EV:              total * clamp01(finite(t.ProgressPercent)/100),
			AC:              finite(t.ActualCost),
		})
	}
	return out
}

// roundHalfUp rounds to the nearest integer with halves going toward +Inf,
// so -0.5 becomes 0 and 2.5 becomes 3.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Add(decimal.NewFromFloat(0.5)).Floor().IntPart()
}

// ComputeEVM aggregates PV, EV and AC over tasks as of asOf. Sums are rounded
// to whole currency units only after accumulation.
func ComputeEVM(tasks []task.Task, asOf civil.Date, cal *calendar.Calendar) EvmResult {
	pv, ev, ac := decimal.Zero, decimal.Zero, decimal.Zero
	for _, row := range ComputeTaskEVM(tasks, asOf, cal) {
		pv = pv.Add(decimal.NewFromFloat(row.PlannedTotal).Mul(decimal.NewFromFloat(row.PlannedFraction)))
		ev = ev.Add(decimal.NewFromFloat(row.EV))
		ac = ac.Add(decimal.NewFromFloat(row.AC))
	}

	res := EvmResult{
		PV: roundHalfUp(pv),
		EV: roundHalfUp(ev),
		AC: roundHalfUp(ac),
	}
	res.SV = res.EV - res.PV
	res.CV = res.EV - res.AC
	if res.PV != 0 {
		res.SPI = float64(res.EV) / float64(res.PV)
	}
	if res.AC != 0 {
		res.CPI = float64(res.EV) / float64(res.AC)
	}
	return res
}
