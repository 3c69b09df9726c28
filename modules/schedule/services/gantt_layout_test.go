package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
)

func TestTimeScale(t *testing.T) {
	s := TimeScale{Origin: day(t, "2025-01-06"), PxPerDay: 24}

	assert.InDelta(t, 48, s.DateToX(day(t, "2025-01-08")), 1e-9)
	assert.InDelta(t, -24, s.DateToX(day(t, "2025-01-05")), 1e-9)
	assert.Equal(t, day(t, "2025-01-08"), s.XToDate(50))
	assert.Equal(t, day(t, "2025-01-06"), s.XToDate(-100))
	assert.InDelta(t, 48, SnapPx(40, 24), 1e-9)
	assert.InDelta(t, 0, SnapPx(11, 24), 1e-9)
}

func TestTimeScale_Bars(t *testing.T) {
	s := TimeScale{Origin: day(t, "2025-01-06"), PxPerDay: 10}

	assert.Equal(t, BarRect{X: 10, Width: 30}, s.PlanBar(day(t, "2025-01-07"), day(t, "2025-01-09")))
	assert.Equal(t, BarRect{X: 30, Width: 0}, s.PlanBar(day(t, "2025-01-09"), day(t, "2025-01-07")))

	assert.Nil(t, s.ActualBar(nil, dayPtr(t, "2025-01-07"), nil))
	assert.Nil(t, s.ActualBar(dayPtr(t, "2025-01-06"), nil, nil))
	assert.Equal(t, &BarRect{X: 0, Width: 20}, s.ActualBar(dayPtr(t, "2025-01-06"), nil, dayPtr(t, "2025-01-07")))
	assert.Equal(t, &BarRect{X: 0, Width: 10}, s.ActualBar(dayPtr(t, "2025-01-06"), dayPtr(t, "2025-01-06"), dayPtr(t, "2025-01-09")))
}

func TestBuildTripleHeader_AcrossMonths(t *testing.T) {
	h := BuildTripleHeader(day(t, "2025-01-30"), day(t, "2025-02-02"), 20)

	assert.Equal(t, []HeaderSegment{
		{Label: "2025-01", X: 0, Width: 40},
		{Label: "2025-02", X: 40, Width: 40},
	}, h.Months)
	require.Len(t, h.Days, 4)
	assert.Equal(t, []string{"30", "31", "01", "02"}, labels(h.Days))
	assert.Equal(t, []string{"木", "金", "土", "日"}, labels(h.Weekdays))
	assert.InDelta(t, 60, h.Days[3].X, 1e-9)
}

func TestBuildTripleHeader_Empty(t *testing.T) {
	h := BuildTripleHeader(day(t, "2025-02-02"), day(t, "2025-01-30"), 20)
	assert.Empty(t, h.Months)
	assert.NotNil(t, h.Days)
}

func labels(segs []HeaderSegment) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Label)
	}
	return out
}

func TestHitTest(t *testing.T) {
	boxes := []HitBox{
		{TaskID: 1, X: 100, Y: 0, Width: 100},
		{TaskID: 2, X: 100, Y: 20, Width: 100, BarY: 25, BarHeight: 10},
	}

	cases := []struct {
		name   string
		mx, my float64
		id     int
		kind   HitKind
		ok     bool
	}{
		{"left edge", 103, 5, 1, HitResizeStart, true},
		{"left padding", 96, 5, 1, HitResizeStart, true},
		{"middle", 150, 5, 1, HitMove, true},
		{"right edge", 197, 5, 1, HitResizeFinish, true},
		{"right padding", 203, 5, 1, HitResizeFinish, true},
		{"left of bar", 90, 5, 0, "", false},
		{"bar band", 150, 30, 2, HitMove, true},
		{"row but outside bar band", 150, 39.5, 0, "", false},
		{"below every row", 150, 60, 0, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			box, kind, ok := HitTest(tc.mx, tc.my, boxes, 20)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.id, box.TaskID)
		})
	}
}

func TestHitKind_DragMode(t *testing.T) {
	assert.Equal(t, DragMove, HitMove.DragMode())
	assert.Equal(t, DragResizeStart, HitResizeStart.DragMode())
	assert.Equal(t, DragResizeFinish, HitResizeFinish.DragMode())
}

func TestBuildGanttLayout(t *testing.T) {
	a := mkTask(t, 1, "2025-01-06", "2025-01-08")
	a.ProgressPercent = task.Ptr(50.0)
	a.ActualStart = dayPtr(t, "2025-01-06")
	b := mkTask(t, 2, "2025-01-07", "2025-01-10", 1)
	b.ProgressPercent = task.Ptr(150.0)

	layout := BuildGanttLayout([]task.Task{a, b}, 10, dayPtr(t, "2025-01-07"))

	assert.Equal(t, TimeScale{Origin: day(t, "2025-01-06"), PxPerDay: 10}, layout.Scale)
	assert.Len(t, layout.Header.Days, 5)
	require.Len(t, layout.Rows, 2)

	assert.Equal(t, BarRect{X: 0, Width: 30}, layout.Rows[0].Plan)
	assert.Equal(t, &BarRect{X: 0, Width: 20}, layout.Rows[0].Actual)
	assert.InDelta(t, 0.5, layout.Rows[0].Progress, 1e-9)
	assert.False(t, layout.Rows[0].Violation)

	assert.Equal(t, BarRect{X: 10, Width: 40}, layout.Rows[1].Plan)
	assert.Nil(t, layout.Rows[1].Actual)
	assert.InDelta(t, 1, layout.Rows[1].Progress, 1e-9)
	assert.True(t, layout.Rows[1].Violation)
}

func TestBuildGanttLayout_Empty(t *testing.T) {
	layout := BuildGanttLayout(nil, 24, nil)
	assert.NotNil(t, layout.Rows)
	assert.Empty(t, layout.Rows)
	assert.Empty(t, layout.Header.Days)
}
