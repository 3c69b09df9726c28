package calendar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(t *testing.T, v string) civil.Date {
	t.Helper()
	out, err := ParseISO(v)
	require.NoError(t, err)
	return out
}

func TestIsWorkingDay_DefaultWeekendsOff(t *testing.T) {
	cal := Default()
	require.True(t, cal.IsWorkingDay(d(t, "2025-01-06")))  // Mon
	require.True(t, cal.IsWorkingDay(d(t, "2025-01-10")))  // Fri
	require.False(t, cal.IsWorkingDay(d(t, "2025-01-11"))) // Sat
	require.False(t, cal.IsWorkingDay(d(t, "2025-01-12"))) // Sun
}

func TestIsWorkingDay_NilCalendarUsesDefault(t *testing.T) {
	var cal *Calendar
	require.False(t, cal.IsWorkingDay(d(t, "2025-01-11")))
	require.Equal(t, 5, cal.CountWorkingDays(d(t, "2025-01-06"), d(t, "2025-01-12")))
}

func TestCountWorkingDays_HolidayOnWeekendChangesNothing(t *testing.T) {
	cal := New([]civil.Date{d(t, "2025-01-12")}, nil)
	require.Equal(t, 5, cal.CountWorkingDays(d(t, "2025-01-06"), d(t, "2025-01-12")))
}

func TestCountWorkingDays_WeekdayHoliday(t *testing.T) {
	cal := New([]civil.Date{d(t, "2025-01-08")}, nil)
	require.Equal(t, 4, cal.CountWorkingDays(d(t, "2025-01-06"), d(t, "2025-01-10")))
	require.Equal(t, []civil.Date{d(t, "2025-01-06"), d(t, "2025-01-07"), d(t, "2025-01-09"), d(t, "2025-01-10")},
		cal.WorkingDays(d(t, "2025-01-06"), d(t, "2025-01-10")))
}

func TestCountWorkingDays_Degenerate(t *testing.T) {
	cal := Default()
	require.Equal(t, 0, cal.CountWorkingDays(d(t, "2025-01-10"), d(t, "2025-01-06")))
	require.Equal(t, 1, cal.CountWorkingDays(d(t, "2025-01-06"), d(t, "2025-01-06")))
	require.Equal(t, 0, cal.CountWorkingDays(d(t, "2025-01-11"), d(t, "2025-01-11")))
	require.Empty(t, cal.WorkingDays(d(t, "2025-01-10"), d(t, "2025-01-06")))
}

func TestCountWorkingDays_EmptyOffWeekdays(t *testing.T) {
	cal := New(nil, []time.Weekday{})
	require.Equal(t, 7, cal.CountWorkingDays(d(t, "2025-01-06"), d(t, "2025-01-12")))
	require.Empty(t, cal.OffWeekdays())
}

func TestSnap(t *testing.T) {
	cal := Default()
	require.Equal(t, d(t, "2025-01-13"), cal.Snap(d(t, "2025-01-11"), 1))
	require.Equal(t, d(t, "2025-01-10"), cal.Snap(d(t, "2025-01-12"), -1))
	require.Equal(t, d(t, "2025-01-08"), cal.Snap(d(t, "2025-01-08"), -1))
}

func TestSnap_GivesUpWithoutWorkingDays(t *testing.T) {
	cal := New(nil, []time.Weekday{0, 1, 2, 3, 4, 5, 6})
	require.Equal(t, d(t, "2025-01-08"), cal.Snap(d(t, "2025-01-08"), 1))
}

func TestParseISO_Strict(t *testing.T) {
	for _, bad := range []string{"2025/01/06", "2025-1-6", "06-01-2025", "2025-02-30", "2025-01-06T00:00:00Z", ""} {
		_, err := ParseISO(bad)
		assert.Error(t, err, bad)
	}
	got, err := ParseISO("2024-02-29")
	require.NoError(t, err)
	require.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 29}, got)
}

func TestClamp(t *testing.T) {
	cases := map[string]string{
		"2025-01-06":                "2025-01-06",
		"2025-01-06T23:30:00+09:00": "2025-01-06",
		"2025-01-06T20:00:00-05:00": "2025-01-07",
		"2025/01/06":                "2025-01-06",
	}
	for in, want := range cases {
		got, err := ClampISO(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := Clamp("yesterday")
	require.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	require.Equal(t, 4, DaysBetween(d(t, "2025-01-06"), d(t, "2025-01-10")))
	require.Equal(t, -4, DaysBetween(d(t, "2025-01-10"), d(t, "2025-01-06")))
	require.Equal(t, d(t, "2025-01-10"), MaxDate(d(t, "2025-01-06"), d(t, "2025-01-10")))
	require.Equal(t, d(t, "2025-01-06"), MinDate(d(t, "2025-01-06"), d(t, "2025-01-10")))
}

func TestLoadFile_Formats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"cal.yaml": "holidays:\n  - 2025-01-08\noffWeekdays: [0, 6]\n",
		"cal.json": `{"holidays":["2025-01-08"],"offWeekdays":[0,6]}`,
		"cal.toml": "holidays = [\"2025-01-08\"]\noffWeekdays = [0, 6]\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cal, err := LoadFile(path)
		require.NoError(t, err, name)
		require.False(t, cal.IsWorkingDay(d(t, "2025-01-08")), name)
		require.Equal(t, 4, cal.CountWorkingDays(d(t, "2025-01-06"), d(t, "2025-01-12")), name)
	}
}

func TestLoadFile_Rejects(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "cal.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("offWeekdays: [7]\n"), 0o644))
	_, err := LoadFile(bad)
	require.Error(t, err)

	other := filepath.Join(dir, "cal.ini")
	require.NoError(t, os.WriteFile(other, []byte(""), 0o644))
	_, err = LoadFile(other)
	require.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestConfig_RoundTrip(t *testing.T) {
	cal, err := Config{Holidays: []string{"2025-01-08", "2025-01-01"}}.Build()
	require.NoError(t, err)
	cfg := cal.Config()
	require.Equal(t, []string{"2025-01-01", "2025-01-08"}, cfg.Holidays)
	require.Equal(t, []int{0, 6}, cfg.OffWeekdays)
}
