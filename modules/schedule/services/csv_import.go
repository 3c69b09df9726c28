package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/golang-sql/civil"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
	"github.com/3chihiro/evm-tool/pkg/calendar"
	"github.com/3chihiro/evm-tool/pkg/csvtext"
)

// ParseCSVText imports raw CSV text. Data-quality problems never fail the call;
// they are reported in the result's Errors and Stats.
func ParseCSVText(text string, opts ImportOptions) *task.ImportResult {
	return ParseRows(csvtext.Tokenize(text), opts)
}

// rowResult is the outcome of validating one data row.
type rowResult struct {
	row     int
	task    task.Task
	idOK    bool
	rawDeps string
	errs    []task.ImportError
}

// ParseRows imports already tokenized rows; rows[0] is the header.
func ParseRows(rows [][]string, opts ImportOptions) *task.ImportResult {
	opts = opts.Normalize()
	res := &task.ImportResult{
		Tasks:  []task.Task{},
		Errors: []task.ImportError{},
		Stats:  task.Stats{ByColumn: map[string]int{}},
	}
	if len(rows) == 0 {
		return res
	}
	header := rows[0]
	index := headerIndex(header)
	res.Stats.Rows = len(rows) - 1

	if missing := missingColumns(index); len(missing) > 0 {
		for _, name := range missing {
			res.Errors = append(res.Errors, task.ImportError{
				Row:     1,
				Column:  name,
				Message: missingHeaderMessage(name, header),
			})
		}
		res.Stats.Failed = res.Stats.Rows
		return res
	}

	parsed := make([]rowResult, 0, len(rows)-1)
	seen := make(map[int]int, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		r := validateRow(rows[i], i+1, index)
		if r.idOK {
			if first, dup := seen[r.task.TaskID]; dup {
				r.errs = append(r.errs, task.ImportError{
					Row:     r.row,
					Column:  ColTaskID,
					Message: fmt.Sprintf("Duplicate TaskID (first defined on row %d)", first),
					Value:   strconv.Itoa(r.task.TaskID),
				})
			} else {
				seen[r.task.TaskID] = r.row
			}
		}
		parsed = append(parsed, r)
		res.Errors = append(res.Errors, r.errs...)
	}

	accepted, depErrs, dep := resolveDependencies(parsed, opts.UnknownDeps)
	res.Errors = append(res.Errors, depErrs...)
	res.Tasks = accepted
	res.Stats.Dep = &dep
	res.Stats.Imported = len(accepted)

	failed := map[int]struct{}{}
	for _, e := range res.Errors {
		if e.Row <= 1 {
			continue
		}
		failed[e.Row] = struct{}{}
		if e.Column != "" {
			res.Stats.ByColumn[e.Column]++
		}
	}
	res.Stats.Failed = len(failed)
	return res
}

func headerIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := m[name]; !dup {
			m[name] = i
		}
	}
	return m
}

func missingColumns(index map[string]int) []string {
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// missingHeaderMessage suggests the closest unrecognized header, if any.
func missingHeaderMessage(name string, header []string) string {
	msg := "Missing required header: " + name
	known := make(map[string]struct{}, len(Columns))
	for _, c := range Columns {
		known[c] = struct{}{}
	}
	var candidates []string
	for _, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, ok := known[h]; !ok && h != "" {
			candidates = append(candidates, h)
		}
	}
	ranks := fuzzy.RankFindNormalizedFold(name, candidates)
	if len(ranks) == 0 {
		return msg
	}
	sort.Sort(ranks)
	return fmt.Sprintf("%s (did you mean %q?)", msg, ranks[0].Target)
}

func validateRow(cells []string, row int, index map[string]int) rowResult {
	r := rowResult{row: row}
	get := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}
	fail := func(column, message, value string) {
		r.errs = append(r.errs, task.ImportError{Row: row, Column: column, Message: message, Value: value})
	}
	t := &r.task

	t.ProjectName = get(ColProjectName)
	if t.ProjectName == "" {
		fail(ColProjectName, "ProjectName is required", "")
	}

	rawID := get(ColTaskID)
	switch id, ok, err := parseNumber(rawID); {
	case !ok && err == nil:
		fail(ColTaskID, "TaskID is required", rawID)
	case err != nil:
		fail(ColTaskID, "TaskID must be a number", rawID)
	case id != math.Trunc(id) || math.Abs(id) > math.MaxInt32:
		fail(ColTaskID, "TaskID must be an integer", rawID)
	default:
		t.TaskID = int(id)
		r.idOK = true
	}

	t.TaskName = get(ColTaskName)
	if t.TaskName == "" {
		fail(ColTaskName, "TaskName is required", "")
	}

	requiredDate := func(column string, dst *civil.Date) {
		raw := get(column)
		if raw == "" {
			fail(column, column+" is required", "")
			return
		}
		d, err := calendar.ParseISO(raw)
		if err != nil {
			fail(column, column+" must be a date in YYYY-MM-DD format", raw)
			return
		}
		*dst = d
	}
	requiredDate(ColStart, &t.Start)
	requiredDate(ColFinish, &t.Finish)

	optionalDate := func(column string) *civil.Date {
		raw := get(column)
		if raw == "" {
			return nil
		}
		d, err := calendar.ParseISO(raw)
		if err != nil {
			fail(column, column+" must be a date in YYYY-MM-DD format", raw)
			return nil
		}
		return &d
	}
	t.ActualStart = optionalDate(ColActualStart)
	t.ActualFinish = optionalDate(ColActualFinish)

	optionalNumber := func(column string) *float64 {
		raw := get(column)
		v, ok, err := parseNumber(raw)
		if err != nil {
			fail(column, column+" must be a number", raw)
			return nil
		}
		if !ok {
			return nil
		}
		return &v
	}
	t.DurationDays = optionalNumber(ColDurationDays)
	t.UnitCost = optionalNumber(ColUnitCost)
	t.ContractAmount = optionalNumber(ColContractAmount)
	t.PlannedCost = optionalNumber(ColPlannedCost)
	t.ActualCost = optionalNumber(ColActualCost)

	if p := optionalNumber(ColProgressPercent); p != nil {
		if *p < 0 || *p > 100 {
			fail(ColProgressPercent, "ProgressPercent must be between 0 and 100", get(ColProgressPercent))
		} else {
			t.ProgressPercent = p
		}
	}

	rawType := get(ColResourceType)
	if rt, ok := task.ParseResourceType(rawType); ok {
		t.ResourceType = rt
	} else {
		fail(ColResourceType, fmt.Sprintf("ResourceType must be %s or %s", task.InHouse, task.Contractor), rawType)
	}

	t.ContractorName = get(ColContractorName)
	t.Notes = get(ColNotes)
	r.rawDeps = get(ColDependencies)
	t.PredIDs = parseDependencies(r.rawDeps)
	return r
}

// parseNumber strips thousands separators and whitespace. ok is false for an
// empty cell; err is set when the cell is not a finite number.
func parseNumber(raw string) (v float64, ok bool, err error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if cleaned == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("not finite: %s", raw)
	}
	return v, true, nil
}

// parseDependencies reads a comma-separated list of task IDs. Tokens that are
// not integers are dropped; an empty cell yields nil.
func parseDependencies(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var ids []int
	seen := map[int]struct{}{}
	for _, tok := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
