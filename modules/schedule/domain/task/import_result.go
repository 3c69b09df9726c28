package task

// ImportError describes one problem found while importing. Row is the 1-based
// line number counting the header as row 1.
type ImportError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

type DepStats struct {
	Cycles      int     `json:"cycles"`
	Isolated    int     `json:"isolated"`
	UnknownRefs int     `json:"unknownRefs,omitempty"`
	CyclesList  [][]int `json:"cyclesList,omitempty"`
}

type Stats struct {
	Rows     int            `json:"rows"`
	Imported int            `json:"imported"`
	Failed   int            `json:"failed"`
	ByColumn map[string]int `json:"byColumn"`
	Dep      *DepStats      `json:"dep,omitempty"`
}

type ImportResult struct {
	Tasks  []Task        `json:"tasks"`
	Errors []ImportError `json:"errors"`
	Stats  Stats         `json:"stats"`
}

// ErrorsForRow returns the errors recorded for one row.
func (r *ImportResult) ErrorsForRow(row int) []ImportError {
	var out []ImportError
	for _, e := range r.Errors {
		if e.Row == row {
			out = append(out, e)
		}
	}
	return out
}
