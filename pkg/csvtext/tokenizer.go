// Package csvtext splits CSV text into rows of raw string cells.
//
// Unlike encoding/csv it never fails: a lone CR ends a row, a stray quote
// toggles quoting, and an unterminated quote swallows the rest of the input.
package csvtext

import "strings"

const bom = "\ufeff"

// Tokenize parses text into rows of cells. A leading byte-order mark is
// dropped, and so is a final row made of a single empty cell.
func Tokenize(text string) [][]string {
	text = strings.TrimPrefix(text, bom)

	var (
		rows   [][]string
		row    []string
		field  strings.Builder
		quoted bool
	)
	endField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		rows = append(rows, row)
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quoted {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
					continue
				}
				quoted = false
				continue
			}
			field.WriteByte(c)
			continue
		}
		switch c {
		case ',':
			endField()
		case '\n':
			endRow()
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRow()
		case '"':
			quoted = true
		default:
			field.WriteByte(c)
		}
	}
	endRow()

	if last := rows[len(rows)-1]; len(last) == 1 && last[0] == "" {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil
	}
	return rows
}
