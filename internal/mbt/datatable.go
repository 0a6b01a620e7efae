package mbt

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// EncodeDataTable serializes an iteration table for transport to the
// launcher: a header row of parameter names followed by one row per
// iteration, CSV-escaped and base64-wrapped.
func EncodeDataTable(dt model.DataTable) string {
	var b strings.Builder
	writeRow(&b, dt.Parameters)
	for _, row := range dt.Iterations {
		writeRow(&b, row)
	}
	return base64.StdEncoding.EncodeToString([]byte(b.String()))
}

// DecodeDataTable is the inverse of EncodeDataTable.
func DecodeDataTable(encoded string) (model.DataTable, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return model.DataTable{}, fmt.Errorf("decode data table: %w", err)
	}

	var dt model.DataTable
	for i, line := range splitRows(string(raw)) {
		row, err := parseRow(line)
		if err != nil {
			return model.DataTable{}, fmt.Errorf("data table row %d: %w", i+1, err)
		}
		if i == 0 {
			dt.Parameters = row
			continue
		}
		dt.Iterations = append(dt.Iterations, row)
	}
	return dt, nil
}

// escapeCell normalizes one cell for the launcher. Values arriving from the
// server may still carry decorative wrapping quotes; those are stripped, then
// the value is quoted again only when it contains a separator, a quote or a
// line break, with embedded quotes doubled.
func escapeCell(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	if !strings.ContainsAny(v, ",\"\n\r") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// unescapeCell reverses escapeCell for one already-escaped cell.
func unescapeCell(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	return strings.ReplaceAll(v[1:len(v)-1], `""`, `"`)
}

func writeRow(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeCell(c))
	}
	b.WriteByte('\n')
}

func splitRows(raw string) []string {
	// Rows are newline separated; quoted cells may carry line breaks, so a
	// naive split only applies outside quotes.
	var rows []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch ch {
		case '"':
			inQuotes = !inQuotes
			cur.WriteByte(ch)
		case '\n':
			if inQuotes {
				cur.WriteByte(ch)
				continue
			}
			rows = append(rows, strings.TrimSuffix(cur.String(), "\r"))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if cur.Len() > 0 {
		rows = append(rows, strings.TrimSuffix(cur.String(), "\r"))
	}
	return rows
}

func parseRow(line string) ([]string, error) {
	var cells []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"' && inQuotes:
			if i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
				continue
			}
			inQuotes = false
		case ch == '"':
			inQuotes = true
		case ch == ',' && !inQuotes:
			cells = append(cells, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	cells = append(cells, cur.String())
	return cells, nil
}
