package extract

import "strings"

const (
	columnMarker = "COLUMN_NAMES="
	rowMarker    = "ROW_DATA="
)

// parseMarked scans for the marker protocol. The first COLUMN_NAMES line is
// the canonical header; every later ROW_DATA line is one row. Markers may be
// preceded by a log prefix (timestamps), so they are located anywhere in the
// line and the payload starts after the marker. Rows whose value count does
// not match the header are dropped without aborting the remaining rows.
func parseMarked(stdout string) (BackendOutput, bool) {
	var columns []string
	var rows []map[string]any
	headerSeen := false

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")

		if !headerSeen {
			if idx := strings.Index(line, columnMarker); idx >= 0 {
				columns = splitColumns(line[idx+len(columnMarker):])
				headerSeen = true
			}
			continue
		}

		idx := strings.Index(line, rowMarker)
		if idx < 0 {
			continue
		}
		values := splitValues(line[idx+len(rowMarker):])
		if len(values) != len(columns) {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		rows = append(rows, row)
	}

	if !headerSeen {
		return BackendOutput{}, false
	}
	return BackendOutput{Kind: KindMarked, Columns: columns, Rows: rows}, true
}

// parsePipeTable handles plain pipe-delimited preview output: the first line
// starting with "|" is the header, a dashes-only separator line is skipped,
// and every later "|" line is a data row.
func parsePipeTable(stdout string) (BackendOutput, bool) {
	var columns []string
	var rows []map[string]any

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}

		cells := splitPipeCells(line)
		if columns == nil {
			columns = cells
			continue
		}
		if isSeparatorRow(cells) {
			continue
		}
		if len(cells) != len(columns) {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = cells[i]
		}
		rows = append(rows, row)
	}

	if columns == nil {
		return BackendOutput{}, false
	}
	return BackendOutput{Kind: KindTabular, Columns: columns, Rows: rows}, true
}

// splitColumns parses a pipe-delimited header payload into trimmed names.
func splitColumns(payload string) []string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return []string{}
	}
	parts := strings.Split(payload, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// splitValues parses a pipe-delimited row payload. Values are kept verbatim
// apart from a trailing carriage return; the marker format carries no
// escaping, so whitespace inside values is significant.
func splitValues(payload string) []string {
	if strings.TrimSpace(payload) == "" {
		return []string{}
	}
	return strings.Split(payload, "|")
}

// splitPipeCells splits a "| a | b |" line into trimmed cells, dropping the
// empty segments produced by the boundary pipes.
func splitPipeCells(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// isSeparatorRow reports whether every cell is made of separator characters
// ("------", ":---:", etc).
func isSeparatorRow(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, cell := range cells {
		if cell == "" {
			return false
		}
		for _, r := range cell {
			if r != '-' && r != ':' && r != '=' {
				return false
			}
		}
	}
	return true
}
