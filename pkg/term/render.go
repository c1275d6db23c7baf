// Package term renders pipeline results, session history, and diagnostic
// checklists for the command-line transport.
package term

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/queryward/queryward/pkg/models"
)

// RenderResult writes one pipeline outcome. Successful results render as a
// table with a row-count footer; failures render the stable code, the
// message, and whatever context survived the run.
func RenderResult(w io.Writer, result models.QueryResult) {
	if !result.Success {
		fmt.Fprintf(w, "%s %s: %s\n", pterm.FgRed.Sprint("✗"), result.Code, result.Error)
		if result.Safety != nil && len(result.Safety.MatchedOperations) > 0 {
			fmt.Fprintf(w, "  blocked operations: %s\n", strings.Join(result.Safety.MatchedOperations, ", "))
		}
		if result.CompiledSQL != "" {
			fmt.Fprintf(w, "  compiled sql: %s\n", result.CompiledSQL)
		}
		return
	}

	if len(result.Data) == 0 {
		fmt.Fprintf(w, "%s no rows in %s\n", pterm.FgGreen.Sprint("✓"), durationString(result))
		return
	}

	cols := result.Columns
	if len(cols) == 0 {
		cols = columnsFromRows(result.Data)
	}
	data := pterm.TableData{cols}
	for _, row := range result.Data {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cellString(row[c])
		}
		data = append(data, cells)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
	fmt.Fprintf(w, "%s rows in %s\n", humanize.Comma(int64(result.RowCount)), durationString(result))
}

// RenderHistory writes a one-line-per-entry summary of a session.
func RenderHistory(w io.Writer, sessionID string, entries []models.QueryResultEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "no recorded results in session %q\n", sessionID)
		return
	}

	data := pterm.TableData{{"#", "When", "Status", "Rows", "Query"}}
	for _, e := range entries {
		data = append(data, []string{
			strconv.Itoa(e.Index),
			humanize.Time(e.Timestamp),
			statusString(e.Result),
			humanize.Comma(int64(e.Result.RowCount)),
			truncate(e.QueryText, 60),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// RenderEntry writes one recorded entry in full: metadata, the request
// text, and the stored result.
func RenderEntry(w io.Writer, entry models.QueryResultEntry) {
	fmt.Fprintf(w, "Index:    %d\n", entry.Index)
	fmt.Fprintf(w, "Recorded: %s (%s)\n", entry.Timestamp.UTC().Format(time.RFC3339), humanize.Time(entry.Timestamp))
	fmt.Fprintf(w, "Query:    %s\n\n", entry.QueryText)
	RenderResult(w, entry.Result)
}

// RenderSessions lists session ids, marking the currently selected one.
func RenderSessions(w io.Writer, current string, sessions []string) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no sessions recorded")
		return
	}
	for _, s := range sessions {
		marker := " "
		if s == current {
			marker = pterm.FgCyan.Sprint("*")
		}
		fmt.Fprintf(w, "%s %s\n", marker, s)
	}
}

// RenderCheck writes one diagnostic checklist line: a green check on
// success, a red cross with the error on failure.
func RenderCheck(w io.Writer, name string, err error, detail string) {
	if err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", pterm.FgRed.Sprint("✗"), name, err)
		return
	}
	if detail != "" {
		fmt.Fprintf(w, "%s %s (%s)\n", pterm.FgGreen.Sprint("✓"), name, detail)
		return
	}
	fmt.Fprintf(w, "%s %s\n", pterm.FgGreen.Sprint("✓"), name)
}

// RenderSkip writes a checklist line for a subsystem that is not
// configured, so a skipped check reads differently from a passed one.
func RenderSkip(w io.Writer, name, reason string) {
	fmt.Fprintf(w, "%s %s: %s\n", pterm.FgYellow.Sprint("-"), name, reason)
}

func statusString(result models.QueryResult) string {
	if result.Success {
		return pterm.FgGreen.Sprint("ok")
	}
	return pterm.FgRed.Sprint(result.Code)
}

func durationString(result models.QueryResult) string {
	return (time.Duration(result.ExecutionTimeMS) * time.Millisecond).String()
}

// columnsFromRows recovers a stable column order when the extractor did not
// report one. Keys of the first row, sorted.
func columnsFromRows(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// truncate collapses whitespace and caps the string for one-line previews.
func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
