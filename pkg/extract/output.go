// Package extract turns the backend's mixed text output into tabular rows
// or diagnostic error text. Both extractors are pure functions over the raw
// stdout/stderr; neither touches the filesystem or the backend.
package extract

// Kind tags which shape of backend output was recognized.
type Kind string

const (
	// KindMarked is the custom marker protocol: COLUMN_NAMES= and ROW_DATA=
	// lines emitted by the backend operation.
	KindMarked Kind = "marked"
	// KindTabular is plain pipe-delimited preview output.
	KindTabular Kind = "tabular"
	// KindUnstructured means no tabular shape was found; Text carries the
	// raw output so callers can still show it.
	KindUnstructured Kind = "unstructured"
)

// BackendOutput is the tagged result of tabular extraction. Exactly one
// shape applies per call: Columns/Rows are set for marked and tabular
// output, Text for unstructured output.
type BackendOutput struct {
	Kind    Kind
	Columns []string
	Rows    []map[string]any
	Text    string
}

// Parse recognizes backend stdout by trying the marker protocol first, then
// the pipe-table shape, and finally falling back to unstructured text. The
// two tabular paths are never mixed within one call.
func Parse(stdout string) BackendOutput {
	if out, ok := parseMarked(stdout); ok {
		return out
	}
	if out, ok := parsePipeTable(stdout); ok {
		return out
	}
	return BackendOutput{Kind: KindUnstructured, Text: stdout}
}
