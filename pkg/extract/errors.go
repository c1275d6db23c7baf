package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// errorMarkers start a diagnostic block in backend stdout. The generic
// uppercase forms catch backends that do not use the named categories.
var errorMarkers = []string{
	"Database Error",
	"Compilation Error",
	"Runtime Error",
	"Connection Error",
	"ERROR",
	"FAILED",
}

// DefaultErrorSubstrings are native-driver and syntax-error fragments that
// identify a diagnostic line even without a leading marker. The set is
// backend-specific and extendable through configuration.
var DefaultErrorSubstrings = []string{
	"ODBC Driver",
	"syntax error",
	"does not exist",
	"permission denied",
	"could not connect",
}

// logHeaderPattern matches the timestamp prefix the backend puts on each log
// line; a fresh header after the marker means the diagnostic block ended.
var logHeaderPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}`)

// maxContextLines bounds how many non-empty lines after a marker are kept.
const maxContextLines = 10

const unstructuredPrefix = "unstructured backend output:\n"

// ErrorExtractor locates diagnostic text in backend output. The substring
// allow-list is fixed at construction from configuration.
type ErrorExtractor struct {
	substrings []string
}

// NewErrorExtractor builds an extractor over the default substrings plus any
// configured extras.
func NewErrorExtractor(extraSubstrings []string) *ErrorExtractor {
	substrings := make([]string, 0, len(DefaultErrorSubstrings)+len(extraSubstrings))
	substrings = append(substrings, DefaultErrorSubstrings...)
	for _, s := range extraSubstrings {
		if s = strings.TrimSpace(s); s != "" {
			substrings = append(substrings, s)
		}
	}
	return &ErrorExtractor{substrings: substrings}
}

// Extract assembles a diagnostic string from backend output: the first
// marker line plus up to ten following non-empty context lines, any line
// matching a known error substring, and labeled stderr. Collected lines are
// deduplicated by exact text in encounter order. When nothing marker-based
// is found the entire stdout is returned under an explicit unstructured
// prefix, and when original and compiled text differ both are prepended so
// the failure can be reproduced.
func (e *ErrorExtractor) Extract(stdout, stderr, originalText, compiledText string) string {
	lines := e.collectDiagnosticLines(stdout)

	var segments []string
	if len(lines) > 0 {
		segments = append(segments, strings.Join(lines, "\n"))
	} else if trimmed := strings.TrimSpace(stdout); trimmed != "" {
		segments = append(segments, unstructuredPrefix+trimmed)
	}
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		segments = append(segments, "[stderr]\n"+trimmed)
	}

	message := strings.Join(segments, "\n---\n")

	if compiledText != "" && compiledText != originalText {
		message = fmt.Sprintf("original query:\n%s\n\ncompiled query:\n%s\n---\n%s",
			originalText, compiledText, message)
	}

	return message
}

// collectDiagnosticLines gathers the marker block and substring hits from
// stdout, deduplicated while preserving encounter order.
func (e *ErrorExtractor) collectDiagnosticLines(stdout string) []string {
	rawLines := strings.Split(stdout, "\n")

	var collected []string
	seen := make(map[string]struct{})
	add := func(line string) {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			return
		}
		if _, dup := seen[line]; dup {
			return
		}
		seen[line] = struct{}{}
		collected = append(collected, line)
	}

	markerIdx := -1
	for i, line := range rawLines {
		if containsMarker(line) {
			markerIdx = i
			break
		}
	}
	if markerIdx >= 0 {
		add(rawLines[markerIdx])
		context := 0
		for i := markerIdx + 1; i < len(rawLines) && context < maxContextLines; i++ {
			line := rawLines[i]
			if strings.TrimSpace(line) == "" {
				continue
			}
			// A fresh timestamped log line that is not itself an error
			// marker ends the diagnostic block.
			if logHeaderPattern.MatchString(strings.TrimSpace(line)) && !containsMarker(line) {
				break
			}
			add(line)
			context++
		}
	}

	for _, line := range rawLines {
		for _, sub := range e.substrings {
			if strings.Contains(line, sub) {
				add(line)
				break
			}
		}
	}

	return collected
}

func containsMarker(line string) bool {
	for _, marker := range errorMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
