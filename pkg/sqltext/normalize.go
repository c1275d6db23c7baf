// Package sqltext normalizes raw query text before it enters the pipeline.
package sqltext

import (
	"strings"

	"github.com/queryward/queryward/pkg/apperrors"
)

// Normalize trims surrounding whitespace, strips a single trailing
// semicolon, and rejects input that still contains a semicolon outside
// string literals (multiple statements).
//
// Template expressions such as {{ ref('orders') }} pass through untouched;
// compilation happens later in the pipeline.
func Normalize(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	normalized := stripTrailingSemicolon(query)

	if semicolonOutsideQuotes(normalized) {
		return "", apperrors.ErrMultipleStatements
	}

	return normalized, nil
}

// IsBlank reports whether the query is empty or whitespace-only.
func IsBlank(query string) bool {
	return strings.TrimSpace(query) == ""
}

// stripTrailingSemicolon removes at most one trailing semicolon along with
// surrounding whitespace. "SELECT 1;;" keeps one semicolon and is later
// rejected as a multi-statement input.
func stripTrailingSemicolon(query string) string {
	query = strings.TrimRight(query, " \t\n\r")
	if strings.HasSuffix(query, ";") {
		query = strings.TrimRight(strings.TrimSuffix(query, ";"), " \t\n\r")
	}
	return query
}

// semicolonOutsideQuotes reports whether any semicolon appears outside
// single-quoted literals or double-quoted identifiers. Both backslash
// escapes (\') and SQL standard doubled quotes ('') are tolerated: the
// doubled quote exits and immediately re-enters the literal, which keeps
// the scan inside the string.
func semicolonOutsideQuotes(query string) bool {
	var quote rune // 0 while outside any quoted region
	var prev rune

	for _, r := range query {
		switch {
		case quote == 0:
			switch r {
			case ';':
				return true
			case '\'', '"':
				quote = r
			}
		case r == quote && prev != '\\':
			quote = 0
		}
		prev = r
	}

	return false
}
