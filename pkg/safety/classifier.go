// Package safety implements the static keyword gate that decides whether a
// query is allowed to reach the backend.
package safety

import (
	"regexp"
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/queryward/queryward/pkg/models"
)

// defaultBlockedKeywords are the write/DDL statement keywords that flip a
// verdict to non-read-only, including common vendor spellings.
var defaultBlockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE",
	"ALTER", "CREATE", "GRANT", "REVOKE",
	"MERGE", "REPLACE", "EXEC", "EXECUTE", "CALL",
}

// sqlLexer tokenizes SQL-like text so keyword scanning can skip comments,
// string literals, and quoted identifiers. Rule order matters: comment and
// literal rules must win over the single-character Punct catch-all.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "LineComment", Pattern: `--[^\n]*`},
	{Name: "MultiLineComment", Pattern: `/\*(?:[^*]|\*[^/])*\*/`},
	{Name: "String", Pattern: `'(?:''|\\.|[^'\\])*'`},
	{Name: "QuotedIdent", Pattern: `"(?:""|\\.|[^"\\])*"`},
	{Name: "BacktickIdent", Pattern: "`[^`]*`"},
	{Name: "Word", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Punct", Pattern: `[^\sA-Za-z0-9_]`},
})

var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Classifier performs static keyword classification of query text. It never
// compiles or executes SQL and has no side effects; the same input always
// produces the same verdict.
type Classifier struct {
	blocked map[string]struct{}
}

// NewClassifier builds a classifier over the default keyword set plus any
// extra keywords from configuration. Extras are matched case-insensitively
// like the defaults.
func NewClassifier(extraBlocked []string) *Classifier {
	blocked := make(map[string]struct{}, len(defaultBlockedKeywords)+len(extraBlocked))
	for _, kw := range defaultBlockedKeywords {
		blocked[kw] = struct{}{}
	}
	for _, kw := range extraBlocked {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw != "" {
			blocked[kw] = struct{}{}
		}
	}
	return &Classifier{blocked: blocked}
}

// Classify scans the text for blocked keywords outside comments and string
// literals. Matches are recorded in order of first appearance, deduplicated.
// The verdict is dangerous only when a keyword matched and the mode is not
// unrestricted; the injection fingerprint is advisory and never changes the
// risk level on its own.
func (c *Classifier) Classify(text string, mode models.Mode) models.SafetyVerdict {
	matched := c.scanKeywords(text)

	verdict := models.SafetyVerdict{
		IsReadOnly:        len(matched) == 0,
		RiskLevel:         models.RiskSafe,
		MatchedOperations: matched,
	}
	if !verdict.IsReadOnly && mode != models.ModeUnrestricted {
		verdict.RiskLevel = models.RiskDangerous
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(text); isSQLi {
		verdict.InjectionFingerprint = string(fingerprint)
	}

	return verdict
}

// Blocked returns the active keyword set in sorted order, for diagnostics.
func (c *Classifier) Blocked() []string {
	out := make([]string, 0, len(c.blocked))
	for kw := range c.blocked {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// scanKeywords walks Word tokens and collects blocked keywords in first-seen
// order. If the lexer cannot make progress (malformed input), the remaining
// text is word-scanned raw, comments included: on garbage input the gate errs
// toward blocking rather than letting a keyword slip past.
func (c *Classifier) scanKeywords(text string) []string {
	var matched []string
	seen := make(map[string]struct{})

	record := func(word string) {
		upper := strings.ToUpper(word)
		if _, blocked := c.blocked[upper]; !blocked {
			return
		}
		if _, dup := seen[upper]; dup {
			return
		}
		seen[upper] = struct{}{}
		matched = append(matched, upper)
	}

	scanRaw := func(s string) {
		for _, word := range wordPattern.FindAllString(s, -1) {
			record(word)
		}
	}

	lx, err := sqlLexer.LexString("", text)
	if err != nil {
		scanRaw(text)
		return matched
	}

	wordType := sqlLexer.Symbols()["Word"]
	for {
		tok, err := lx.Next()
		if err != nil {
			scanRaw(text)
			return matched
		}
		if tok.EOF() {
			break
		}
		if tok.Type == wordType {
			record(tok.Value)
		}
	}

	return matched
}
