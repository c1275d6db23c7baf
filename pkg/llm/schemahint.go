package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/queryward/queryward/pkg/prompts"
)

// maxModelHints caps how many models are offered as prompt context; beyond
// this the prompt grows without improving the SQL.
const maxModelHints = 8

// schemaFile mirrors the documented model properties in a dbt schema.yml.
type schemaFile struct {
	Models []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Columns     []struct {
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
		} `yaml:"columns"`
	} `yaml:"models"`
}

// SchemaHinter collects model documentation from a project tree and selects
// the models most relevant to a question.
type SchemaHinter struct {
	fs         afero.Fs
	projectDir string
	logger     *zap.Logger
}

// NewSchemaHinter builds a hinter over the project directory.
func NewSchemaHinter(fs afero.Fs, projectDir string, logger *zap.Logger) *SchemaHinter {
	return &SchemaHinter{
		fs:         fs,
		projectDir: projectDir,
		logger:     logger.Named("schema_hints"),
	}
}

// Collect walks the project tree for .yml/.yaml property files and returns
// every documented model. Unreadable or malformed files are skipped; hints
// are advisory and must never fail a translation.
func (h *SchemaHinter) Collect() []prompts.ModelHint {
	var hints []prompts.ModelHint

	walkErr := afero.Walk(h.fs, h.projectDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			// The backend's own install and build output hold vendored
			// schema files for other projects.
			base := filepath.Base(path)
			if base == "dbt_packages" || base == "target" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}
		if filepath.Base(path) == "dbt_project.yml" {
			return nil
		}

		data, err := afero.ReadFile(h.fs, path)
		if err != nil {
			h.logger.Debug("skipping unreadable schema file", zap.String("path", path), zap.Error(err))
			return nil
		}

		var parsed schemaFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			h.logger.Debug("skipping malformed schema file", zap.String("path", path), zap.Error(err))
			return nil
		}

		for _, m := range parsed.Models {
			if m.Name == "" {
				continue
			}
			hint := prompts.ModelHint{
				Name:        m.Name,
				Description: m.Description,
			}
			for _, c := range m.Columns {
				if c.Name == "" {
					continue
				}
				hint.Columns = append(hint.Columns, prompts.ColumnHint{
					Name:        c.Name,
					Description: c.Description,
				})
			}
			hints = append(hints, hint)
		}
		return nil
	})
	if walkErr != nil {
		h.logger.Debug("schema hint walk ended early", zap.Error(walkErr))
	}

	sort.SliceStable(hints, func(i, j int) bool { return hints[i].Name < hints[j].Name })
	return hints
}

// HintsFor returns the models most relevant to the question, ranked by
// overlap between question terms and model/column names with singular and
// plural forms folded together. With no scored overlap the first
// maxModelHints models are returned so the prompt always has context.
func (h *SchemaHinter) HintsFor(question string) []prompts.ModelHint {
	hints := h.Collect()
	if len(hints) <= maxModelHints {
		return hints
	}

	terms := questionTerms(question)

	type scored struct {
		hint  prompts.ModelHint
		score int
		order int
	}
	ranked := make([]scored, 0, len(hints))
	for i, hint := range hints {
		ranked = append(ranked, scored{hint: hint, score: scoreHint(hint, terms), order: i})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})

	out := make([]prompts.ModelHint, 0, maxModelHints)
	for _, r := range ranked[:maxModelHints] {
		out = append(out, r.hint)
	}
	return out
}

var termPattern = regexp.MustCompile(`[a-z][a-z0-9_]*`)

// questionTerms lowercases and singularizes the words of a question.
func questionTerms(question string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, word := range termPattern.FindAllString(strings.ToLower(question), -1) {
		terms[inflection.Singular(word)] = struct{}{}
	}
	return terms
}

// scoreHint counts question terms appearing in the model name or its
// columns. Name segments are compared singularized, so "films" in a
// question matches a film_actor model.
func scoreHint(hint prompts.ModelHint, terms map[string]struct{}) int {
	score := 0
	for _, segment := range nameSegments(hint.Name) {
		if _, ok := terms[segment]; ok {
			score += 2
		}
	}
	for _, col := range hint.Columns {
		for _, segment := range nameSegments(col.Name) {
			if _, ok := terms[segment]; ok {
				score++
			}
		}
	}
	return score
}

func nameSegments(name string) []string {
	parts := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == '.' || r == '-'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, inflection.Singular(p))
	}
	return out
}

// hintSummary is used in debug logs.
func hintSummary(hints []prompts.ModelHint) string {
	names := make([]string, 0, len(hints))
	for _, h := range hints {
		names = append(names, h.Name)
	}
	return fmt.Sprintf("[%s]", strings.Join(names, ", "))
}
