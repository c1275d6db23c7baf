// Package prompts holds the prompt builders for LLM-backed translation.
package prompts

import (
	"fmt"
	"strings"
)

// ModelHint describes one warehouse model offered to the LLM as context.
type ModelHint struct {
	Name        string
	Description string
	Columns     []ColumnHint
}

// ColumnHint describes a column within a model hint.
type ColumnHint struct {
	Name        string
	Description string
}

// BuildSQLTranslationPrompt creates the user prompt for translating a
// natural-language question into a single SELECT statement.
func BuildSQLTranslationPrompt(question string, adapter string, models []ModelHint) string {
	var prompt strings.Builder

	prompt.WriteString("# SQL Translation Request\n\n")
	prompt.WriteString("Translate the question below into a single SQL SELECT statement.\n\n")

	if adapter != "" {
		prompt.WriteString(fmt.Sprintf("Target dialect: %s\n\n", adapter))
	}

	if len(models) > 0 {
		prompt.WriteString("## Available Models\n\n")
		prompt.WriteString("Reference these as {{ ref('<model>') }} so the compiler resolves the physical relation:\n\n")
		for _, m := range models {
			prompt.WriteString(fmt.Sprintf("### %s\n", m.Name))
			if m.Description != "" {
				prompt.WriteString(m.Description + "\n")
			}
			if len(m.Columns) > 0 {
				prompt.WriteString("Columns:\n")
				for _, col := range m.Columns {
					if col.Description != "" {
						prompt.WriteString(fmt.Sprintf("- %s: %s\n", col.Name, col.Description))
					} else {
						prompt.WriteString(fmt.Sprintf("- %s\n", col.Name))
					}
				}
			}
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(question + "\n\n")

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("- Produce exactly one SELECT statement; never INSERT, UPDATE, DELETE, or DDL\n")
	prompt.WriteString("- No trailing semicolon\n")
	prompt.WriteString("- Prefer the listed models; only invent relation names when none fit\n")
	prompt.WriteString("- Keep the query as simple as the question allows\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `sql`: The SELECT statement\n")
	prompt.WriteString("- `explanation`: One or two sentences on what the query computes\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "sql": "SELECT title, rental_count FROM {{ ref('top_films') }} ORDER BY rental_count DESC LIMIT 10",
  "explanation": "Lists the ten most rented films with their rental counts."
}
`)
	prompt.WriteString("```\n\n")

	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildSQLTranslationSystemMessage returns the system message for translation.
func BuildSQLTranslationSystemMessage() string {
	return `You are an analytics engineer. You translate business questions into precise, read-only SQL against the warehouse models you are given. You never guess at columns that are not listed when a listed one fits.`
}
