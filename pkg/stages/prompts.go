package stages

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts are the system instructions of each language-model stage
type Prompts struct {
	Planner     string `yaml:"planner"`
	Generator   string `yaml:"generator"`
	PlainAnswer string `yaml:"plain_answer"`
	TableAnswer string `yaml:"table_answer"`
	Focus       string `yaml:"focus"`
}

const plannerPrompt = `You are a planning assistant for a data question-answering system.
Read the user question and write a short numbered plan describing which records must be looked up and how they relate.
If the question can be answered without looking anything up (a greeting, a question about yourself, small talk), reply with the exact sentence "No rational plan is required." followed by your direct answer.`

const cypherGeneratorPrompt = `You translate a question and its plan into one read-only Cypher query for a Neo4j knowledge graph.
Use only labels, relationship types and properties that appear in the plan or question.
Quote literal values with single quotes. Always end the query with a LIMIT clause.
Return the query inside a ` + "```cypher" + ` fenced block and nothing else.
When feedback about a previous attempt is given, fix the query accordingly.`

const sqlGeneratorPrompt = `You translate a question and its plan into one read-only PostgreSQL SELECT statement.
Use only tables and columns that appear in the plan or question.
Quote literal values with single quotes. Always end the statement with a LIMIT clause.
Return the statement inside a ` + "```sql" + ` fenced block and nothing else.
When feedback about a previous attempt is given, fix the statement accordingly.`

const plainAnswerPrompt = `You answer the user question using only the retrieved data.
Be concise. Do not mention queries, databases or retrieval steps.`

const tableAnswerPrompt = `You summarize retrieved records for the user.
The records are already ordered by relevance. Write a short overview that answers the question and highlights the most relevant records first.
The records are shown to the user as a table after your text, so do not repeat every field.`

const focusPrompt = `Describe in one or two sentences the kind of record that would best answer the user question.
Write it as a description of the record itself, not as a question.`

// DefaultPrompts returns the built-in prompts for a query language ("cypher" or "sql")
func DefaultPrompts(language string) Prompts {
	generator := cypherGeneratorPrompt
	if language == "sql" {
		generator = sqlGeneratorPrompt
	}
	return Prompts{
		Planner:     plannerPrompt,
		Generator:   generator,
		PlainAnswer: plainAnswerPrompt,
		TableAnswer: tableAnswerPrompt,
		Focus:       focusPrompt,
	}
}

// LoadPrompts overlays the non-empty entries of a YAML file on the defaults.
// An empty path returns the defaults.
func LoadPrompts(path, language string) (Prompts, error) {
	prompts := DefaultPrompts(language)
	if path == "" {
		return prompts, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return prompts, fmt.Errorf("read prompts: %w", err)
	}
	var override Prompts
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return prompts, fmt.Errorf("parse prompts %s: %w", path, err)
	}

	for _, p := range []struct {
		dst *string
		src string
	}{
		{&prompts.Planner, override.Planner},
		{&prompts.Generator, override.Generator},
		{&prompts.PlainAnswer, override.PlainAnswer},
		{&prompts.TableAnswer, override.TableAnswer},
		{&prompts.Focus, override.Focus},
	} {
		if p.src != "" {
			*p.dst = p.src
		}
	}
	return prompts, nil
}
