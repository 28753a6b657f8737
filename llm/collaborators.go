package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the kind of data a question targets. The classification is
// delegated to the model, but the engine validates the result against
// these four values and rejects anything else.
type Category string

const (
	CategoryPersonal  Category = "personal"
	CategoryPublic    Category = "public"
	CategoryReference Category = "reference"
	CategoryStatic    Category = "static"
)

// Classification is the collaborator's routing decision for one question.
type Classification struct {
	Category       Category `json:"category"`
	Table          string   `json:"table,omitempty"`
	DirectResponse string   `json:"direct_response,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
}

// Classifier routes a question to a data category and table.
type Classifier interface {
	Classify(ctx context.Context, question, catalog string) (*Classification, error)
}

// Drafter drafts a SQL query for a question against one table's schema.
// The draft is untrusted and must pass the engine's validation before it
// can execute.
type Drafter interface {
	DraftQuery(ctx context.Context, question, schema string) (string, error)
}

// Summarizer turns a row set into a short natural-language answer.
// Best-effort: a failure here never discards the rows.
type Summarizer interface {
	Summarize(ctx context.Context, question, formattedRows string) (string, error)
}

// Collaborators implements all three collaborator roles on one Client.
type Collaborators struct {
	client Client
}

// NewCollaborators wraps a client as the full collaborator set.
func NewCollaborators(client Client) *Collaborators {
	return &Collaborators{client: client}
}

// Classify asks the model to route the question. A response that does not
// parse is an error; the engine rejects rather than defaulting to the
// most permissive table.
func (c *Collaborators) Classify(ctx context.Context, question, catalog string) (*Classification, error) {
	userPrompt := fmt.Sprintf("Available tables:\n%s\n\nQuestion to classify: %s", catalog, question)

	response, err := c.client.Complete(ctx, classifyPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON in classification response")
	}

	var result Classification
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classification: %w", err)
	}
	return &result, nil
}

// DraftQuery asks the model for a SQL draft. Only the question and the
// schema text go to the model; it never sees data or the scope predicate.
func (c *Collaborators) DraftQuery(ctx context.Context, question, schema string) (string, error) {
	userPrompt := fmt.Sprintf("Table schema:\n%s\n\nQuestion: %s", schema, question)

	response, err := c.client.Complete(ctx, draftPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("query drafting failed: %w", err)
	}

	draft := stripCodeFence(response)
	if strings.TrimSpace(draft) == "" {
		return "", fmt.Errorf("empty query draft")
	}
	return draft, nil
}

// Summarize asks the model for a short answer grounded in the rows.
func (c *Collaborators) Summarize(ctx context.Context, question, formattedRows string) (string, error) {
	userPrompt := fmt.Sprintf("Question: %s\n\nQuery results:\n%s", question, formattedRows)

	response, err := c.client.Complete(ctx, summarizePrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return strings.TrimSpace(response), nil
}
