package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient replays a canned completion and records the prompts.
type fakeClient struct {
	response string
	err      error

	lastSystem string
	lastUser   string
}

func (f *fakeClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	return f.response, f.err
}

func TestClassifyParsesWrappedJSON(t *testing.T) {
	client := &fakeClient{response: "Here is my routing decision:\n```json\n" +
		`{"category": "personal", "table": "attestation_data", "reasoning": "asks about own records"}` +
		"\n```"}
	c := NewCollaborators(client)

	got, err := c.Classify(context.Background(), "what do I have pending?", "- attestation_data: ...")
	require.NoError(t, err)
	assert.Equal(t, CategoryPersonal, got.Category)
	assert.Equal(t, "attestation_data", got.Table)
	assert.Contains(t, client.lastUser, "what do I have pending?")
}

func TestClassifyRejectsNonJSONResponse(t *testing.T) {
	c := NewCollaborators(&fakeClient{response: "I think this is a personal question."})

	_, err := c.Classify(context.Background(), "question", "catalog")
	assert.Error(t, err, "an unparseable routing decision is an error, not a default")
}

func TestClassifyPropagatesClientError(t *testing.T) {
	c := NewCollaborators(&fakeClient{err: errors.New("connection reset")})

	_, err := c.Classify(context.Background(), "question", "catalog")
	assert.Error(t, err)
}

func TestDraftQueryStripsCodeFence(t *testing.T) {
	c := NewCollaborators(&fakeClient{response: "```sql\nSELECT status FROM attestation_data\n```"})

	draft, err := c.DraftQuery(context.Background(), "statuses?", "attestation_data(line_id, status)")
	require.NoError(t, err)
	assert.Equal(t, "SELECT status FROM attestation_data", draft)
}

func TestDraftQueryRejectsEmptyResponse(t *testing.T) {
	c := NewCollaborators(&fakeClient{response: "   \n"})

	_, err := c.DraftQuery(context.Background(), "question", "schema")
	assert.Error(t, err)
}

func TestSummarizeTrimsResponse(t *testing.T) {
	c := NewCollaborators(&fakeClient{response: "  You have two pending records.\n"})

	summary, err := c.Summarize(context.Background(), "question", "rows")
	require.NoError(t, err)
	assert.Equal(t, "You have two pending records.", summary)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"prose around", `sure: {"a": {"b": 2}} hope that helps`, `{"a": {"b": 2}}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no object", "nothing here", ""},
		{"unbalanced", `{"a": 1`, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "SELECT 1", stripCodeFence("```sql\nSELECT 1\n```"))
	assert.Equal(t, "SELECT 1", stripCodeFence("```\nSELECT 1\n```"))
	assert.Equal(t, "SELECT 1", stripCodeFence("SELECT 1"))
}
