package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Summary   string `json:"summary"`
	RootCause string `json:"root_cause"`
}

func TestParseJSONObject_Plain(t *testing.T) {
	got, err := ParseJSONObject[verdict](`{"summary": "s", "root_cause": "r"}`)
	require.NoError(t, err)
	assert.Equal(t, "s", got.Summary)
	assert.Equal(t, "r", got.RootCause)
}

func TestParseJSONObject_MarkdownFence(t *testing.T) {
	response := "```json\n{\"summary\": \"s\", \"root_cause\": \"r\"}\n```"
	got, err := ParseJSONObject[verdict](response)
	require.NoError(t, err)
	assert.Equal(t, "r", got.RootCause)
}

func TestParseJSONObject_ConversationalWrapper(t *testing.T) {
	response := `Here is the analysis you asked for:
{"summary": "s", "root_cause": "r"}
Let me know if you need anything else.`
	got, err := ParseJSONObject[verdict](response)
	require.NoError(t, err)
	assert.Equal(t, "s", got.Summary)
}

func TestParseJSONObject_Invalid(t *testing.T) {
	_, err := ParseJSONObject[verdict]("the build failed because of gremlins")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}
