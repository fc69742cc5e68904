package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildsight/rca-cli/api/schemas"
)

func TestPrompt_EmptyReport(t *testing.T) {
	assert.Equal(t, "", Prompt(schemas.Report{Target: "tox"}))
}

func TestPrompt_SingleError(t *testing.T) {
	rep := schemas.Report{
		Target: "tox",
		LogFiles: []schemas.LogFile{{
			Source: "zuul/overcloud.log",
			Errors: []schemas.Error{{Before: []string{}, Line: "oops", Pos: 42, After: []string{}}},
		}},
	}
	assert.Equal(t, "\n## zuul/overcloud.log\noops", Prompt(rep))
}

func TestPrompt_ContextLinesAndEmptyLogFile(t *testing.T) {
	rep := schemas.Report{
		Target: "tox",
		LogFiles: []schemas.LogFile{
			{
				Source: "job-output.txt",
				Errors: []schemas.Error{{
					Before: []string{"ctx before 1", "ctx before 2"},
					Line:   "ERROR boom",
					Pos:    7,
					After:  []string{"ctx after"},
				}},
			},
			{Source: "quiet.log"},
		},
	}
	want := "\n## job-output.txt\n" +
		"ctx before 1\nctx before 2\nERROR boom\nctx after\n" +
		"\n## quiet.log"
	assert.Equal(t, want, Prompt(rep))
}

func TestPrompt_RoundTripFromRaw(t *testing.T) {
	rep, err := Normalize([]byte(sampleReport))
	require.NoError(t, err)
	Sort(&rep)
	assert.Equal(t, "\n## zuul/overcloud.log\noops", Prompt(rep))
}
