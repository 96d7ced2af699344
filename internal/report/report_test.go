package report

import (
	"bytes"
	"testing"

	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Regenerate with: go test ./internal/report -update
func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func samplePlan() *kvs.SyncPlan {
	return &kvs.SyncPlan{
		Deletes: []kvs.RemoteEntry{
			{Key: "Gone"},
			{Key: "p:old", Label: kvs.LabelOf("L"), ETag: "e1"},
		},
		Puts: []kvs.Entry{
			{Key: "Key1", Value: "Value1"},
			{
				Key:         "p:x",
				Value:       `{"a":1}`,
				Label:       kvs.LabelOf("prod"),
				Tags:        map[string]string{"team": "web"},
				ContentType: "application/json",
			},
		},
	}
}

func TestPlan(t *testing.T) {
	g := newGoldie(t)

	tests := []struct {
		name   string
		format string
		plan   *kvs.SyncPlan
	}{
		{"plan_text", FormatText, samplePlan()},
		{"plan_json", FormatJSON, samplePlan()},
		{"plan_empty", FormatText, &kvs.SyncPlan{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Printer{W: &buf, Format: tt.format}.Plan(tt.plan))
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestOutcome(t *testing.T) {
	g := newGoldie(t)

	tests := []struct {
		name    string
		format  string
		outcome *kvs.Outcome
	}{
		{"outcome_succeeded", FormatText, kvs.Summarize(0, nil, 3, nil)},
		{"outcome_partial", FormatText, kvs.Summarize(1, nil, 2, []string{
			"Failed to add key 'Key1' with label ''. Status code: 409 Conflict",
		})},
		{"outcome_failed_json", FormatJSON, kvs.Summarize(
			1, []string{"Failed to delete key 'DeletedKey' with label 'test'. Status code: 409 Conflict"},
			1, []string{"Failed to add key 'Key1' with label 'test'. Status code: 409 Conflict"},
		)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Printer{W: &buf, Format: tt.format}.Outcome(tt.outcome))
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestCapacity(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{W: &buf}

	require.NoError(t, p.Capacity(kvs.DataStats{NumKeys: 3, TotalBytes: 1024}, kvs.Limits{MaxTotalBytes: 4096}))
	require.NoError(t, p.Capacity(kvs.DataStats{NumKeys: 1, TotalBytes: 10}, kvs.DefaultLimits))

	assert.Equal(t, "Data: 3 keys, 1024 / 4096 bytes (25.0%)\nData: 1 keys, 10 bytes\n", buf.String())
}

func TestValidationErrors(t *testing.T) {
	var buf bytes.Buffer
	err := Printer{W: &buf}.ValidationErrors([]kvs.ValidationError{
		{Key: "(empty)", Message: "key must not be empty"},
		{Key: "a%b", Message: "key must not contain '%'"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Validation errors:\n  (empty): key must not be empty\n  a%b: key must not contain '%'\n", buf.String())
}

func TestJSONSkipsCapacity(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{W: &buf, Format: FormatJSON}
	require.NoError(t, p.Capacity(kvs.DataStats{NumKeys: 1}, kvs.DefaultLimits))
	assert.Empty(t, buf.String())

	require.NoError(t, p.ValidationErrors([]kvs.ValidationError{{Key: "k", Message: "bad"}}))
	assert.JSONEq(t, `{"validation_errors":[{"key":"k","message":"bad"}]}`, buf.String())
}
