package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTranscript = `{"speaker_id":"u1","type":"speech","text":"Hello everyone","start_ts":0,"stop_ts":1200}

{"speaker_id":"a1","type":"speech","text":"Hi, let's get started","start_ts":1300,"stop_ts":2400}
{"speaker_id":"u1","type":"speech","text":"Sounds good","start_ts":2500,"stop_ts":3000}
`

func TestParseTranscript(t *testing.T) {
	items, err := ParseTranscript(strings.NewReader(sampleTranscript))
	require.NoError(t, err)
	require.Len(t, items, 3, "blank lines are skipped")

	assert.Equal(t, "u1", items[0].SpeakerID)
	assert.Equal(t, "Hello everyone", items[0].Text)
	assert.Equal(t, int64(1200), items[0].StopTS)
	assert.Equal(t, "a1", items[1].SpeakerID)
}

func TestParseTranscript_Empty(t *testing.T) {
	items, err := ParseTranscript(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseTranscript_MalformedLineFailsWhole(t *testing.T) {
	input := `{"speaker_id":"u1","text":"ok"}
not json at all
{"speaker_id":"u2","text":"also ok"}`

	_, err := ParseTranscript(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestSpeakerIDs_DistinctFirstSeen(t *testing.T) {
	items := []TranscriptItem{
		{SpeakerID: "u1"},
		{SpeakerID: "a1"},
		{SpeakerID: "u1"},
		{SpeakerID: ""},
		{SpeakerID: "u2"},
	}

	assert.Equal(t, []string{"u1", "a1", "u2"}, SpeakerIDs(items))
}

func TestEnrich_UnknownSpeakerFallback(t *testing.T) {
	items := []TranscriptItem{
		{SpeakerID: "u1", Text: "hello"},
		{SpeakerID: "stranger", Text: "who am I"},
	}
	names := map[string]string{"u1": "Ada"}

	enriched := Enrich(items, names)
	require.Len(t, enriched, 2)
	assert.Equal(t, "Ada", enriched[0].User.Name)
	assert.Equal(t, "Unknown", enriched[1].User.Name)
	assert.Equal(t, "who am I", enriched[1].Text)
}
