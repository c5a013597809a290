package queues

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage_Processing(t *testing.T) {
	original := &ProcessingMessage{
		MeetingID:     "m1",
		TranscriptURL: "https://files.example.com/t.jsonl",
		EnqueuedAt:    time.Now().UTC().Truncate(time.Second),
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	qm := &QueuedMessage{
		ID:          "msg-1",
		Message:     raw,
		MessageType: MessageTypeProcessing,
	}

	parsed, err := qm.ParseMessage()
	require.NoError(t, err)

	msg, ok := parsed.(*ProcessingMessage)
	require.True(t, ok)
	assert.Equal(t, "m1", msg.GetMeetingID())
	assert.Equal(t, MessageTypeProcessing, msg.GetMessageType())
	assert.Equal(t, original.TranscriptURL, msg.TranscriptURL)
}

func TestParseMessage_UnknownType(t *testing.T) {
	qm := &QueuedMessage{
		ID:          "msg-1",
		Message:     []byte(`{}`),
		MessageType: MessageType("meetings/unknown"),
	}

	_, err := qm.ParseMessage()
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestParseMessage_CorruptPayload(t *testing.T) {
	qm := &QueuedMessage{
		ID:          "msg-1",
		Message:     []byte(`{{{`),
		MessageType: MessageTypeProcessing,
	}

	_, err := qm.ParseMessage()
	assert.Error(t, err)
}
