package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
	"github.com/otherjamesbrown/meetflow/pkg/llm"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/metrics"
	"github.com/otherjamesbrown/meetflow/pkg/queues"
	"github.com/otherjamesbrown/meetflow/pkg/store"
)

type fakeStore struct {
	meetings map[string]*store.Meeting
	speakers map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meetings: make(map[string]*store.Meeting),
		speakers: make(map[string]string),
	}
}

func (s *fakeStore) GetMeeting(_ context.Context, id string) (*store.Meeting, error) {
	m, ok := s.meetings[id]
	if !ok {
		return nil, mferrors.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *fakeStore) GetAgent(_ context.Context, id string) (*store.Agent, error) {
	return nil, mferrors.ErrNotFound
}

func (s *fakeStore) StartMeeting(_ context.Context, id string, now time.Time) (bool, error) {
	return false, nil
}

func (s *fakeStore) FinishMeeting(_ context.Context, id string, now time.Time) (bool, error) {
	return false, nil
}

func (s *fakeStore) SetTranscriptURL(_ context.Context, id, url string) (bool, error) {
	return false, nil
}

func (s *fakeStore) SetRecordingURL(_ context.Context, id, url string) (bool, error) {
	return false, nil
}

func (s *fakeStore) CompleteMeeting(_ context.Context, id, summary string) (bool, error) {
	m, ok := s.meetings[id]
	if !ok || m.Status != store.StatusProcessing {
		return false, nil
	}
	m.Status = store.StatusCompleted
	m.Summary = &summary
	return true, nil
}

func (s *fakeStore) LookupSpeakers(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := s.speakers[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type fakeProvider struct {
	response string
	err      error
	requests []llm.CompletionRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.response, FinishReason: "stop"}, nil
}

func (p *fakeProvider) IsAvailable(context.Context) bool { return true }
func (p *fakeProvider) Close() error                     { return nil }

func transcriptServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProcessorFixture(provider *fakeProvider) (*Processor, *fakeStore) {
	st := newFakeStore()
	p := NewProcessor(st, provider, metrics.NewUnregistered(), logging.NewNopLogger())
	return p, st
}

func requireCategory(t *testing.T, err error, want queues.ErrorCategory) {
	t.Helper()
	procErr, ok := err.(*queues.ProcessingError)
	require.True(t, ok, "expected ProcessingError, got %T: %v", err, err)
	assert.Equal(t, want, procErr.Category)
}

func TestProcess_CompletesMeeting(t *testing.T) {
	srv := transcriptServer(t, http.StatusOK, sampleTranscript)
	provider := &fakeProvider{response: "### Overview\nA productive session.\n\n### Notes\n- intro"}
	p, st := newProcessorFixture(provider)

	st.meetings["m1"] = &store.Meeting{ID: "m1", Status: store.StatusProcessing}
	st.speakers["u1"] = "Ada"
	st.speakers["a1"] = "Interview Coach"

	err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "m1", TranscriptURL: srv.URL})
	require.NoError(t, err)

	m := st.meetings["m1"]
	assert.Equal(t, store.StatusCompleted, m.Status)
	require.NotNil(t, m.Summary)
	assert.Contains(t, *m.Summary, "### Overview")

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.Contains(t, req.SystemPrompt, "expert summarizer")
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, `"Ada"`, "resolved speaker names are sent to the model")
}

func TestProcess_UnknownSpeakerStillSummarized(t *testing.T) {
	srv := transcriptServer(t, http.StatusOK, sampleTranscript)
	provider := &fakeProvider{response: "### Overview\nok\n### Notes\n- n"}
	p, st := newProcessorFixture(provider)

	st.meetings["m1"] = &store.Meeting{ID: "m1", Status: store.StatusProcessing}
	// No speakers registered at all.

	err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "m1", TranscriptURL: srv.URL})
	require.NoError(t, err)

	require.Len(t, provider.requests, 1)
	assert.Contains(t, provider.requests[0].Messages[0].Content, `"Unknown"`)
	assert.Equal(t, store.StatusCompleted, st.meetings["m1"].Status)
}

func TestProcess_AlreadyCompletedIsNoop(t *testing.T) {
	provider := &fakeProvider{response: "should not be called"}
	p, st := newProcessorFixture(provider)

	summary := "### Overview\noriginal"
	st.meetings["m1"] = &store.Meeting{ID: "m1", Status: store.StatusCompleted, Summary: &summary}

	err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "m1", TranscriptURL: "http://unused.invalid"})
	require.NoError(t, err)

	assert.Empty(t, provider.requests, "redelivery must not rerun the pipeline")
	assert.Equal(t, "### Overview\noriginal", *st.meetings["m1"].Summary)
}

func TestProcess_MissingMeetingIsPermanent(t *testing.T) {
	p, _ := newProcessorFixture(&fakeProvider{})

	err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "ghost", TranscriptURL: "http://unused.invalid"})
	requireCategory(t, err, queues.ErrorCategoryPermanent)
}

func TestProcess_MalformedTranscriptIsPermanent(t *testing.T) {
	srv := transcriptServer(t, http.StatusOK, "this is not jsonl")
	provider := &fakeProvider{}
	p, st := newProcessorFixture(provider)

	st.meetings["m1"] = &store.Meeting{ID: "m1", Status: store.StatusProcessing}

	err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "m1", TranscriptURL: srv.URL})
	requireCategory(t, err, queues.ErrorCategoryPermanent)
	assert.Empty(t, provider.requests)
	assert.Equal(t, store.StatusProcessing, st.meetings["m1"].Status)
}

func TestProcess_FetchStatusCategories(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   queues.ErrorCategory
	}{
		{"server error retries", http.StatusBadGateway, queues.ErrorCategoryTransient},
		{"missing artifact dead-letters", http.StatusNotFound, queues.ErrorCategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := transcriptServer(t, tt.status, "")
			p, st := newProcessorFixture(&fakeProvider{})
			st.meetings["m1"] = &store.Meeting{ID: "m1", Status: store.StatusProcessing}

			err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "m1", TranscriptURL: srv.URL})
			requireCategory(t, err, tt.want)
		})
	}
}

func TestProcess_EmptySummaryNotPersisted(t *testing.T) {
	srv := transcriptServer(t, http.StatusOK, sampleTranscript)
	provider := &fakeProvider{response: "   \n\t "}
	p, st := newProcessorFixture(provider)

	st.meetings["m1"] = &store.Meeting{ID: "m1", Status: store.StatusProcessing}

	err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "m1", TranscriptURL: srv.URL})
	requireCategory(t, err, queues.ErrorCategoryPermanent)

	m := st.meetings["m1"]
	assert.Equal(t, store.StatusProcessing, m.Status, "empty completion must not complete the meeting")
	assert.Nil(t, m.Summary)
}

func TestProcess_TransientLLMFailure(t *testing.T) {
	srv := transcriptServer(t, http.StatusOK, sampleTranscript)
	provider := &fakeProvider{err: &llm.LLMError{Code: llm.ErrUnavailable, Message: "connection refused"}}
	p, st := newProcessorFixture(provider)

	st.meetings["m1"] = &store.Meeting{ID: "m1", Status: store.StatusProcessing}

	err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "m1", TranscriptURL: srv.URL})
	requireCategory(t, err, queues.ErrorCategoryTransient)
}

func TestProcess_CancelledMeetingIsNotOverwritten(t *testing.T) {
	srv := transcriptServer(t, http.StatusOK, sampleTranscript)
	provider := &fakeProvider{response: "### Overview\nok"}
	p, st := newProcessorFixture(provider)

	st.meetings["m1"] = &store.Meeting{ID: "m1", Status: store.StatusCancelled}

	err := p.Process(context.Background(), &queues.ProcessingMessage{MeetingID: "m1", TranscriptURL: srv.URL})
	require.NoError(t, err)

	m := st.meetings["m1"]
	assert.Equal(t, store.StatusCancelled, m.Status)
	assert.Nil(t, m.Summary)
}
