package webhook

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetflow/config"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type serverFixture struct {
	*fixture
	server   *Server
	verifier *Verifier
}

func newServerFixture() *serverFixture {
	f := newFixture()
	verifier := NewVerifier("key-1", "secret-1")
	server := NewServer(
		config.ServerConfig{ListenAddr: ":0", Environment: "development"},
		verifier,
		f.router,
		nil,
		nil,
		prometheus.NewRegistry(),
		logging.NewNopLogger(),
	)
	return &serverFixture{fixture: f, server: server, verifier: verifier}
}

func (f *serverFixture) deliver(t *testing.T, body []byte, signature, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(HeaderSignature, signature)
	}
	if apiKey != "" {
		req.Header.Set(HeaderAPIKey, apiKey)
	}
	rec := httptest.NewRecorder()
	f.server.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_ValidDeliveryApplied(t *testing.T) {
	f := newServerFixture()
	f.addMeeting("m1", store.StatusUpcoming)

	body := []byte(`{"type":"call.session_started","call":{"custom":{"meetingId":"m1"}}}`)
	rec := f.deliver(t, body, f.verifier.Sign(body), "key-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.StatusActive, f.store.meetings["m1"].Status)
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	f := newServerFixture()
	f.addMeeting("m1", store.StatusUpcoming)

	body := []byte(`{"type":"call.session_started","call":{"custom":{"meetingId":"m1"}}}`)
	rec := f.deliver(t, body, "", "key-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, store.StatusUpcoming, f.store.meetings["m1"].Status, "rejected delivery must not touch state")
}

func TestWebhook_BadSignatureRejected(t *testing.T) {
	f := newServerFixture()
	f.addMeeting("m1", store.StatusUpcoming)

	body := []byte(`{"type":"call.session_started","call":{"custom":{"meetingId":"m1"}}}`)
	rec := f.deliver(t, body, "deadbeef", "key-1")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, store.StatusUpcoming, f.store.meetings["m1"].Status)
}

func TestWebhook_WrongAPIKeyRejected(t *testing.T) {
	f := newServerFixture()

	body := []byte(`{"type":"call.session_started","call":{"custom":{"meetingId":"m1"}}}`)
	rec := f.deliver(t, body, f.verifier.Sign(body), "other-key")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_MalformedBody(t *testing.T) {
	f := newServerFixture()

	body := []byte(`{{{`)
	rec := f.deliver(t, body, f.verifier.Sign(body), "key-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_UnknownMeetingIs404(t *testing.T) {
	f := newServerFixture()

	body := []byte(`{"type":"call.session_started","call":{"custom":{"meetingId":"ghost"}}}`)
	rec := f.deliver(t, body, f.verifier.Sign(body), "key-1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhook_BenignNoopIs200(t *testing.T) {
	f := newServerFixture()
	f.addMeeting("m1", store.StatusCompleted)

	body := []byte(`{"type":"call.session_ended","call":{"custom":{"meetingId":"m1"}}}`)
	rec := f.deliver(t, body, f.verifier.Sign(body), "key-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.StatusCompleted, f.store.meetings["m1"].Status)
}

func TestWebhook_UnknownEventTypeIs200(t *testing.T) {
	f := newServerFixture()

	body := []byte(`{"type":"call.ring","call_cid":"default:m1"}`)
	rec := f.deliver(t, body, f.verifier.Sign(body), "key-1")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVersionEndpoint(t *testing.T) {
	f := newServerFixture()

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	f.server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meetflow")
}
