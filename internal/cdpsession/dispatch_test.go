package cdpsession

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestSession() *Session {
	return NewSession(nil, false)
}

func TestSession_MainRequestBoundOnlyForMainFrameRequest(t *testing.T) {
	s := newTestSession()
	s.Navigation.StartNavigating()
	s.dispatchEvent("Page.frameStartedLoading", mustJSON(t, map[string]string{"frameId": "F-main"}))

	// A request on a different frame must not become the main request.
	s.dispatchEvent("Network.requestWillBeSent", mustJSON(t, map[string]interface{}{
		"requestId": "R-sub", "frameId": "F-other",
		"request": map[string]string{"url": "https://example.com/sub.js"},
	}))
	_, ok := s.Navigation.MainRequestID()
	assert.False(t, ok)

	s.dispatchEvent("Network.requestWillBeSent", mustJSON(t, map[string]interface{}{
		"requestId": "R-main", "frameId": "F-main",
		"request": map[string]string{"url": "https://example.com/"},
	}))
	id, ok := s.Navigation.MainRequestID()
	assert.True(t, ok)
	assert.Equal(t, "R-main", id)
}

func TestSession_LoadingFailedOnMainRequestSetsNavError(t *testing.T) {
	s := newTestSession()
	s.Navigation.StartNavigating()
	s.dispatchEvent("Page.frameStartedLoading", mustJSON(t, map[string]string{"frameId": "F"}))
	s.dispatchEvent("Network.requestWillBeSent", mustJSON(t, map[string]interface{}{
		"requestId": "R1", "frameId": "F",
		"request": map[string]string{"url": "https://example.com/"},
	}))
	s.dispatchEvent("Network.loadingFailed", mustJSON(t, map[string]interface{}{
		"requestId": "R1", "canceled": false, "errorText": "net::ERR_NAME_NOT_RESOLVED",
	}))

	text, ok := s.Navigation.NavigationError()
	assert.True(t, ok)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", text)
}

func TestSession_LoadingFailedCanceledDoesNotSetNavError(t *testing.T) {
	s := newTestSession()
	s.Navigation.StartNavigating()
	s.dispatchEvent("Page.frameStartedLoading", mustJSON(t, map[string]string{"frameId": "F"}))
	s.dispatchEvent("Network.requestWillBeSent", mustJSON(t, map[string]interface{}{
		"requestId": "R1", "frameId": "F",
		"request": map[string]string{"url": "https://example.com/"},
	}))
	s.dispatchEvent("Network.loadingFailed", mustJSON(t, map[string]interface{}{
		"requestId": "R1", "canceled": true, "errorText": "net::ERR_ABORTED",
	}))

	_, ok := s.Navigation.NavigationError()
	assert.False(t, ok)
}

func TestSession_InspectorDetachedLatchesFatalError(t *testing.T) {
	s := newTestSession()
	assert.Nil(t, s.Err())

	s.dispatchEvent("Inspector.detached", mustJSON(t, map[string]string{"reason": "Render process gone."}))
	assert.NotNil(t, s.Err())

	// First write wins: a second fatal event must not replace it.
	firstMsg := s.Err().Error()
	s.dispatchEvent("Inspector.targetCrashed", json.RawMessage(`{}`))
	assert.Equal(t, firstMsg, s.Err().Error())
}

func TestSession_EventHooksInvokedAfterBuiltinHandling(t *testing.T) {
	s := newTestSession()
	var seen []string
	s.AddEventHook(func(method string, _ json.RawMessage) {
		seen = append(seen, method)
	})

	s.dispatchEvent("Page.loadEventFired", json.RawMessage(`{}`))
	assert.Equal(t, []string{"Page.loadEventFired"}, seen)
}

func TestSession_VideoRequestsDoNotMarkActivity(t *testing.T) {
	s := newTestSession()
	time.Sleep(5 * time.Millisecond)
	before := s.Navigation.SinceActivity()

	s.dispatchEvent("Network.requestWillBeSent", mustJSON(t, map[string]interface{}{
		"requestId": "R1", "frameId": "F",
		"request": map[string]string{"url": "https://example.com/clip.mp4"},
	}))
	s.dispatchEvent("Network.dataReceived", mustJSON(t, map[string]interface{}{
		"requestId": "R1", "dataLength": 1000, "encodedDataLength": 1000,
	}))

	assert.GreaterOrEqual(t, s.Navigation.SinceActivity(), before, "a video request must not reset last_activity")
}

func TestSession_NonVideoResponseReceivedMarksActivity(t *testing.T) {
	s := newTestSession()

	s.dispatchEvent("Network.requestWillBeSent", mustJSON(t, map[string]interface{}{
		"requestId": "R1", "frameId": "F",
		"request": map[string]string{"url": "https://example.com/app.js"},
	}))
	s.dispatchEvent("Network.responseReceived", mustJSON(t, map[string]interface{}{
		"requestId": "R1",
		"response":  map[string]interface{}{"url": "https://example.com/app.js", "status": 200, "mimeType": "application/javascript"},
	}))

	assert.Less(t, s.Navigation.SinceActivity(), time.Second)
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
