package recorder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagewatch/navcore/internal/cdpsession"
	"github.com/pagewatch/navcore/internal/navjob"
	"github.com/pagewatch/navcore/internal/transport"
	"github.com/pagewatch/navcore/internal/xlog"
)

type fakeCommand struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// newFakeCDPServer starts a websocket server that replies to
// Network.getResponseBody for every request id not in silent, and records
// every request id it was actually asked about.
func newFakeCDPServer(t *testing.T, silent map[string]bool) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var asked []string

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd fakeCommand
			if err := json.Unmarshal(msg, &cmd); err != nil {
				continue
			}
			var params struct {
				RequestID string `json:"requestId"`
			}
			json.Unmarshal(cmd.Params, &params)

			mu.Lock()
			asked = append(asked, params.RequestID)
			mu.Unlock()

			if silent[params.RequestID] {
				continue // simulate a command that never gets a reply
			}
			reply, _ := json.Marshal(map[string]interface{}{
				"id": cmd.ID,
				"result": map[string]interface{}{
					"body":          "hello",
					"base64Encoded": false,
				},
			})
			conn.WriteMessage(websocket.TextMessage, reply)
		}
	}))
	return srv, &asked
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestGetResponseBodies_AbortsAfterTwoConsecutiveNoReplies(t *testing.T) {
	orig := responseBodyTimeout
	responseBodyTimeout = 100 * time.Millisecond
	defer func() { responseBodyTimeout = orig }()

	srv, asked := newFakeCDPServer(t, map[string]bool{"R1": true, "R2": true})
	defer srv.Close()

	conn, err := transport.Connect(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	r := &Recorder{
		conn:    conn,
		job:     navjob.Job{Bodies: true},
		task:    navjob.Task{Dir: t.TempDir(), Prefix: "run"},
		Session: cdpsession.NewSession(conn, false),
		log:     xlog.For("test"),
	}

	seedRequest(r, "R1")
	seedRequest(r, "R2")
	seedRequest(r, "R3")

	require.NoError(t, r.GetResponseBodies())

	assert.Equal(t, []string{"R1", "R2"}, *asked, "R3 must never be queried once two consecutive fetches time out")
}

func TestGetResponseBodies_SkippedWhenNoBodiesAndOptimizationChecksDisabled(t *testing.T) {
	srv, asked := newFakeCDPServer(t, nil)
	defer srv.Close()

	conn, err := transport.Connect(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	r := &Recorder{
		conn:    conn,
		job:     navjob.Job{NoOptimizationChecks: true},
		task:    navjob.Task{Dir: t.TempDir(), Prefix: "run"},
		Session: cdpsession.NewSession(conn, false),
		log:     xlog.For("test"),
	}
	seedRequest(r, "R1")

	require.NoError(t, r.GetResponseBodies())
	assert.Empty(t, *asked)
}

func seedRequest(r *Recorder, requestID string) {
	r.Session.Requests.OnRequestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: network.RequestID(requestID),
		Request:   &network.Request{URL: "https://example.com/" + requestID},
	})
	r.Session.Requests.OnResponseReceived(&network.EventResponseReceived{
		RequestID: network.RequestID(requestID),
		Response: &network.Response{
			URL: "https://example.com/" + requestID, Status: 200,
			MimeType: "text/html",
		},
	})
}

func TestIsTextContentType(t *testing.T) {
	assert.True(t, isTextContentType("text/html; charset=utf-8"))
	assert.True(t, isTextContentType("application/javascript"))
	assert.True(t, isTextContentType("application/json"))
	assert.False(t, isTextContentType("image/png"))
	assert.False(t, isTextContentType("video/mp4"))
}

func TestHeaderValue_CaseInsensitive(t *testing.T) {
	h := map[string]interface{}{"Content-Length": "1234"}
	assert.Equal(t, "1234", headerValue(h, "content-length"))
	assert.Equal(t, "", headerValue(h, "missing"))
}
