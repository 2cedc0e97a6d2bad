package transport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverTabs_PicksFirstPageAndClosesExtras(t *testing.T) {
	var mu sync.Mutex
	var closed []string

	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":"A","type":"page","webSocketDebuggerUrl":"ws://127.0.0.1:1/A"},
			{"id":"B","type":"background_page","webSocketDebuggerUrl":"ws://127.0.0.1:1/B"},
			{"id":"C","type":"page","webSocketDebuggerUrl":"ws://127.0.0.1:1/C"}
		]`)
	})
	mux.HandleFunc("/close/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		closed = append(closed, r.URL.Path)
		mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL, tabID, err := DiscoverTabs(srv.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:1/A", wsURL)
	assert.Equal(t, "A", tabID)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(closed)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/close/C"}, closed, "only the second page-type tab (not the background_page) should be closed")
}

func TestDiscoverTabs_ErrorsWhenNoPageTabPresent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"A","type":"background_page","webSocketDebuggerUrl":"ws://x/A"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, _, err := DiscoverTabs(srv.URL, time.Second)
	assert.Error(t, err)
}

func TestDiscoverTabs_ErrorsOnUnreachableHost(t *testing.T) {
	_, _, err := DiscoverTabs("http://127.0.0.1:1", 100*time.Millisecond)
	assert.Error(t, err)
}

func TestCloseTab_NoRequestSentForEmptyID(t *testing.T) {
	called := false
	mux := http.NewServeMux()
	mux.HandleFunc("/close/", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	CloseTab(srv.URL, "", time.Second)
	assert.False(t, called)
}

func TestCloseTab_SendsRequestForGivenID(t *testing.T) {
	var gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/close/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	CloseTab(srv.URL, "T1", time.Second)
	assert.Equal(t, "/close/T1", gotPath)
}
