package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/pagewatch/navcore/internal/taskerr"
	"github.com/pagewatch/navcore/internal/xlog"
)

// tabDescriptor mirrors one entry of the `/json` discovery response.
type tabDescriptor struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverTabs performs the discovery half of spec §4.1 / §6: GET
// {baseURL}/json, find the first page-type tab with a socket URL, and close
// any additional page tabs found via {baseURL}/close/{id}. baseURL has no
// trailing slash, e.g. "http://localhost:9222".
func DiscoverTabs(baseURL string, timeout time.Duration) (wsURL, tabID string, err error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + "/json")
	if err != nil {
		return "", "", &taskerr.ConnectionError{URL: baseURL, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &taskerr.ConnectionError{URL: baseURL, Cause: err}
	}
	if len(body) == 0 {
		return "", "", fmt.Errorf("transport: empty discovery response from %s", baseURL)
	}

	var tabs []tabDescriptor
	if err := json.Unmarshal(body, &tabs); err != nil {
		return "", "", fmt.Errorf("transport: parse discovery response: %w", err)
	}

	log := xlog.For("transport")
	var extras []string
	for _, t := range tabs {
		if t.Type != "page" || t.WebSocketDebuggerURL == "" || t.ID == "" {
			continue
		}
		if wsURL == "" {
			wsURL = t.WebSocketDebuggerURL
			tabID = t.ID
			continue
		}
		extras = append(extras, t.ID)
	}

	for _, id := range extras {
		log.Debugw("closing extra page tab", "tab", id)
		closeResp, cerr := client.Get(baseURL + "/close/" + id)
		if cerr != nil {
			log.Debugw("failed to close extra tab", "tab", id, "error", cerr)
			continue
		}
		closeResp.Body.Close()
	}

	if wsURL == "" {
		return "", "", fmt.Errorf("transport: no page tab available at %s", baseURL)
	}
	return wsURL, tabID, nil
}

// CloseTab closes a single tab by id via the discovery HTTP endpoint.
func CloseTab(baseURL, tabID string, timeout time.Duration) {
	if tabID == "" {
		return
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + "/close/" + tabID)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// Dial discovers a tab and connects to it, retrying the whole discover+dial
// sequence with backoff (via avast/retry-go) until timeout elapses. It
// tries the discovered host first, then the same URL with "localhost"
// rewritten to "127.0.0.1" — a workaround for dual-stack resolution issues
// some Chromium builds exhibit (spec §4.1).
func Dial(baseURL string, timeout time.Duration) (*Connection, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var conn *Connection
	var tabID string

	attempt := func() error {
		wsURL, id, err := DiscoverTabs(baseURL, timeout)
		if err != nil {
			return err
		}

		c, dialErr := Connect(wsURL, nil)
		if dialErr == nil {
			conn, tabID = c, id
			return nil
		}

		if strings.Contains(wsURL, "localhost") {
			altURL := strings.Replace(wsURL, "localhost", "127.0.0.1", 1)
			c, altErr := Connect(altURL, nil)
			if altErr == nil {
				conn, tabID = c, id
				return nil
			}
			return altErr
		}
		return dialErr
	}

	err := retry.Do(
		attempt,
		retry.Attempts(0), // unlimited; bounded by retry.Context below
		retry.Context(ctx),
		retry.Delay(250*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, "", err
	}
	return conn, tabID, nil
}
