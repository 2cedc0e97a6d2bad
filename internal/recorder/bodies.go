package recorder

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pagewatch/navcore/internal/artifacts"
	"github.com/pagewatch/navcore/internal/cdpsession"
)

// responseBodyTimeout is a var, not a const, so tests can shrink it instead
// of waiting out the real 10s default per no-reply fetch.
var responseBodyTimeout = 10 * time.Second

// maxVideoBodySize is the "skip bodies for video/* larger than 10 MB" gate
// in spec §4.6.
const maxVideoBodySize = 10 * 1024 * 1024

// GetResponseBodies fetches and persists response bodies for every tracked
// request with status 200 (spec §4.6). Each call fetches all of them again;
// bodies written by an earlier call are not skipped.
// Fetched whenever the job wants a bodies zip, or whenever optimization
// checks are enabled (NoOptimizationChecks is false) since those score off
// collected bodies too; skipped only when neither applies (SPEC_FULL §4's
// restored "noopt"/"bodies" gate, which the distilled spec's "for each
// tracked request ... fetch" phrasing dropped).
//
// A consecutive run of two "no reply at all" failures aborts further
// fetches for this pass; a "body missing" reply (present but empty, rather
// than no reply) resets the counter, same as a successful fetch (spec §4.6,
// DESIGN.md open question decision 2: this asymmetry is preserved for parity
// with the original rather than "fixed").
func (r *Recorder) GetResponseBodies() error {
	if !r.job.Bodies && r.job.NoOptimizationChecks {
		return nil
	}

	bw, err := artifacts.NewBodiesWriter(r.task.Dir, r.PathBase())
	if err != nil {
		return err
	}
	defer bw.Close()

	consecutiveNoReply := 0
	for _, req := range r.Session.Requests.GetRequests() {
		if req.Status != 200 {
			continue
		}
		if consecutiveNoReply >= 2 {
			r.log.Debugw("aborting response body collection after consecutive no-reply failures")
			break
		}

		expected := expectedContentLength(req)
		isText := isTextContentType(headerValue(req.ResponseHeaders, "Content-Type"))
		isVideo := req.IsVideo
		if isVideo && expected > maxVideoBodySize {
			continue
		}

		data, base64Encoded, err := r.fetchResponseBody(req.ID)
		if err != nil {
			consecutiveNoReply++
			r.log.Debugw("response body fetch failed", "request_id", req.ID, "error", err)
			continue
		}
		if data == nil {
			// Body present but empty: a real reply, just nothing to write.
			consecutiveNoReply = 0
			continue
		}
		consecutiveNoReply = 0

		var raw []byte
		if base64Encoded {
			decoded, derr := base64.StdEncoding.DecodeString(string(data))
			if derr != nil {
				r.log.Debugw("failed to decode response body", "request_id", req.ID, "error", derr)
				continue
			}
			raw = decoded
		} else {
			raw = data
		}

		if err := bw.Add(req.ID, raw, isText); err != nil {
			r.log.Debugw("failed to write response body", "request_id", req.ID, "error", err)
		}
	}
	return nil
}

// fetchResponseBody sends Network.getResponseBody and returns the raw body
// bytes plus whether it was base64-encoded. A nil, nil, nil return means
// the browser replied with an empty body (not a fetch failure).
func (r *Recorder) fetchResponseBody(requestID string) (data []byte, base64Encoded bool, err error) {
	result, err := r.Session.SendCommand("Network.getResponseBody", map[string]interface{}{
		"requestId": requestID,
	}, true, responseBodyTimeout)
	if err != nil {
		return nil, false, err
	}
	var parsed struct {
		Body          string `json:"body"`
		Base64Encoded bool   `json:"base64Encoded"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, false, err
	}
	if parsed.Body == "" {
		return nil, false, nil
	}
	return []byte(parsed.Body), parsed.Base64Encoded, nil
}

func expectedContentLength(req cdpsession.RequestSummary) int64 {
	if v := headerValue(req.ResponseHeaders, "Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return req.TransferSize
}

// isTextContentType classifies a Content-Type value per spec §4.6: text/*,
// or containing "javascript" or "json".
func isTextContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "text/") {
		return true
	}
	return strings.Contains(ct, "javascript") || strings.Contains(ct, "json")
}

// headerValue does a case-insensitive lookup into a network.Headers map
// (arbitrary string-keyed JSON values, so each value is stringified).
func headerValue(headers map[string]interface{}, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return fmt.Sprint(v)
		}
	}
	return ""
}
