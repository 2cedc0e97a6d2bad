// Request tracking: reconstructs per-request lifecycles from scattered
// Network.* notifications, keyed by request id.
package cdpsession

import (
	"strings"

	"github.com/chromedp/cdproto/network"
)

// RequestRecord accumulates every notification seen for one request id.
// Ordered slices preserve delivery order, per spec §3's invariants.
type RequestRecord struct {
	ID string

	WillBeSent []*network.EventRequestWillBeSent
	Response   []*network.EventResponseReceived
	DataRecv   []*network.EventDataReceived
	Priority   []*network.EventResourceChangedPriority
	Finished   *network.EventLoadingFinished
	Failed     *network.EventLoadingFailed

	FromNet bool
	IsVideo bool
}

// RequestSummary is the flattened, caller-facing view produced by
// GetRequests — equivalent to one entry of the original's
// get_requests() dict.
type RequestSummary struct {
	ID              string
	URL             string
	Status          int64
	ResponseHeaders network.Headers
	RequestHeaders  network.Headers
	FromNet         bool
	IsVideo         bool
	TransferSize    int64
}

// RequestTracker is the keyed map from request id to RequestRecord, in
// first-seen order. Main request detection and activity timestamps are kept
// by NavigationState, not here.
type RequestTracker struct {
	records map[string]*RequestRecord
	order   []string
}

// NewRequestTracker returns an empty tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{records: make(map[string]*RequestRecord)}
}

func (t *RequestTracker) recordFor(id string) *RequestRecord {
	r, ok := t.records[id]
	if !ok {
		r = &RequestRecord{ID: id}
		t.records[id] = r
		t.order = append(t.order, id)
	}
	return r
}

// isVideoURL detects the .mp4-suffix half of the is_video rule (spec §3).
func isVideoURL(url string) bool {
	return strings.HasSuffix(url, ".mp4")
}

// isVideoMime detects the video/* mime half of the is_video rule.
func isVideoMime(mime string) bool {
	return strings.HasPrefix(mime, "video/")
}

// OnRequestWillBeSent processes a Network.requestWillBeSent event. Returns
// the record so the caller (Session) can check main-request binding against
// the navigation monitor's main frame id.
func (t *RequestTracker) OnRequestWillBeSent(ev *network.EventRequestWillBeSent) *RequestRecord {
	r := t.recordFor(string(ev.RequestID))
	if len(r.WillBeSent) == 0 {
		// Only the first notification marks the request as from the
		// network; a later redirect hop must not undo a cache hit.
		r.FromNet = true
	}
	r.WillBeSent = append(r.WillBeSent, ev)
	if ev.Request != nil && isVideoURL(ev.Request.URL) {
		r.IsVideo = true
	}
	return r
}

// OnResourceChangedPriority processes Network.resourceChangedPriority.
// Returns the record so the caller can feed its IsVideo flag into activity
// tracking.
func (t *RequestTracker) OnResourceChangedPriority(ev *network.EventResourceChangedPriority) *RequestRecord {
	r := t.recordFor(string(ev.RequestID))
	r.Priority = append(r.Priority, ev)
	return r
}

// OnRequestServedFromCache processes Network.requestServedFromCache. Once
// fromNet is false it stays false (spec §3 invariant) — never reset here.
// Returns the record so the caller can feed its IsVideo flag into activity
// tracking.
func (t *RequestTracker) OnRequestServedFromCache(requestID string) *RequestRecord {
	r := t.recordFor(requestID)
	r.FromNet = false
	return r
}

// OnResponseReceived processes Network.responseReceived.
func (t *RequestTracker) OnResponseReceived(ev *network.EventResponseReceived) *RequestRecord {
	r := t.recordFor(string(ev.RequestID))
	r.Response = append(r.Response, ev)
	if ev.Response != nil {
		if ev.Response.FromDiskCache {
			r.FromNet = false
		}
		if isVideoMime(ev.Response.MimeType) {
			r.IsVideo = true
		}
	}
	return r
}

// OnDataReceived processes Network.dataReceived.
func (t *RequestTracker) OnDataReceived(ev *network.EventDataReceived) *RequestRecord {
	r := t.recordFor(string(ev.RequestID))
	r.DataRecv = append(r.DataRecv, ev)
	return r
}

// OnLoadingFinished processes Network.loadingFinished. finished and failed
// are mutually exclusive per spec §3; the last writer wins if a caller
// violates this (shouldn't happen from a well-behaved browser).
func (t *RequestTracker) OnLoadingFinished(ev *network.EventLoadingFinished) *RequestRecord {
	r := t.recordFor(string(ev.RequestID))
	r.Finished = ev
	r.Failed = nil
	return r
}

// OnLoadingFailed processes Network.loadingFailed. Returns the record so the
// caller can additionally check main-request navigation-error promotion.
func (t *RequestTracker) OnLoadingFailed(ev *network.EventLoadingFailed) *RequestRecord {
	r := t.recordFor(string(ev.RequestID))
	r.Failed = ev
	r.Finished = nil
	return r
}

// Get returns the record for id, if any.
func (t *RequestTracker) Get(id string) (*RequestRecord, bool) {
	r, ok := t.records[id]
	return r, ok
}

// GetRequests builds the flattened per-request summaries (spec §4.3):
// one entry per request with FromNet==true, populated from the last
// responseReceived with requestWillBeSent filling in gaps, and
// transfer_size preferring finished.encodedDataLength over summed
// dataReceived sizes.
func (t *RequestTracker) GetRequests() []RequestSummary {
	var out []RequestSummary
	for _, id := range t.order {
		r := t.records[id]
		if !r.FromNet {
			continue
		}
		s := RequestSummary{ID: id, FromNet: r.FromNet, IsVideo: r.IsVideo}

		if len(r.Response) > 0 {
			resp := r.Response[len(r.Response)-1]
			if resp.Response != nil {
				s.URL = resp.Response.URL
				s.Status = resp.Response.Status
				s.ResponseHeaders = resp.Response.Headers
				s.RequestHeaders = resp.Response.RequestHeaders
			}
		}
		if len(r.WillBeSent) > 0 {
			req := r.WillBeSent[len(r.WillBeSent)-1]
			if req.Request != nil {
				if s.URL == "" {
					s.URL = req.Request.URL
				}
				if s.RequestHeaders == nil {
					s.RequestHeaders = req.Request.Headers
				}
			}
		}

		if r.Finished != nil {
			s.TransferSize = int64(r.Finished.EncodedDataLength)
		} else if len(r.DataRecv) > 0 {
			var total int64
			for _, d := range r.DataRecv {
				if int64(d.EncodedDataLength) > 0 {
					total += int64(d.EncodedDataLength)
				} else {
					total += int64(d.DataLength)
				}
			}
			s.TransferSize = total
		}

		out = append(out, s)
	}
	return out
}
