package cdpsession

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
)

func TestRequestTracker_TransferSizePrefersFinishedEncodedLength(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "R1",
		Request:   &network.Request{URL: "https://example.com/"},
	})
	tr.OnResponseReceived(&network.EventResponseReceived{
		RequestID: "R1",
		Response:  &network.Response{URL: "https://example.com/", Status: 200},
	})
	tr.OnDataReceived(&network.EventDataReceived{RequestID: "R1", EncodedDataLength: 1234})
	tr.OnLoadingFinished(&network.EventLoadingFinished{RequestID: "R1", EncodedDataLength: 5000})

	got := tr.GetRequests()
	assert.Len(t, got, 1)
	assert.Equal(t, int64(5000), got[0].TransferSize)
	assert.EqualValues(t, 200, got[0].Status)
}

func TestRequestTracker_TransferSizeSumsDataReceivedWithoutFinished(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{RequestID: "R1", Request: &network.Request{URL: "https://example.com/a"}})
	tr.OnDataReceived(&network.EventDataReceived{RequestID: "R1", EncodedDataLength: 100})
	tr.OnDataReceived(&network.EventDataReceived{RequestID: "R1", EncodedDataLength: 250})

	got := tr.GetRequests()
	assert.Len(t, got, 1)
	assert.Equal(t, int64(350), got[0].TransferSize)
}

func TestRequestTracker_FromNetStaysFalseAfterCacheHit(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{RequestID: "R1", Request: &network.Request{URL: "https://example.com/"}})
	tr.OnRequestServedFromCache("R1")
	tr.OnResponseReceived(&network.EventResponseReceived{RequestID: "R1", Response: &network.Response{URL: "https://example.com/", Status: 200}})

	rec, ok := tr.Get("R1")
	assert.True(t, ok)
	assert.False(t, rec.FromNet)

	// Cache-marked requests are excluded from GetRequests entirely (spec
	// §4.3: "emit one record per request with fromNet=true").
	assert.Empty(t, tr.GetRequests())
}

func TestRequestTracker_FromDiskCacheAlsoClearsFromNet(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{RequestID: "R1", Request: &network.Request{URL: "https://example.com/"}})
	tr.OnResponseReceived(&network.EventResponseReceived{
		RequestID: "R1",
		Response:  &network.Response{URL: "https://example.com/", Status: 200, FromDiskCache: true},
	})

	rec, _ := tr.Get("R1")
	assert.False(t, rec.FromNet)
}

func TestRequestTracker_IsVideoDetectedByURLSuffix(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{RequestID: "R1", Request: &network.Request{URL: "https://example.com/clip.mp4"}})
	rec, _ := tr.Get("R1")
	assert.True(t, rec.IsVideo)
}

func TestRequestTracker_IsVideoDetectedByMimeType(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{RequestID: "R1", Request: &network.Request{URL: "https://example.com/stream"}})
	tr.OnResponseReceived(&network.EventResponseReceived{
		RequestID: "R1",
		Response:  &network.Response{URL: "https://example.com/stream", Status: 200, MimeType: "video/mp4"},
	})
	rec, _ := tr.Get("R1")
	assert.True(t, rec.IsVideo)
}

func TestRequestTracker_RequestHeadersFallBackToRequestWillBeSent(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "R1",
		Request:   &network.Request{URL: "https://example.com/", Headers: network.Headers{"Accept": "text/html"}},
	})
	tr.OnResponseReceived(&network.EventResponseReceived{
		RequestID: "R1",
		Response:  &network.Response{URL: "https://example.com/", Status: 200},
	})

	got := tr.GetRequests()
	assert.Len(t, got, 1)
	assert.Equal(t, "text/html", got[0].RequestHeaders["Accept"])
}

func TestRequestTracker_PriorityChangeDoesNotCreateASecondRecord(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{RequestID: "R1", Request: &network.Request{URL: "https://example.com/"}})
	tr.OnResourceChangedPriority(&network.EventResourceChangedPriority{RequestID: "R1", NewPriority: network.ResourcePriorityHigh})

	rec, ok := tr.Get("R1")
	assert.True(t, ok)
	assert.Len(t, rec.Priority, 1)
}

func TestRequestTracker_LoadingFailedRecordsFailure(t *testing.T) {
	tr := NewRequestTracker()
	tr.OnRequestWillBeSent(&network.EventRequestWillBeSent{RequestID: "R1", Request: &network.Request{URL: "https://example.com/"}})
	tr.OnLoadingFailed(&network.EventLoadingFailed{RequestID: "R1", ErrorText: "net::ERR_NAME_NOT_RESOLVED"})

	rec, ok := tr.Get("R1")
	assert.True(t, ok)
	assert.NotNil(t, rec.Failed)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", string(rec.Failed.ErrorText))
}
