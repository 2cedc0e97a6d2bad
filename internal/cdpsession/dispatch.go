package cdpsession

import (
	"encoding/json"

	"github.com/chromedp/cdproto/network"

	"github.com/pagewatch/navcore/internal/taskerr"
)

// dispatchNetwork feeds a Network.* event into the request tracker and, for
// requestWillBeSent on the bound main frame, binds the navigation monitor's
// main request id (spec §4.3's cross-reference with §4.4).
func (s *Session) dispatchNetwork(method string, params json.RawMessage) {
	switch method {
	case "Network.requestWillBeSent":
		var ev network.EventRequestWillBeSent
		if err := json.Unmarshal(params, &ev); err != nil {
			s.log.Warnw("bad requestWillBeSent", "error", err)
			return
		}
		rec := s.Requests.OnRequestWillBeSent(&ev)
		if mainFrame, ok := s.Navigation.MainFrameID(); ok && string(ev.FrameID) == mainFrame {
			s.Navigation.BindMainRequest(rec.ID)
		}
		s.Navigation.MarkNetworkActivity(rec.IsVideo)

	case "Network.resourceChangedPriority":
		var ev network.EventResourceChangedPriority
		if err := json.Unmarshal(params, &ev); err != nil {
			return
		}
		rec := s.Requests.OnResourceChangedPriority(&ev)
		s.Navigation.MarkNetworkActivity(rec.IsVideo)

	case "Network.requestServedFromCache":
		var ev struct {
			RequestID string `json:"requestId"`
		}
		if err := json.Unmarshal(params, &ev); err != nil {
			return
		}
		rec := s.Requests.OnRequestServedFromCache(ev.RequestID)
		s.Navigation.MarkNetworkActivity(rec.IsVideo)

	case "Network.responseReceived":
		var ev network.EventResponseReceived
		if err := json.Unmarshal(params, &ev); err != nil {
			s.log.Warnw("bad responseReceived", "error", err)
			return
		}
		rec := s.Requests.OnResponseReceived(&ev)
		s.Navigation.MarkNetworkActivity(rec.IsVideo)

	case "Network.dataReceived":
		var ev network.EventDataReceived
		if err := json.Unmarshal(params, &ev); err != nil {
			return
		}
		rec := s.Requests.OnDataReceived(&ev)
		s.Navigation.MarkNetworkActivity(rec.IsVideo)

	case "Network.loadingFinished":
		var ev network.EventLoadingFinished
		if err := json.Unmarshal(params, &ev); err != nil {
			return
		}
		rec := s.Requests.OnLoadingFinished(&ev)
		s.Navigation.MarkNetworkActivity(rec.IsVideo)

	case "Network.loadingFailed":
		var ev network.EventLoadingFailed
		if err := json.Unmarshal(params, &ev); err != nil {
			return
		}
		rec := s.Requests.OnLoadingFailed(&ev)
		if mainID, ok := s.Navigation.MainRequestID(); ok && rec.ID == mainID && !ev.Canceled {
			s.Navigation.OnNavigationError(string(ev.ErrorText))
		}
		s.Navigation.MarkNetworkActivity(rec.IsVideo)
	}
}

// pageEvent is the union of fields this package reads across the handful
// of Page.* events it cares about (spec §4.4); each event only populates a
// subset, and cdproto's per-event types don't share a common interface, so
// this narrow struct is unmarshaled directly off the raw params instead of
// pulling in every concrete event type for one or two fields each.
type pageEvent struct {
	FrameID string `json:"frameId"`
	Type    string `json:"type"`
}

// dispatchPage feeds a Page.* event into the navigation state machine.
func (s *Session) dispatchPage(method string, params json.RawMessage) {
	var ev pageEvent
	if len(params) > 0 {
		_ = json.Unmarshal(params, &ev)
	}

	switch method {
	case "Page.frameStartedLoading":
		s.Navigation.OnFrameStartedLoading(ev.FrameID)

	case "Page.frameStoppedLoading":
		s.Navigation.OnFrameStoppedLoading(ev.FrameID)

	case "Page.loadEventFired":
		s.Navigation.OnLoadEventFired()

	case "Page.interstitialShown":
		s.Navigation.OnInterstitialShown()

	case "Page.javascriptDialogOpening":
		s.Navigation.OnDialogOpening(ev.Type)
		if s.DialogAutoHandle {
			s.handleDialog(ev.Type)
		}

	case "Page.javascriptDialogClosed":
		s.Navigation.OnDialogClosed()
	}
}

// handleDialog clears a pending JS dialog: dismiss first, then accept if
// the browser rejects the dismiss (beforeunload dialogs require accept).
// If both fail, the dialog is still blocking the page, so a fatal task
// error is latched (spec §4.4's any-state transition: "if dismiss fails
// try accept; if both fail mark task error").
func (s *Session) handleDialog(dialogType string) {
	_, err := s.SendCommand("Page.handleJavaScriptDialog", map[string]interface{}{
		"accept": false,
	}, true, DefaultCommandTimeout)
	if err == nil {
		return
	}
	_, err = s.SendCommand("Page.handleJavaScriptDialog", map[string]interface{}{
		"accept": true,
	}, true, DefaultCommandTimeout)
	if err != nil {
		s.latch(taskerr.New(taskerr.StageNavigation, "failed to clear javascript dialog: "+dialogType))
	}
}

// dispatchInspector handles the two fatal Inspector.* notifications: a
// detached debugger (renderer gone) or a crashed target. Both latch a fatal
// TaskError on the session so every in-flight wait gives up promptly
// instead of spinning to its timeout.
func (s *Session) dispatchInspector(method string, params json.RawMessage) {
	switch method {
	case "Inspector.detached":
		var ev struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(params, &ev)
		s.latch(taskerr.New(taskerr.StageFatal, "inspector detached: "+ev.Reason))

	case "Inspector.targetCrashed":
		s.latch(taskerr.New(taskerr.StageFatal, "target crashed"))
	}
}
