// Navigation state machine and page-load completion predicate. Every
// timestamp here comes from a monotonic clock (time.Time, read via
// time.Now and compared with Sub), never wall-clock, so elapsed-time and
// settle-window checks can't be skewed by a clock adjustment mid-run.
package cdpsession

import "time"

// navState is the frame/navigation lifecycle: idle, expecting-frame,
// navigating, or loaded.
type navState int

const (
	navIdle navState = iota
	navExpectingFrame
	navNavigating
	navLoaded
)

// NavigationState tracks the frame/navigation machine described in spec
// §4.4's state table.
type NavigationState struct {
	clock func() time.Time

	start time.Time
	state navState

	mainFrameID string
	haveMain    bool

	mainRequestID string
	haveMainReq   bool

	pageLoadedAt time.Time
	loaded       bool

	navErrorText string
	navError     bool

	dialogOpen bool
	dialogType string

	mainThreadBlocked bool

	lastActivity time.Time
	stopAtOnload bool
}

// NewNavigationState starts a fresh monitor in the idle state. clock
// defaults to time.Now; tests may inject a fake for deterministic
// elapsed-time assertions.
func NewNavigationState(clock func() time.Time, stopAtOnload bool) *NavigationState {
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	return &NavigationState{
		clock:        clock,
		start:        now,
		lastActivity: now,
		stopAtOnload: stopAtOnload,
		state:        navIdle,
	}
}

// Elapsed returns time since the monitor was created.
func (n *NavigationState) Elapsed() time.Duration { return n.clock().Sub(n.start) }

// SinceActivity returns time since the last network/navigation activity.
func (n *NavigationState) SinceActivity() time.Duration { return n.clock().Sub(n.lastActivity) }

// MarkActivity records activity now, unless the page has already reached
// load and stopAtOnload was requested: activity tracking freezes at onload
// for tasks that asked to stop there. Used for frame/navigation-level
// events, which are never video requests.
func (n *NavigationState) MarkActivity() {
	n.markActivity(false)
}

// MarkNetworkActivity records activity for a tracked Network.* event,
// unless the request belongs to a video (spec §4.3: video requests never
// reset last_activity, since a long download would otherwise block
// settling forever) or stopAtOnload has frozen tracking.
func (n *NavigationState) MarkNetworkActivity(isVideo bool) {
	n.markActivity(isVideo)
}

func (n *NavigationState) markActivity(isVideo bool) {
	if isVideo {
		return
	}
	if n.stopAtOnload && n.loaded {
		return
	}
	n.lastActivity = n.clock()
}

// StartNavigating transitions idle → expecting-frame: the caller is about
// to issue a navigation command and the next frameStartedLoading, whichever
// frame it belongs to, will be taken as the main frame.
func (n *NavigationState) StartNavigating() {
	n.state = navExpectingFrame
}

// MainFrameID returns the bound id, if any.
func (n *NavigationState) MainFrameID() (string, bool) { return n.mainFrameID, n.haveMain }

// MainRequestID returns the bound main request id, if any.
func (n *NavigationState) MainRequestID() (string, bool) { return n.mainRequestID, n.haveMainReq }

// BindMainRequest assigns the main request id the first time a
// requestWillBeSent is observed whose frameId matches the bound main frame.
// Sticky: assigned at most once per session.
func (n *NavigationState) BindMainRequest(requestID string) {
	if n.haveMainReq {
		return
	}
	n.mainRequestID = requestID
	n.haveMainReq = true
}

// OnFrameStartedLoading processes Page.frameStartedLoading. In the
// expecting-frame state, the first frame to start loading (regardless of
// whether it turns out to be a subframe) becomes the main frame: whatever
// starts loading first after a navigation was announced. Once a main frame
// is bound, only that frame's own restarts reset the load/page_loaded
// state.
func (n *NavigationState) OnFrameStartedLoading(frameID string) {
	switch n.state {
	case navExpectingFrame:
		n.mainFrameID = frameID
		n.haveMain = true
		n.state = navNavigating
		n.MarkActivity()
	case navNavigating, navLoaded:
		if n.haveMain && frameID == n.mainFrameID {
			n.loaded = false
			n.pageLoadedAt = time.Time{}
			n.state = navNavigating
			n.MarkActivity()
		}
	}
}

// OnLoadEventFired processes Page.loadEventFired.
func (n *NavigationState) OnLoadEventFired() {
	n.loaded = true
	n.pageLoadedAt = n.clock()
	n.state = navLoaded
	n.MarkActivity()
}

// OnFrameStoppedLoading processes Page.frameStoppedLoading. The main frame
// stopping while not yet loaded also transitions to loaded
// (a frame can stop loading without ever firing `load`, e.g. a same-document
// navigation or an aborted load) — unless a navigation error is already
// latched, which takes precedence.
func (n *NavigationState) OnFrameStoppedLoading(frameID string) {
	if !n.haveMain || frameID != n.mainFrameID {
		return
	}
	if n.navError {
		return
	}
	if !n.loaded {
		n.loaded = true
		n.pageLoadedAt = n.clock()
		n.state = navLoaded
	}
}

// OnNavigationError records an explicit navigation failure (loadingFailed on
// the main request with canceled=false, or an interstitial). Sticky: once
// set it is never cleared.
func (n *NavigationState) OnNavigationError(text string) {
	if n.navError {
		return
	}
	n.navError = true
	n.navErrorText = text
}

// NavigationError reports whether an explicit nav error was observed.
func (n *NavigationState) NavigationError() (string, bool) { return n.navErrorText, n.navError }

// OnInterstitialShown processes Page.interstitialShown: a navigation error
// (if not already set) plus the main-thread-blocked gate — callers may
// still dispatch events and send commands; only blocking waits for
// renderer-thread commands (Page.captureScreenshot, Runtime.evaluate) are
// refused while the renderer's main thread is stuck.
func (n *NavigationState) OnInterstitialShown() {
	n.OnNavigationError("interstitial shown")
	n.mainThreadBlocked = true
}

// OnDialogOpening processes Page.javascriptDialogOpening — the page is now
// blocked on a modal the instrumentation must clear.
func (n *NavigationState) OnDialogOpening(dialogType string) {
	n.dialogOpen = true
	n.dialogType = dialogType
}

// OnDialogClosed clears the dialog-open flag once
// Page.handleJavaScriptDialog has been sent successfully.
func (n *NavigationState) OnDialogClosed() {
	n.dialogOpen = false
	n.dialogType = ""
}

// PendingDialog reports an open dialog's type, if any.
func (n *NavigationState) PendingDialog() (string, bool) { return n.dialogType, n.dialogOpen }

// Loaded reports whether Page.loadEventFired (or an equivalent
// frameStoppedLoading) has ever fired for the main frame. Used by the
// caller of Done to decide whether a navigation-error/timeout completion
// is a real task failure (spec §4.4/§7: both are only promoted to a task
// error "if page_loaded never fired").
func (n *NavigationState) Loaded() bool { return n.loaded }

// SetMainThreadBlocked gates commands that would hang while an interstitial
// (or equivalent) has the renderer main thread stuck.
func (n *NavigationState) SetMainThreadBlocked(blocked bool) { n.mainThreadBlocked = blocked }

// MainThreadBlocked reports the current gate state.
func (n *NavigationState) MainThreadBlocked() bool { return n.mainThreadBlocked }

// Done evaluates the page-load completion predicate:
//   - an explicit navigation error → done
//   - hardTimeout elapsed → done
//   - elapsed > minDuration AND load fired AND ≥1s since load AND network
//     quiet for ≥ settleTime → done
//
// All durations are compared via the monotonic clock only.
func (n *NavigationState) Done(hardTimeout, minDuration, settleTime time.Duration) (done bool, reason string) {
	if _, ok := n.NavigationError(); ok {
		return true, "navigation_error"
	}
	if n.Elapsed() >= hardTimeout {
		return true, "timeout"
	}
	if n.Elapsed() <= minDuration {
		return false, ""
	}
	if !n.loaded {
		return false, ""
	}
	if n.clock().Sub(n.pageLoadedAt) < time.Second {
		return false, ""
	}
	if n.SinceActivity() >= settleTime {
		return true, "settled"
	}
	return false, ""
}
