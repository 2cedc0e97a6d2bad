package cdpsession

import (
	"time"

	"github.com/pagewatch/navcore/internal/taskerr"
)

// pollInterval bounds how long a single Pump call blocks while waiting for
// page load, so the completion predicate gets re-evaluated regularly even
// during a quiet network (spec §4.4: the predicate must keep being checked,
// not just re-evaluated on event arrival).
const pollInterval = 200 * time.Millisecond

// WaitForPageLoad pumps events until the completion predicate in
// NavigationState.Done is satisfied, a fatal session error is latched, or
// hardTimeout elapses as a last-resort backstop even if Done never trips
// (it always does once Elapsed() passes hardTimeout, but this guards
// against a predicate bug stalling forever). minDuration is the minimum
// test time before settle-checking applies; settleTime is the required
// network-quiet window once minDuration and load have both occurred.
//
// A navigation-error or timeout completion is only promoted to the
// session's latched task error when page_loaded never fired (spec §4.4/§7):
// the literal errorText for a navigation error, or "Page Load Timeout" for
// a timeout. A polling caller is expected to inspect Session.Err() after
// this returns rather than rely solely on the returned err, which only
// ever carries a fatal Inspector/transport failure or the last-resort
// deadline backstop.
func (s *Session) WaitForPageLoad(hardTimeout, minDuration, settleTime time.Duration) (reason string, err error) {
	deadline := time.Now().Add(hardTimeout + 5*time.Second)
	for {
		if e := s.Err(); e != nil {
			return "fatal", e
		}
		if done, reason := s.Navigation.Done(hardTimeout, minDuration, settleTime); done {
			s.latchLoadOutcome(reason)
			return reason, nil
		}
		if time.Now().After(deadline) {
			s.latch(taskerr.New(taskerr.StageTimeout, "Page Load Timeout"))
			return "timeout", taskerr.New(taskerr.StageTimeout, "wait_for_page_load exceeded hard deadline")
		}
		s.Pump(pollInterval)
	}
}

// latchLoadOutcome promotes a navigation-error or timeout completion to the
// session's task error, but only if page_loaded never fired — a completion
// that arrives after a successful load (e.g. a late, already-superseded nav
// error) is not a task failure.
func (s *Session) latchLoadOutcome(reason string) {
	if s.Navigation.Loaded() {
		return
	}
	switch reason {
	case "navigation_error":
		text, _ := s.Navigation.NavigationError()
		s.latch(taskerr.New(taskerr.StageNavigation, text))
	case "timeout":
		s.latch(taskerr.New(taskerr.StageTimeout, "Page Load Timeout"))
	}
}
