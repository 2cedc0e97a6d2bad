package recorder

import "time"

const collectTraceGapLimit = 30
const collectTracePoll = 1 * time.Second

// CollectTrace sends Tracing.end and pumps until either
// Tracing.tracingComplete is observed or 30 consecutive 1-second polls
// return nothing (spec §4.6's quiescence-gap heuristic).
func (r *Recorder) CollectTrace() {
	if !r.tracing {
		return
	}
	r.Session.SendCommand("Tracing.end", map[string]interface{}{}, false, domainCommandTimeout)

	gaps := 0
	for !r.tracingDone && gaps < collectTraceGapLimit {
		if r.Session.Pump(collectTracePoll) {
			gaps = 0
		} else {
			gaps++
		}
		if r.Session.Err() != nil {
			break
		}
	}

	r.conn.SetTraceHook(nil)
	if err := r.sink.StopProcessingTrace(); err != nil {
		r.log.Warnw("stop processing trace failed", "error", err)
	}
	r.tracing = false
}

// StopRecording disables domains, collects the trace, flushes pending
// messages, fetches response bodies, and closes the devtools event log —
// in the order spec §4.6 describes. Always runs to completion even if
// individual steps fail, so partial artifacts are still closed out (spec
// §7's propagation policy).
func (r *Recorder) StopRecording() {
	r.Session.SendCommand("Inspector.disable", map[string]interface{}{}, true, domainCommandTimeout)
	r.Session.SendCommand("Page.disable", map[string]interface{}{}, true, domainCommandTimeout)

	r.CollectTrace()

	r.Session.FlushPending()

	if r.task.LogData {
		r.Session.SendCommand("Security.disable", map[string]interface{}{}, true, domainCommandTimeout)
		r.Session.SendCommand("Console.disable", map[string]interface{}{}, true, domainCommandTimeout)

		if err := r.GetResponseBodies(); err != nil {
			r.log.Warnw("response body collection failed", "error", err)
		}
	}

	r.Session.SendCommand("Network.disable", map[string]interface{}{}, true, domainCommandTimeout)

	if r.devtoolsLog != nil {
		if err := r.devtoolsLog.Close(); err != nil {
			r.log.Warnw("failed to close devtools log", "error", err)
		}
		r.devtoolsLog = nil
	}
}
