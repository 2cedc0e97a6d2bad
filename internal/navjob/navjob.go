// Package navjob holds the small, explicit subset of job/task configuration
// that the instrumentation core actually reads. Full job-descriptor parsing
// (arbitrary WebPageTest-style job JSON) is an external concern per
// spec.md §1 — this package only shapes what flows into a Session.
package navjob

import (
	"time"

	"github.com/google/uuid"
)

// Job describes the measurement options for one page load, equivalent to
// the subset of the original's `job` dict that devtools.py reads.
type Job struct {
	// Trace adds the V8 CPU profiler category to the trace category set.
	// Tracing itself starts whenever Task.LogData is set.
	Trace bool
	// TraceCategories, if non-empty, replaces the default "-*,toplevel,..."
	// category string entirely.
	TraceCategories string
	// Timeline adds the devtools.timeline, disabled-by-default
	// devtools.timeline and devtools.timeline.frame categories.
	Timeline bool
	// Video enables devtools-screenshot trace category and initial-frame
	// capture.
	Video bool
	// Bodies requests a _bodies.zip of text response bodies.
	Bodies bool
	// NoOptimizationChecks, when true, disables the optimization-check
	// pass that otherwise collects response bodies on its own; bodies are
	// still collected whenever Bodies is set regardless of this flag (the
	// original's "noopt" gate).
	NoOptimizationChecks bool
	// UserAgent overrides the browser's reported user agent when non-empty.
	UserAgent string
	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string
	// Mobile indicates mobile emulation is active. When Video is off,
	// StartRecording captures a probe frame and derives the viewport crop
	// rectangle from it; the filmstrip frames themselves are not cropped.
	Mobile bool
	// Width/Height are the expected emulated viewport, used as a shortcut
	// for cropping when known up front.
	Width, Height int
	// ImageQuality is the JPEG quality (1-100) passed to `convert -quality`.
	ImageQuality int
	// MinActivityGapBeforeSettle is job.time in spec §4.4's completion
	// predicate: the minimum elapsed-test duration before activity/settle
	// checks apply.
	MinActivityGapBeforeSettle time.Duration
}

// Task describes the per-run paths and limits, equivalent to the original's
// `task` dict.
type Task struct {
	// ID is a synthetic identifier for correlating logs/artifacts across a
	// run when the caller doesn't supply one.
	ID string
	// Dir is the output directory for all artifacts.
	Dir string
	// Prefix is the artifact filename prefix (path_base = Dir/Prefix).
	Prefix string
	// VideoSubdirectory is the directory (under Dir) screenshots are
	// written to.
	VideoSubdirectory string
	// Port is the Chromium remote-debugging port to discover tabs on.
	Port int
	// LogData gates whether the devtools event log, tracing, and body
	// collection happen at all (log_data in the original).
	LogData bool
	// StopAtOnload, if true, freezes last-activity tracking once the load
	// event fires — network events afterward never reset the activity
	// clock.
	StopAtOnload bool
	// TimeLimit bounds wait_for_page_load.
	TimeLimit time.Duration
	// ActivityTime is the network-quiescence window required to consider
	// the page settled.
	ActivityTime time.Duration
	// Block is a list of URL substrings to block via Network.setBlockedURLs.
	Block []string
}

// NewID generates a synthetic task id, used by callers that don't supply
// their own (the uuid package wired in from the retrieval pack's
// tomasbasham-har-capture, which uses it the same way for capture-run ids).
func NewID() string {
	return uuid.NewString()
}
