// Package tracesink is the streaming trace demultiplexer (spec §4.5):
// it consumes Tracing.dataCollected batches, separates devtools screenshot
// events into the filmstrip sampler, writes everything else to a
// compressed trace stream, and drives a downstream parser's finalize
// hooks. The parser's own algorithms are a black box — only the
// ingest/finalize contract in this file matters here, grounded on the
// original devtools.py's process_trace_event / post-processing call order
// and on the teacher's TraceRecorder (internal/proxy/tracing.go) for the
// general shape of a streaming trace-to-disk writer.
package tracesink

import "encoding/json"

// Parser is the downstream trace analyzer's ingest/finalize contract. Its
// internals are out of scope (spec §1's non-goal list); this package only
// needs to call it in the right order with the right events.
type Parser interface {
	// ProcessTraceEvent ingests one non-screenshot trace event, in arrival
	// order, for later post-processing.
	ProcessTraceEvent(raw json.RawMessage)

	// PostProcessNetlogEvents derives request-timing data and returns it
	// pre-serialized (nil if there is nothing to write).
	PostProcessNetlogEvents() ([]byte, error)
	// ProcessTimelineEvents is a prerequisite pass with no direct file
	// output of its own; it must run before the Write* hooks below.
	ProcessTimelineEvents() error

	WriteUserTiming() ([]byte, error)
	WriteCPUSlices() ([]byte, error)
	WriteScriptTimings() ([]byte, error)
	WriteFeatureUsage() ([]byte, error)
	WriteInteractive() ([]byte, error)
	WriteV8Stats() ([]byte, error)
}
