package tracesink

import (
	"bytes"
	"fmt"
)

// frame is one captured screenshot: its decoded image bytes, elapsed
// milliseconds since trace_ts_start, and the path it was (or would be)
// written to.
type frame struct {
	image  []byte
	timeMs int64
	path   string
}

// minIntervalMs implements spec §4.5 step 2's tiered sampling interval.
func minIntervalMs(msElapsed int64) int64 {
	switch {
	case msElapsed <= 20000:
		return 100
	case msElapsed <= 40000:
		return 500
	default:
		return 2000
	}
}

// screenshotSampler implements the filmstrip sampling state machine from
// spec §4.5. It owns no I/O itself beyond the final write callback, so it
// can be tested without touching a filesystem.
type screenshotSampler struct {
	videoPrefix string
	writeImage  func(path string, image []byte) error
	log         sampleLogger

	last    *frame
	pending *frame
}

type sampleLogger interface {
	Debugw(msg string, kv ...interface{})
}

func newScreenshotSampler(videoPrefix string, writeImage func(string, []byte) error, log sampleLogger) *screenshotSampler {
	return &screenshotSampler{videoPrefix: videoPrefix, writeImage: writeImage, log: log}
}

func framePath(videoPrefix string, msElapsed int64) string {
	return fmt.Sprintf("%s%06d.jpg", videoPrefix, msElapsed)
}

// offer processes one screenshot frame. tsUs is the event's trace-clock
// timestamp in microseconds; traceTsStart is the sink's latched origin, also
// in microseconds.
func (s *screenshotSampler) offer(tsUs, traceTsStart int64, image []byte) {
	msElapsed := round((tsUs - traceTsStart), 1000)
	if msElapsed < 0 {
		return
	}

	cur := &frame{image: image, timeMs: msElapsed, path: framePath(s.videoPrefix, msElapsed)}
	interval := minIntervalMs(msElapsed)

	if s.last != nil && msElapsed-s.last.timeMs < interval {
		if s.pending != nil {
			s.log.Debugw("replacing pending screenshot", "old_ms", s.pending.timeMs, "new_ms", msElapsed)
		}
		s.pending = cur
		return
	}

	var dupAgainst *frame
	if s.pending != nil {
		dupAgainst = s.pending
	} else if s.last != nil {
		dupAgainst = s.last
	}
	if dupAgainst != nil && bytes.Equal(dupAgainst.image, cur.image) {
		s.log.Debugw("dropping duplicate screenshot", "ms", msElapsed)
		return
	}

	if s.last != nil && s.pending != nil && !bytes.Equal(s.last.image, s.pending.image) &&
		msElapsed-s.last.timeMs > 2*interval {
		s.flush(s.pending)
	}

	s.pending = nil
	s.flush(cur)
	s.last = cur
}

// finish flushes a trailing pending frame that was never bridged by a later
// one (spec §4.5's stop_processing_trace step).
func (s *screenshotSampler) finish() {
	if s.pending != nil && (s.last == nil || !bytes.Equal(s.last.image, s.pending.image)) {
		s.flush(s.pending)
	}
	s.pending = nil
}

func (s *screenshotSampler) flush(f *frame) {
	if err := s.writeImage(f.path, f.image); err != nil {
		s.log.Debugw("failed to write screenshot", "path", f.path, "error", err)
	}
}

// round implements round-half-away-from-zero division by divisor, matching
// the source's round((ts - trace_ts_start) / 1000).
func round(numerator, divisor int64) int64 {
	if numerator >= 0 {
		return (numerator + divisor/2) / divisor
	}
	return -((-numerator + divisor/2) / divisor)
}
