package tracesink

import (
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pagewatch/navcore/internal/xlog"
)

// tracePreamble/traceSuffix are the literal bytes spec §6 requires the
// compressed trace output to start/end with.
const tracePreamble = `{"traceEvents":[{}`
const traceSuffix = "\n]}"

// tracedEvent is the subset of a trace event's fields this sink needs to
// classify and route it; everything else is preserved verbatim in Raw for
// the output stream and the downstream parser.
type tracedEvent struct {
	Raw  json.RawMessage
	Cat  string  `json:"cat"`
	Name string  `json:"name"`
	Ts   float64 `json:"ts"`
	Args struct {
		Snapshot string `json:"snapshot"`
	} `json:"args"`
}

func (e *tracedEvent) UnmarshalJSON(b []byte) error {
	type alias tracedEvent
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*e = tracedEvent(a)
	e.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// TraceSink is the Trace Sink described in spec §4.5. Guarded by mu because
// ProcessBatch runs on the transport's background read goroutine while
// StartProcessingTrace/StopProcessingTrace are called from the foreground —
// spec §9's "cyclic state between session and trace sink" note prescribes
// exactly this: a simple mutex over the sink rather than a back-pointer
// dance.
type TraceSink struct {
	mu sync.Mutex

	log *zap.SugaredLogger

	pathBase    string
	videoPrefix string

	out      *os.File
	gz       *gzip.Writer
	started  bool
	sampler  *screenshotSampler
	parser   Parser
	counters map[string]int

	traceTsStart    int64
	haveTraceStart  bool
	userTimingCand  int64
	haveUserTiming  bool
	railCand        int64
	haveRail        bool
}

// NewTraceSink constructs an idle sink; call StartProcessingTrace to open
// output and begin accepting batches.
func NewTraceSink() *TraceSink {
	return &TraceSink{log: xlog.For("tracesink")}
}

// StartProcessingTrace opens the compressed trace output under
// {pathBase}_trace.json.gz and wires the downstream parser. startTimestamp
// is the browser-clock start time in seconds (0 if unknown, in which case
// trace_ts_start is latched when the first screenshot arrives, from an
// earlier navigationStart/fetchStart event or else that screenshot's own
// timestamp — see resolveTraceTsStart).
func (s *TraceSink) StartProcessingTrace(pathBase, videoPrefix string, startTimestamp float64, parser Parser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(videoPrefix), 0o755); err != nil {
		return fmt.Errorf("tracesink: create video dir: %w", err)
	}

	f, err := os.Create(pathBase + "_trace.json.gz")
	if err != nil {
		return fmt.Errorf("tracesink: create trace output: %w", err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(tracePreamble)); err != nil {
		gz.Close()
		f.Close()
		return fmt.Errorf("tracesink: write preamble: %w", err)
	}

	s.pathBase = pathBase
	s.videoPrefix = videoPrefix
	s.out = f
	s.gz = gz
	s.started = true
	s.parser = parser
	s.counters = make(map[string]int)
	s.sampler = newScreenshotSampler(videoPrefix, s.writeImage, s.log)

	if startTimestamp > 0 {
		s.traceTsStart = int64(startTimestamp * 1_000_000)
		s.haveTraceStart = true
	}
	return nil
}

func (s *TraceSink) writeImage(path string, image []byte) error {
	return os.WriteFile(path, image, 0o644)
}

// ProcessBatch handles one Tracing.dataCollected params payload. Safe to
// call from the transport's background read goroutine.
func (s *TraceSink) ProcessBatch(params json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	var payload struct {
		Value []tracedEvent `json:"value"`
	}
	if err := json.Unmarshal(params, &payload); err != nil {
		s.log.Debugw("discarding unparsable trace batch", "error", err)
		return
	}

	for i := range payload.Value {
		s.processEvent(&payload.Value[i])
	}
}

func (s *TraceSink) processEvent(ev *tracedEvent) {
	s.counters[ev.Cat]++

	isUserTiming := strings.Contains(ev.Cat, "blink.user_timing")
	isRail := strings.Contains(ev.Cat, "rail")
	if (ev.Name == "navigationStart" || ev.Name == "fetchStart") && !s.haveTraceStart {
		if isUserTiming && !s.haveUserTiming {
			s.userTimingCand = int64(ev.Ts)
			s.haveUserTiming = true
		} else if isRail && !s.haveRail {
			s.railCand = int64(ev.Ts)
			s.haveRail = true
		}
	}

	isScreenshot := strings.Contains(ev.Cat, "devtools.screenshot") && ev.Name == "Screenshot"
	if isScreenshot {
		s.resolveTraceTsStart(int64(ev.Ts))
		image := decodeBase64(ev.Args.Snapshot)
		if image != nil {
			s.sampler.offer(int64(ev.Ts), s.traceTsStart, image)
		}
		return
	}

	if _, err := s.gz.Write([]byte(",\n")); err == nil {
		s.gz.Write(ev.Raw)
	}
	if s.parser != nil {
		s.parser.ProcessTraceEvent(ev.Raw)
	}
}

// resolveTraceTsStart lazily latches trace_ts_start the first time it's
// needed (a screenshot arrives) if start_timestamp wasn't supplied upfront.
// Prefers the blink.user_timing candidate over the rail one, and falls back
// to the current event's own timestamp if neither fired yet (a streaming
// sink cannot wait indefinitely for an event that may never come).
func (s *TraceSink) resolveTraceTsStart(fallbackTs int64) {
	if s.haveTraceStart {
		return
	}
	switch {
	case s.haveUserTiming:
		s.traceTsStart = s.userTimingCand
	case s.haveRail:
		s.traceTsStart = s.railCand
	default:
		s.traceTsStart = fallbackTs
	}
	s.haveTraceStart = true
}

func decodeBase64(s string) []byte {
	if s == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// CategoryCounts returns a copy of the per-category event counters.
func (s *TraceSink) CategoryCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}
