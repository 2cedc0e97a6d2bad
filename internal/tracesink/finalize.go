package tracesink

import (
	"compress/gzip"
	"fmt"
	"os"
)

// finalizeHook names one of the parser's post-processing passes and the
// suffix its output is written under, in the fixed order spec §4.5
// requires.
type finalizeHook struct {
	suffix string
	write  func(p Parser) ([]byte, error)
}

var finalizeHooks = []finalizeHook{
	{"_netlog_requests.json.gz", Parser.PostProcessNetlogEvents},
	{"_user_timing.json.gz", Parser.WriteUserTiming},
	{"_timeline_cpu.json.gz", Parser.WriteCPUSlices},
	{"_script_timing.json.gz", Parser.WriteScriptTimings},
	{"_feature_usage.json.gz", Parser.WriteFeatureUsage},
	{"_interactive.json.gz", Parser.WriteInteractive},
	{"_v8stats.json.gz", Parser.WriteV8Stats},
}

// StopProcessingTrace flushes any trailing pending screenshot, closes the
// trace output with its literal suffix, then runs the parser's finalize
// hooks in order (ProcessTimelineEvents first as a prerequisite pass with
// no output of its own), writing each non-nil result to
// {pathBase}{suffix}.
func (s *TraceSink) StopProcessingTrace() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	s.sampler.finish()

	var firstErr error
	if _, err := s.gz.Write([]byte(traceSuffix)); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.gz.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.out.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	if s.parser == nil {
		return firstErr
	}

	if err := s.parser.ProcessTimelineEvents(); err != nil {
		s.log.Debugw("process_timeline_events failed", "error", err)
	}

	for _, hook := range finalizeHooks {
		data, err := hook.write(s.parser)
		if err != nil {
			s.log.Debugw("finalize hook failed", "suffix", hook.suffix, "error", err)
			continue
		}
		if data == nil {
			continue
		}
		if err := writeGzipFile(s.pathBase+hook.suffix, data); err != nil {
			s.log.Debugw("failed to write finalize output", "suffix", hook.suffix, "error", err)
		}
	}
	return firstErr
}

func writeGzipFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tracesink: create %s: %w", path, err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
