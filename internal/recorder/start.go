package recorder

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pagewatch/navcore/internal/artifacts"
)

const domainCommandTimeout = 10 * time.Second

// buildTraceCategories composes the Tracing.start category string from job
// flags, always appending rail/user-timing/netlog to the composed set. A
// non-empty TraceCategories is returned as-is instead, with nothing
// appended.
func buildTraceCategories(job *jobLike) string {
	if job.TraceCategories != "" {
		return job.TraceCategories
	}
	cats := []string{"-*", "toplevel", "blink.console", "v8", "cc", "gpu"}
	if job.Trace {
		cats = append(cats, "disabled-by-default-v8.cpu_profiler")
	}
	if job.Timeline {
		cats = append(cats, "devtools.timeline", "disabled-by-default-devtools.timeline", "devtools.timeline.frame")
	}
	if job.Video {
		cats = append(cats, "disabled-by-default-devtools.screenshot")
	}
	cats = append(cats, "rail", "blink.user_timing", "netlog")
	return strings.Join(cats, ",")
}

// jobLike exists only to give buildTraceCategories a narrow view of the
// fields it reads without importing navjob into this file's signature
// directly (StartRecording adapts r.job into it below).
type jobLike struct {
	TraceCategories string
	Trace           bool
	Timeline        bool
	Video           bool
}

// StartRecording brings the session into recording state: optional initial
// frame capture, domain enablement, overrides, block lists, and trace
// start — in the order spec §4.6 describes.
func (r *Recorder) StartRecording() error {
	if r.job.Video {
		if err := r.captureInitialFrame(); err != nil {
			r.log.Warnw("initial frame capture failed", "error", err)
		}
	} else if r.job.Mobile && r.mobileViewport == nil {
		if err := r.captureViewportProbeFrame(); err != nil {
			r.log.Warnw("viewport probe frame failed", "error", err)
		}
	}

	r.Session.FlushPending()

	for _, method := range []string{"Page.enable", "Inspector.enable", "Network.enable"} {
		if _, err := r.Session.SendCommand(method, map[string]interface{}{}, true, domainCommandTimeout); err != nil {
			r.log.Warnw("enable domain failed", "method", method, "error", err)
		}
	}

	if r.job.UserAgent != "" {
		r.Session.SendCommand("Network.setUserAgentOverride", map[string]interface{}{
			"userAgent": r.job.UserAgent,
		}, true, domainCommandTimeout)
	}
	if len(r.job.Headers) > 0 {
		r.Session.SendCommand("Network.setExtraHTTPHeaders", map[string]interface{}{
			"headers": r.job.Headers,
		}, true, domainCommandTimeout)
	}

	if len(r.task.Block) > 0 {
		for _, pattern := range r.task.Block {
			r.Session.SendCommand("Network.addBlockedURL", map[string]interface{}{
				"url": pattern,
			}, false, domainCommandTimeout)
		}
		r.Session.SendCommand("Network.setBlockedURLs", map[string]interface{}{
			"urls": r.task.Block,
		}, true, domainCommandTimeout)
	}

	if r.task.LogData {
		dl, err := artifacts.NewDevToolsLog(r.PathBase())
		if err != nil {
			r.log.Warnw("failed to open devtools log", "error", err)
		} else {
			r.devtoolsLog = dl
			r.Session.AddEventHook(r.devtoolsLog.Record)
		}

		r.Session.SendCommand("Security.enable", map[string]interface{}{}, true, domainCommandTimeout)
		r.Session.SendCommand("Console.enable", map[string]interface{}{}, true, domainCommandTimeout)

		jl := &jobLike{TraceCategories: r.job.TraceCategories, Trace: r.job.Trace, Timeline: r.job.Timeline, Video: r.job.Video}
		categories := buildTraceCategories(jl)

		if err := r.sink.StartProcessingTrace(r.PathBase(), r.VideoPrefix(), 0, r.parser); err != nil {
			r.log.Warnw("start processing trace failed", "error", err)
		} else {
			r.tracing = true
			r.tracingDone = false
			r.conn.SetTraceHook(func(raw string) bool {
				var env struct {
					Method string          `json:"method"`
					Params json.RawMessage `json:"params"`
				}
				if err := json.Unmarshal([]byte(raw), &env); err != nil {
					return false
				}
				if env.Method != "Tracing.dataCollected" {
					return false
				}
				r.sink.ProcessBatch(env.Params)
				return true
			})
			r.Session.AddEventHook(func(method string, _ json.RawMessage) {
				if method == "Tracing.tracingComplete" {
					r.tracingDone = true
				}
			})
			r.Session.SendCommand("Tracing.start", map[string]interface{}{
				"categories": categories,
				"transferMode": "ReportEvents",
			}, true, domainCommandTimeout)
		}
	}

	r.Session.Navigation.StartNavigating()
	return nil
}
