// Package recorder is the Session Controller (spec §4.6): the public
// façade orchestrating connect → start recording → wait for load → stop
// recording → collect artifacts. Grounded on the teacher's
// internal/proxy/router.go OnClientConnect (browser-session lifecycle
// bring-up) and on devtools.py's DevTools.prepare/start_recording/
// stop_recording for the exact sequencing.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pagewatch/navcore/internal/artifacts"
	"github.com/pagewatch/navcore/internal/cdpsession"
	"github.com/pagewatch/navcore/internal/navjob"
	"github.com/pagewatch/navcore/internal/taskerr"
	"github.com/pagewatch/navcore/internal/tracesink"
	"github.com/pagewatch/navcore/internal/transport"
	"github.com/pagewatch/navcore/internal/xlog"
)

// Recorder owns one measurement task end to end: one transport connection,
// one protocol session, and the artifact writers it populates.
type Recorder struct {
	Session *cdpsession.Session

	conn *transport.Connection
	tab  string

	job  navjob.Job
	task navjob.Task

	sink        *tracesink.TraceSink
	parser      tracesink.Parser
	tracing     bool
	tracingDone bool

	devtoolsLog *artifacts.DevToolsLog

	mobileViewport *artifacts.Viewport

	log *zap.SugaredLogger
}

// Connect performs discovery + dial against baseURL (e.g.
// "http://localhost:9222") and wraps the resulting connection in a fresh
// Recorder. parser is the downstream trace analyzer; pass nil to skip
// trace post-processing (devtools log and screenshots are unaffected).
func Connect(baseURL string, job navjob.Job, task navjob.Task, parser tracesink.Parser, timeout time.Duration) (*Recorder, error) {
	conn, tab, err := transport.Dial(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		conn:   conn,
		tab:    tab,
		job:    job,
		task:   task,
		parser: parser,
		sink:   tracesink.NewTraceSink(),
		log:    xlog.For("recorder"),
	}
	r.Session = cdpsession.NewSession(conn, task.StopAtOnload)
	return r, nil
}

// PathBase is the artifact filename prefix, P in spec §6.
func (r *Recorder) PathBase() string {
	return filepath.Join(r.task.Dir, r.task.Prefix)
}

// VideoPrefix is V in spec §6: the prefix screenshot filenames are built
// from.
func (r *Recorder) VideoPrefix() string {
	return filepath.Join(r.task.Dir, r.task.VideoSubdirectory, r.task.Prefix)
}

// Prepare resets per-run state and ensures the video directory exists.
func (r *Recorder) Prepare() error {
	dir := filepath.Join(r.task.Dir, r.task.VideoSubdirectory)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("recorder: create video dir: %w", err)
	}
	r.tracingDone = false
	return nil
}

// Navigate issues Page.navigate and marks the navigation monitor as
// expecting a main frame (spec §4.4's idle → expecting-frame transition),
// matching the original's pattern of declaring start_navigating() before
// the command that triggers it is sent.
func (r *Recorder) Navigate(url string, timeout time.Duration) error {
	r.Session.Navigation.StartNavigating()
	_, err := r.Session.SendCommand("Page.navigate", map[string]interface{}{
		"url": url,
	}, true, timeout)
	return err
}

// ExecuteJS wraps Runtime.evaluate, mirroring the original's execute_js
// helper (SPEC_FULL §4): refuses while the main thread is blocked, returns
// the evaluated value's JSON representation.
func (r *Recorder) ExecuteJS(script string, timeout time.Duration) (json.RawMessage, error) {
	if r.Session.Navigation.MainThreadBlocked() {
		return nil, taskerr.New(taskerr.StageNavigation, "execute_js refused: main thread blocked")
	}
	result, err := r.Session.SendCommand("Runtime.evaluate", map[string]interface{}{
		"expression":    script,
		"returnByValue": true,
		"awaitPromise":  true,
	}, true, timeout)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("recorder: parse evaluate result: %w", err)
	}
	return parsed.Result.Value, nil
}

// Close tears down the connection. Does not attempt to run stop_recording's
// artifact-closing sequence — call StopRecording first if a recording is in
// progress.
func (r *Recorder) Close() error {
	return r.conn.Close()
}
