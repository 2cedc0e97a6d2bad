// Package artifacts writes the non-trace output files described in spec §6:
// the compressed devtools event log, the response-bodies zip and raw body
// files, and the mobile-viewport screenshot crop derivation. Grounded on
// the teacher's TraceRecorder (internal/proxy/tracing.go) for the general
// shape of a streaming gzip/zip artifact writer, and on devtools.py's
// log_dev_tools_event / get_response_bodies / crop_screen_shot for exact
// semantics.
package artifacts

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// devtoolsPreamble/devtoolsSuffix are the literal bytes spec §6 requires.
const devtoolsPreamble = "[{}"
const devtoolsSuffix = "\n]"

// DevToolsLog streams every dispatched protocol event to
// {pathBase}_devtools.json.gz, preserving the literal array-preamble/suffix
// contract so the file parses as valid JSON once closed.
type DevToolsLog struct {
	f   *os.File
	gz  *gzip.Writer
	err error
}

// NewDevToolsLog opens the output file and writes the preamble.
func NewDevToolsLog(pathBase string) (*DevToolsLog, error) {
	f, err := os.Create(pathBase + "_devtools.json.gz")
	if err != nil {
		return nil, fmt.Errorf("artifacts: create devtools log: %w", err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(devtoolsPreamble)); err != nil {
		gz.Close()
		f.Close()
		return nil, fmt.Errorf("artifacts: write devtools log preamble: %w", err)
	}
	return &DevToolsLog{f: f, gz: gz}, nil
}

// Record appends one {"method":..., "params":...} entry. Intended to be
// used as a cdpsession.EventHook. Marshal/write failures are recorded and
// surfaced once from Close, matching spec §7's "never raise outward from
// the pump" policy — a dropped log entry does not abort the recording.
//
// The transport's "got_message" wake sentinel (used to nudge the foreground
// pump after a trace batch is routed directly to the background trace
// sink) and Inspector.* notifications are excluded, matching the original
// log_dev_tools_event's domain filter — neither belongs in the devtools
// event record.
func (d *DevToolsLog) Record(method string, params json.RawMessage) {
	if method == "got_message" || strings.HasPrefix(method, "Inspector.") {
		return
	}
	entry := struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params,omitempty"`
	}{method, params}
	data, err := json.Marshal(entry)
	if err != nil {
		d.err = err
		return
	}
	if _, err := d.gz.Write([]byte(",\n")); err != nil {
		d.err = err
		return
	}
	if _, err := d.gz.Write(data); err != nil {
		d.err = err
	}
}

// Close writes the literal suffix and closes the underlying gzip stream
// and file. Returns the first error encountered across Record calls or
// the close sequence itself.
func (d *DevToolsLog) Close() error {
	if _, err := d.gz.Write([]byte(devtoolsSuffix)); err != nil && d.err == nil {
		d.err = err
	}
	if err := d.gz.Close(); err != nil && d.err == nil {
		d.err = err
	}
	if err := d.f.Close(); err != nil && d.err == nil {
		d.err = err
	}
	return d.err
}
