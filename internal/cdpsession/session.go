// Package cdpsession is the protocol session: command/reply correlation
// multiplexed with async event dispatch over one transport.Connection,
// owned and pumped exclusively by a single foreground goroutine.
package cdpsession

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagewatch/navcore/internal/taskerr"
	"github.com/pagewatch/navcore/internal/transport"
	"github.com/pagewatch/navcore/internal/xlog"
)

// DefaultCommandTimeout is the default wait for a command reply.
const DefaultCommandTimeout = 60 * time.Second

// EventHook is invoked for every async event this session dispatches,
// alongside whatever built-in handling (request tracking, navigation state)
// the event triggers. Used by the devtools event log writer and the
// recorder's initial-frame/mobile-viewport hooks — anything that needs to
// observe the raw stream without owning it.
type EventHook func(method string, params json.RawMessage)

// Session owns one transport.Connection plus all protocol-level state: the
// command/reply correlation table, the request tracker, and the navigation
// monitor. All of its exported methods are meant to be called from a single
// goroutine — there is no internal locking for the command path because
// there is exactly one caller driving it.
type Session struct {
	conn *transport.Connection
	log  *zap.SugaredLogger

	nextID int

	Requests   *RequestTracker
	Navigation *NavigationState

	fatal *taskerr.TaskError

	hooks []EventHook

	// DialogAutoHandle, when true (the default), automatically clears
	// Page.javascriptDialogOpening by sending handleJavaScriptDialog:
	// dismiss first, then accept if the browser rejects a dismiss (some
	// dialog types, notably beforeunload, require accept).
	DialogAutoHandle bool
}

// NewSession wraps an already-connected transport.Connection.
func NewSession(conn *transport.Connection, stopAtOnload bool) *Session {
	return &Session{
		conn:             conn,
		log:              xlog.For("cdpsession"),
		nextID:           1,
		Requests:         NewRequestTracker(),
		Navigation:       NewNavigationState(nil, stopAtOnload),
		DialogAutoHandle: true,
	}
}

// AddEventHook registers an observer called for every dispatched event, in
// registration order, after built-in handling has run.
func (s *Session) AddEventHook(h EventHook) {
	s.hooks = append(s.hooks, h)
}

// Err returns the latched task error, if the session has hit one
// (Inspector.detached, Inspector.targetCrashed, a dead transport, a
// JavaScript dialog that could not be cleared, or a navigation error or
// page-load timeout promoted by WaitForPageLoad). Once set it is never
// cleared or overwritten — first write wins.
func (s *Session) Err() *taskerr.TaskError { return s.fatal }

func (s *Session) latch(e *taskerr.TaskError) {
	if s.fatal == nil {
		s.fatal = e
	}
}

// requiresRendererThread reports whether method runs on the renderer's
// main thread and would therefore hang behind an interstitial (spec §4.2).
func requiresRendererThread(method string) bool {
	switch method {
	case "Page.captureScreenshot", "Runtime.evaluate":
		return true
	default:
		return false
	}
}

type outboundCommand struct {
	ID     int         `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// SendCommand sends method with params and, if wait is true, blocks (pumping
// and dispatching any events received meanwhile) until the matching reply
// arrives or timeout elapses. If wait is false it returns immediately after
// the write succeeds, with a nil result — a fire-and-forget send for
// commands whose reply carries no information the caller needs (e.g.
// Network.addBlockedURL, Tracing.end).
//
// While Navigation.MainThreadBlocked() is true (an interstitial has the
// renderer's main thread stuck), SendCommand refuses to wait specifically
// for renderer-thread commands (Page.captureScreenshot, Runtime.evaluate)
// whose reply would never arrive — every other command, including the
// domain enable/disable calls stop_recording issues, remains available
// (spec §4.2: "model this as a capability check before issuing those
// specific commands, not as a global mute").
func (s *Session) SendCommand(method string, params interface{}, wait bool, timeout time.Duration) (json.RawMessage, error) {
	if wait && requiresRendererThread(method) && s.Navigation.MainThreadBlocked() {
		return nil, taskerr.New(taskerr.StageNavigation, "refusing to wait for reply: main thread blocked by interstitial")
	}

	id := s.nextID
	s.nextID++

	data, err := json.Marshal(outboundCommand{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("cdpsession: marshal %s: %w", method, err)
	}
	if err := s.conn.Send(string(data)); err != nil {
		e := taskerr.Wrap(taskerr.StageTransport, "send "+method, err)
		s.latch(e)
		return nil, e
	}
	if !wait {
		return nil, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, taskerr.New(taskerr.StageTimeout, "timeout waiting for reply to "+method)
		}
		raw, ok := s.conn.Poll(remaining)
		if !ok {
			if !s.conn.IsAlive() {
				e := taskerr.Wrap(taskerr.StageTransport, "connection closed awaiting reply to "+method, s.conn.ReadErr())
				s.latch(e)
				return nil, e
			}
			continue
		}

		env, perr := parseEnvelope(raw)
		if perr != nil {
			s.log.Warnw("discarding unparsable message", "error", perr)
			continue
		}

		if env.isReply() {
			if env.ID != id {
				// Not our reply. In the single in-flight-command model this
				// session uses, that means something else issued a command
				// concurrently with its own pending reply already resolved
				// (shouldn't happen) or a duplicate/late reply. Drop it.
				s.log.Debugw("dropping reply for unexpected id", "id", env.ID, "want", id)
				continue
			}
			if env.Error != nil {
				return nil, fmt.Errorf("%s: %s (code %d)", method, env.Error.Message, env.Error.Code)
			}
			return env.Result, nil
		}

		s.dispatchEvent(env.Method, env.Params)
	}
}

// Pump drains and dispatches at most one inbound message, blocking up to
// timeout. Used by callers (WaitForPageLoad, CollectTrace) that need to
// keep the event stream flowing while waiting on something other than a
// specific command reply. Returns false if nothing arrived within timeout.
func (s *Session) Pump(timeout time.Duration) bool {
	raw, ok := s.conn.Poll(timeout)
	if !ok {
		return false
	}
	env, err := parseEnvelope(raw)
	if err != nil {
		s.log.Warnw("discarding unparsable message", "error", err)
		return true
	}
	if env.isEvent() {
		s.dispatchEvent(env.Method, env.Params)
		return true
	}
	// A reply arrived with nothing waiting for it (its SendCommand caller
	// already gave up, or it's the post-close flush). Nothing to do.
	return true
}

// FlushPending drains every message currently queued without blocking,
// dispatching events as usual. Called right before a phase transition
// (stop recording, collect trace) to make sure nothing sits unprocessed in
// the queue.
func (s *Session) FlushPending() {
	for s.Pump(0) {
	}
}

func (s *Session) dispatchEvent(method string, params json.RawMessage) {
	switch domain(method) {
	case "Network":
		s.dispatchNetwork(method, params)
	case "Page":
		s.dispatchPage(method, params)
	case "Inspector":
		s.dispatchInspector(method, params)
	}
	for _, h := range s.hooks {
		h(method, params)
	}
}

func domain(method string) string {
	for i := 0; i < len(method); i++ {
		if method[i] == '.' {
			return method[:i]
		}
	}
	return method
}
