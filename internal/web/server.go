// Package web provides the HTTP telemetry and command server for the
// pump-controller daemon.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/pump-controller/internal/logic"
	"github.com/sweeney/pump-controller/internal/status"
)

// CommandKind identifies the type of an external command.
type CommandKind int

const (
	// CommandPump forces the pump on or off and switches to MANUAL.
	CommandPump CommandKind = iota
	// CommandMode switches between AUTO and MANUAL.
	CommandMode
	// CommandThreshold stores the legacy raw threshold.
	CommandThreshold
)

// Command is a request from an HTTP handler to the control loop. The
// loop is the single writer of controller state; handlers never touch
// it directly. Reply carries the outcome back to the waiting handler.
type Command struct {
	Kind  CommandKind
	On    bool
	Mode  logic.Mode
	Raw   int
	Reply chan error
}

// replyTimeout bounds how long a handler waits for the control loop to
// pick up and execute a command.
const replyTimeout = 5 * time.Second

// Server serves telemetry and accepts commands over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	cmds       chan<- Command
}

// New creates a Server that reads state from the tracker and forwards
// commands to the given channel. metricsHandler may be nil, in which
// case /metrics returns 404.
func New(addr string, tracker *status.Tracker, cmds chan<- Command, metricsHandler http.Handler) *Server {
	s := &Server{tracker: tracker, cmds: cmds}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleData)
	mux.HandleFunc("/data", s.handleData)
	mux.HandleFunc("/pump", s.handlePump)
	mux.HandleFunc("/mode", s.handleMode)
	mux.HandleFunc("/threshold", s.handleThreshold)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// dispatch sends a command to the control loop and waits for its reply.
func (s *Server) dispatch(cmd Command) error {
	cmd.Reply = make(chan error, 1)

	select {
	case s.cmds <- cmd:
	case <-time.After(replyTimeout):
		return fmt.Errorf("control loop busy")
	}

	select {
	case err := <-cmd.Reply:
		return err
	case <-time.After(replyTimeout):
		return fmt.Errorf("control loop did not reply")
	}
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/data" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handlePump(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Pointer so a missing "on" field is distinguishable from false.
	var req struct {
		On *bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.On == nil {
		http.Error(w, `body must be {"on": true|false}`, http.StatusBadRequest)
		return
	}

	if err := s.dispatch(Command{Kind: CommandPump, On: *req.On}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.writeAck(w)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var mode logic.Mode
	switch req.Mode {
	case "auto", "AUTO":
		mode = logic.ModeAuto
	case "manual", "MANUAL":
		mode = logic.ModeManual
	default:
		http.Error(w, `mode must be "auto" or "manual"`, http.StatusBadRequest)
		return
	}

	if err := s.dispatch(Command{Kind: CommandMode, Mode: mode}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.writeAck(w)
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Raw *int `json:"raw"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Raw == nil {
		http.Error(w, `body must be {"raw": <0..4095>}`, http.StatusBadRequest)
		return
	}
	if *req.Raw < 0 || *req.Raw > logic.RawMax {
		http.Error(w, fmt.Sprintf("raw must be in [0, %d]", logic.RawMax), http.StatusBadRequest)
		return
	}

	if err := s.dispatch(Command{Kind: CommandThreshold, Raw: *req.Raw}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.writeAck(w)
}

// writeAck confirms an applied command with the fresh telemetry snapshot,
// so the caller sees the state it just changed.
func (s *Server) writeAck(w http.ResponseWriter) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
