package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/andywang514/violin-coach/internal/midiscore"
	"github.com/andywang514/violin-coach/pkg/coach"
	"github.com/andywang514/violin-coach/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service coach.Service
	config  *ServerConfig
	log     coach.Logger

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// liveSession pairs a grading session with the hub delivering its events
// to SSE subscribers.
type liveSession struct {
	sess *coach.Session
	hub  *eventHub
}

// NewServer creates a new server instance
func NewServer(service coach.Service, config *ServerConfig) *Server {
	return &Server{
		service:  service,
		config:   config,
		log:      logger.GetLogger(),
		sessions: make(map[string]*liveSession),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func (s *Server) lookup(id string) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.sessions[id]
	return ls, ok
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleCreateSession handles POST /api/sessions. The request is a
// multipart form with the score under "score" (Standard MIDI File) and
// optional "bpm" and "dynamic_tempo" fields.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxScoreFileBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("score")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Missing score file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxScoreFileBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Reading score file: "+err.Error())
		return
	}
	if len(data) > MaxScoreFileBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "Score file too large")
		return
	}

	seq, err := midiscore.Parse(data, header.Filename)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "Parsing score: "+err.Error())
		return
	}

	hub := newEventHub()
	sess, err := s.service.NewSession(seq, coach.SessionHandlers{
		Grading: func(ev coach.GradingEvent) { hub.publish("grading", ev) },
		Target:  func(ev coach.TargetChangedEvent) { hub.publish("target", ev) },
		Tempo:   func(ev coach.TempoChangedEvent) { hub.publish("tempo", ev) },
		Intonation: func(ev coach.IntonationEvent) {
			hub.publish("intonation", ev)
		},
	})
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if v := r.FormValue("bpm"); v != "" {
		var bpm int
		if _, err := fmt.Sscanf(v, "%d", &bpm); err == nil {
			sess.SetBaseBPM(bpm)
		}
	}
	if r.FormValue("dynamic_tempo") == "true" {
		sess.SetDynamicTempoEnabled(true)
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = &liveSession{sess: sess, hub: hub}
	s.mu.Unlock()

	s.log.Infof("Session %s created for %q", sess.ID(), seq.Name)
	s.respondJSON(w, http.StatusCreated, s.sessionResponse(sess))
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		s.respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, s.sessionResponse(ls.sess))
}

// handleCloseSession handles DELETE /api/sessions/{id}. The session is
// stopped and, when any beats were graded, the result is stored.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	ls, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		s.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	ls.sess.Stop()
	ls.hub.close()

	summary := ls.sess.Summary()
	if summary.Beats > 0 {
		if _, err := s.service.SaveResult(summary, ls.sess.Records()); err != nil {
			s.log.Errorf("Failed to save result for session %s: %v", id, err)
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"closed": id,
		"saved":  summary.Beats > 0,
	})
}

// handleSamples handles POST /api/sessions/{id}/samples
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		s.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req SamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, sample := range req.toPitchSamples() {
		ls.sess.OnPitchSample(sample)
	}
	s.respondJSON(w, http.StatusAccepted, map[string]int{"accepted": len(req.Samples)})
}

// handleCommand handles POST /api/sessions/{id}/commands
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		s.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var cmd CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	switch cmd.Action {
	case "start":
		if err := ls.sess.Start(); err != nil {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
	case "stop":
		ls.sess.Stop()
	case "jump":
		ls.sess.JumpToMeasure(cmd.Measure)
	case "reset":
		ls.sess.ResetToStart()
	case "set_bpm":
		ls.sess.SetBaseBPM(cmd.BPM)
	case "dynamic_tempo":
		ls.sess.SetDynamicTempoEnabled(cmd.Enabled)
	case "metronome":
		ls.sess.SetMetronomeEnabled(cmd.Enabled)
	default:
		s.respondError(w, http.StatusBadRequest, "Unknown action: "+cmd.Action)
		return
	}
	s.respondJSON(w, http.StatusOK, s.sessionResponse(ls.sess))
}

// handleEvents handles GET /api/sessions/{id}/events as a server-sent
// event stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		s.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	events, unsubscribe := ls.hub.subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case msg, open := <-events:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleListResults handles GET /api/results
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.ListResults()
	if err != nil {
		s.log.Errorf("Failed to list results: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

// handleGetResult handles GET /api/results/{id}
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, beats, err := s.service.GetResult(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"result": result,
		"beats":  beats,
	})
}

// handleDeleteResult handles DELETE /api/results/{id}
func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteResult(id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) sessionResponse(sess *coach.Session) SessionResponse {
	seq := sess.Sequence()
	return SessionResponse{
		ID:        sess.ID(),
		ScoreName: seq.Name,
		State:     sess.State(),
		Cursor:    sess.Cursor(),
		BaseBPM:   sess.BaseBPM(),
		BPM:       sess.CurrentBPM(),
		Elements:  len(seq.Elements),
		Measures:  seq.MeasureCount(),
	}
}
