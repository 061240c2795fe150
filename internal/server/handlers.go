package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/pasteshield/internal/navigation"
	"github.com/raaihank/pasteshield/internal/privacy"
	"github.com/raaihank/pasteshield/internal/store"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type textRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

type detectResponse struct {
	RequestID string                  `json:"requestId"`
	Detected  bool                    `json:"detected"`
	Total     int                     `json:"totalMatches"`
	Result    privacy.DetectionResult `json:"result"`
	Decision  privacy.Decision        `json:"decision"`
}

type redactResponse struct {
	Text   string                  `json:"text"`
	Result privacy.DetectionResult `json:"result"`
}

type highlightResponse struct {
	Segments []privacy.Segment `json:"segments"`
}

type fileRequest struct {
	Filename string `json:"filename"`
}

type urlRequest struct {
	URL string `json:"url"`
}

type sensitivityRequest struct {
	Sensitivity *int `json:"sensitivity"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleInfo reports build and runtime information
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	snap := s.current.Load()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":              "pasteshield",
		"version":           Version,
		"detector_version":  snap.detector.Version(),
		"threshold":         snap.detector.Threshold(),
		"privacy_mode":      snap.mode,
		"navigation_mode":   s.guard.Mode(),
		"patterns":          len(s.registry.List()),
		"cache_enabled":     s.cacheEnabled(),
		"cache":             s.cacheStats(r.Context()),
		"store_enabled":     s.store != nil,
		"websocket_clients": s.hub.ClientCount(),
		"status":            s.status(),
	})
}

// handleDetect scans text and applies the privacy mode
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start := time.Now()
	snap := s.current.Load()
	result := s.engine.Detect(req.Text, s.registry.List())
	decision := privacy.DecidePaste(snap.mode, req.Text, result, s.registry.Samples())

	requestID := getRequestID(r.Context())
	if result.HasMatches() {
		s.recordPII(r.Context(), requestID, sourceOrDefault(req.Source, "paste"), snap.mode, decision, result, time.Since(start))
	}

	writeJSON(w, http.StatusOK, detectResponse{
		RequestID: requestID,
		Detected:  result.HasMatches(),
		Total:     result.TotalMatches(),
		Result:    result,
		Decision:  decision,
	})
}

// handleRedact replaces every match with its pattern's sample
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	redacted, result := s.engine.RedactText(req.Text, s.registry.List())
	writeJSON(w, http.StatusOK, redactResponse{Text: redacted, Result: result})
}

// handleHighlight partitions text into tagged and untagged segments
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, highlightResponse{
		Segments: s.engine.HighlightPatterns(req.Text, s.registry.List()),
	})
}

// handleFileCheck decides on a file selection by extension
func (s *Server) handleFileCheck(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	snap := s.current.Load()
	decision := privacy.DecideFile(snap.mode, req.Filename, snap.config.Privacy.BlockedExtensions)
	if decision.Action != privacy.ActionAllow || decision.Notify != privacy.NotifyNone {
		s.recordFile(r.Context(), getRequestID(r.Context()), snap.mode, decision)
	}

	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		writePatternError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddPattern(w http.ResponseWriter, r *http.Request) {
	var def privacy.PatternDefinition
	if !decodeJSON(w, r, &def) {
		return
	}

	added, err := s.registry.Add(def)
	if err != nil {
		writePatternError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleUpdatePattern(w http.ResponseWriter, r *http.Request) {
	var def privacy.PatternDefinition
	if !decodeJSON(w, r, &def) {
		return
	}
	def.ID = mux.Vars(r)["id"]

	updated, err := s.registry.Update(def)
	if err != nil {
		writePatternError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleTogglePattern(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	p, err := s.registry.Toggle(mux.Vars(r)["id"], *req.Enabled)
	if err != nil {
		writePatternError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePattern(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(mux.Vars(r)["id"]); err != nil {
		writePatternError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalyze scores a URL. Unparseable URLs are reported in the result,
// not as a request error.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result := s.analyze(r.Context(), req.URL)
	if result.IsPhishing {
		s.recordPhishing(r.Context(), getRequestID(r.Context()), result)
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSensitivity rebuilds the detector with a threshold derived from
// the 0-100 sensitivity knob
func (s *Server) handleSensitivity(w http.ResponseWriter, r *http.Request) {
	var req sensitivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Sensitivity == nil {
		writeError(w, http.StatusBadRequest, "sensitivity is required")
		return
	}

	// retry so a concurrent reload is never overwritten with stale config
	var prev, next *snapshot
	for {
		prev = s.current.Load()
		detector, err := prev.detector.WithSensitivity(*req.Sensitivity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		next = &snapshot{config: prev.config, mode: prev.mode, detector: detector}
		if s.current.CompareAndSwap(prev, next) {
			break
		}
	}
	detector := next.detector
	s.dropStaleVerdicts(prev.detector.Version(), detector.Version())

	s.logger.Info("Phishing sensitivity changed",
		zap.Int("sensitivity", *req.Sensitivity),
		zap.Float64("threshold", detector.Threshold()),
		zap.String("detector_version", detector.Version()),
	)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensitivity":      *req.Sensitivity,
		"threshold":        detector.Threshold(),
		"detector_version": detector.Version(),
	})
}

// handleNavigation runs a committed navigation through the guard
func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	var nav navigation.Navigation
	if !decodeJSON(w, r, &nav) {
		return
	}
	if nav.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	decision := s.guard.HandleNavigation(r.Context(), nav)
	if decision.Reason == navigation.ReasonAnalyzed {
		s.recordNavigation(r.Context(), getRequestID(r.Context()), decision)
	}

	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleNavigationMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	mode, err := navigation.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.guard.SetMode(mode)

	writeJSON(w, http.StatusOK, map[string]navigation.Mode{"mode": mode})
}

// handleMessage accepts warning page messages
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg navigation.Message
	if !decodeJSON(w, r, &msg) {
		return
	}

	resp := s.guard.HandleMessage(msg)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// handleEvents lists recent detection events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "event store is disabled")
		return
	}

	q := store.Query{Type: store.EventType(r.URL.Query().Get("type"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}

	events, err := s.store.Recent(r.Context(), q)
	if err != nil {
		s.logger.Error("Failed to list events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []store.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writePatternError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, privacy.ErrPatternNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, privacy.ErrPatternProtected):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func sourceOrDefault(source, fallback string) string {
	if source == "" {
		return fallback
	}
	return source
}
