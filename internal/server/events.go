package server

import (
	"context"
	"time"

	"github.com/raaihank/pasteshield/internal/logger"
	"github.com/raaihank/pasteshield/internal/navigation"
	"github.com/raaihank/pasteshield/internal/phishing"
	"github.com/raaihank/pasteshield/internal/privacy"
	"github.com/raaihank/pasteshield/internal/store"
	"github.com/raaihank/pasteshield/internal/websocket"
	"go.uber.org/zap"
)

// Detection events carry pattern names and counts only. Matched values are
// returned to the caller that supplied them and go nowhere else.

func (s *Server) recordPII(ctx context.Context, requestID, source string, mode privacy.Mode, decision privacy.Decision, result privacy.DetectionResult, elapsed time.Duration) {
	s.detections.Add(1)
	counts := result.Counts()

	s.logger.WithRequestID(requestID).Info("Sensitive data detected",
		zap.String("source", source),
		zap.String("mode", string(mode)),
		zap.String("action", string(decision.Action)),
		logger.Matches(counts),
	)

	s.hub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypePIIDetection,
		RequestID: requestID,
		Data: websocket.PIIDetectionEvent{
			RequestID:    requestID,
			Source:       source,
			Mode:         string(mode),
			Action:       string(decision.Action),
			Counts:       counts,
			TotalMatches: result.TotalMatches(),
			ProcessingMS: float64(elapsed.Microseconds()) / 1000,
		},
	})

	s.persist(ctx, &store.Event{
		Type:         store.EventPII,
		RequestID:    requestID,
		Source:       source,
		Action:       string(decision.Action),
		TotalMatches: result.TotalMatches(),
		Counts:       counts,
	})
}

func (s *Server) recordFile(ctx context.Context, requestID string, mode privacy.Mode, decision privacy.Decision) {
	s.detections.Add(1)

	s.logger.WithRequestID(requestID).Info("Blocked file type selected",
		zap.String("mode", string(mode)),
		zap.String("action", string(decision.Action)),
	)

	s.hub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypePIIDetection,
		RequestID: requestID,
		Data: websocket.PIIDetectionEvent{
			RequestID: requestID,
			Source:    "file",
			Mode:      string(mode),
			Action:    string(decision.Action),
			Counts:    map[string]int{},
		},
	})

	s.persist(ctx, &store.Event{
		Type:      store.EventPII,
		RequestID: requestID,
		Source:    "file",
		Action:    string(decision.Action),
	})
}

func (s *Server) recordPhishing(ctx context.Context, requestID string, result phishing.Result) {
	s.detections.Add(1)

	s.hub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypePhishingDetection,
		RequestID: requestID,
		Data: websocket.PhishingDetectionEvent{
			RequestID:     requestID,
			URL:           result.URL,
			Confidence:    result.Confidence,
			PhishingScore: result.PhishingScore,
			Threshold:     result.Threshold,
		},
	})

	s.persist(ctx, &store.Event{
		Type:       store.EventPhishing,
		RequestID:  requestID,
		Source:     "api",
		Action:     "flagged",
		URL:        result.URL,
		Score:      result.PhishingScore,
		Confidence: result.Confidence,
	})
}

func (s *Server) recordNavigation(ctx context.Context, requestID string, decision navigation.Decision) {
	var score float64
	var confidence int
	if decision.Result != nil {
		score = decision.Result.PhishingScore
		confidence = decision.Result.Confidence
	}
	if decision.Action == navigation.ActionBlock || decision.Action == navigation.ActionWarn {
		s.detections.Add(1)
	}

	s.hub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeNavigation,
		RequestID: requestID,
		Data: websocket.NavigationEvent{
			TabID:      decision.TabID,
			URL:        decision.URL,
			Action:     string(decision.Action),
			Reason:     string(decision.Reason),
			Confidence: confidence,
		},
	})

	if decision.Action == navigation.ActionAllow {
		return
	}
	s.persist(ctx, &store.Event{
		Type:       store.EventNavigation,
		RequestID:  requestID,
		Source:     "navigation",
		Action:     string(decision.Action),
		URL:        decision.URL,
		Score:      score,
		Confidence: confidence,
	})
}

// persist writes an event when a store is configured. Store failures are
// logged and never fail the request.
func (s *Server) persist(ctx context.Context, event *store.Event) {
	if s.store == nil {
		return
	}
	if err := s.store.Insert(ctx, event); err != nil {
		s.logger.Warn("Failed to store detection event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}
