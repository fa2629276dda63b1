package tracing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prasenjit/go-modulus/internal/models"
)

// Service keeps a bounded ring of resolution traces and fans new ones out
// to live subscribers
type Service struct {
	mu          sync.RWMutex
	traces      []*models.Trace
	maxTraces   int
	subscribers map[string]chan *models.Trace
}

// NewService creates a new tracing service
func NewService(maxTraces int) *Service {
	if maxTraces <= 0 {
		maxTraces = 1000
	}

	return &Service{
		traces:      make([]*models.Trace, 0),
		maxTraces:   maxTraces,
		subscribers: make(map[string]chan *models.Trace),
	}
}

// RecordTrace records a new trace
func (s *Service) RecordTrace(trace *models.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if trace.ID == "" {
		trace.ID = uuid.New().String()
	}
	if trace.Timestamp.IsZero() {
		trace.Timestamp = time.Now()
	}

	s.traces = append(s.traces, trace)
	if len(s.traces) > s.maxTraces {
		s.traces = s.traces[len(s.traces)-s.maxTraces:]
	}

	// Non-blocking sends under the lock keep Unsubscribe from closing a channel mid-send
	for _, ch := range s.subscribers {
		select {
		case ch <- trace:
		default:
			// Slow subscriber, drop
		}
	}
}

// GetTraces returns traces matching the filter, newest first
func (s *Service) GetTraces(filter *models.TraceFilter) []*models.Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Trace, 0)

	for i := len(s.traces) - 1; i >= 0; i-- {
		trace := s.traces[i]

		if filter != nil && !matches(filter, trace) {
			continue
		}

		result = append(result, trace)

		if filter != nil && filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result
}

func matches(filter *models.TraceFilter, trace *models.Trace) bool {
	if filter.ServiceName != "" && trace.ServiceName != filter.ServiceName {
		return false
	}
	if filter.VariantID != "" && trace.VariantID != filter.VariantID {
		return false
	}
	if filter.Method != "" && trace.Request.Method != filter.Method {
		return false
	}
	if filter.StatusCode != 0 && trace.Response.StatusCode != filter.StatusCode {
		return false
	}
	if !filter.StartTime.IsZero() && trace.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && trace.Timestamp.After(filter.EndTime) {
		return false
	}
	return true
}

// GetTrace returns a single trace by ID
func (s *Service) GetTrace(id string) *models.Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, trace := range s.traces {
		if trace.ID == id {
			return trace
		}
	}

	return nil
}

// ClearTraces removes all traces
func (s *Service) ClearTraces() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traces = make([]*models.Trace, 0)
}

// ClearTracesByService removes traces for one service
func (s *Service) ClearTracesByService(serviceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]*models.Trace, 0, len(s.traces))
	for _, trace := range s.traces {
		if trace.ServiceName != serviceName {
			filtered = append(filtered, trace)
		}
	}
	s.traces = filtered
}

// Subscribe creates a subscription for live traces
func (s *Service) Subscribe() (string, chan *models.Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan *models.Trace, 100)
	s.subscribers[id] = ch

	return id, ch
}

// Unsubscribe removes a subscription
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// GetStats returns tracing statistics
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"totalTraces":       len(s.traces),
		"maxTraces":         s.maxTraces,
		"activeSubscribers": len(s.subscribers),
	}
}
