package models

import (
	"sync"
	"sync/atomic"
	"time"
)

// GlobalStats represents global statistics
type GlobalStats struct {
	TotalRequests     int64         `json:"totalRequests"`
	TotalErrors       int64         `json:"totalErrors"`
	ActiveServices    int           `json:"activeServices"`
	AvgResponseTimeMs float64       `json:"avgResponseTimeMs"`
	RequestsPerSecond float64       `json:"requestsPerSecond"`
	StartTime         time.Time     `json:"startTime"`
	Uptime            string        `json:"uptime"`
	TopServices       []ServiceStat `json:"topServices"`
	RecentErrors      []ErrorStat   `json:"recentErrors"`
	RequestsByHour    []HourlyStat  `json:"requestsByHour"`
}

// ServiceStat represents statistics for a specific mock service
type ServiceStat struct {
	ServiceName       string           `json:"serviceName"`
	TotalRequests     int64            `json:"totalRequests"`
	TotalErrors       int64            `json:"totalErrors"`
	MappedRequests    int64            `json:"mappedRequests"`
	AvgResponseTimeMs float64          `json:"avgResponseTimeMs"`
	MinResponseTimeMs float64          `json:"minResponseTimeMs"`
	MaxResponseTimeMs float64          `json:"maxResponseTimeMs"`
	Variants          map[string]int64 `json:"variants"`
	LastRequestTime   string           `json:"lastRequestTime,omitempty"`
}

// ErrorStat represents an error occurrence
type ErrorStat struct {
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"serviceName"`
	VariantID   string    `json:"variantId"`
	Path        string    `json:"path"`
	Method      string    `json:"method"`
	StatusCode  int       `json:"statusCode"`
	Error       string    `json:"error"`
}

// HourlyStat represents hourly request statistics
type HourlyStat struct {
	Hour     string `json:"hour"`
	Requests int64  `json:"requests"`
	Errors   int64  `json:"errors"`
}

// AtomicServiceStat is a thread-safe version of service statistics
type AtomicServiceStat struct {
	ServiceName     string
	TotalRequests   atomic.Int64
	TotalErrors     atomic.Int64
	MappedRequests  atomic.Int64
	TotalTimeNs     atomic.Int64
	MinTimeNs       atomic.Int64
	MaxTimeNs       atomic.Int64
	LastRequestTime atomic.Value // stores time.Time

	variantsMu sync.Mutex
	variants   map[string]int64
}

// CountVariant increments the served count of a variant
func (a *AtomicServiceStat) CountVariant(id string) {
	a.variantsMu.Lock()
	defer a.variantsMu.Unlock()

	if a.variants == nil {
		a.variants = make(map[string]int64)
	}
	a.variants[id]++
}

// ToServiceStat converts to a regular ServiceStat
func (a *AtomicServiceStat) ToServiceStat() ServiceStat {
	totalReqs := a.TotalRequests.Load()
	totalTimeNs := a.TotalTimeNs.Load()
	var avgMs float64
	if totalReqs > 0 {
		avgMs = float64(totalTimeNs) / float64(totalReqs) / 1e6
	}

	var lastReqTime string
	if t, ok := a.LastRequestTime.Load().(time.Time); ok && !t.IsZero() {
		lastReqTime = t.Format(time.RFC3339)
	}

	a.variantsMu.Lock()
	variants := make(map[string]int64, len(a.variants))
	for k, v := range a.variants {
		variants[k] = v
	}
	a.variantsMu.Unlock()

	return ServiceStat{
		ServiceName:       a.ServiceName,
		TotalRequests:     totalReqs,
		TotalErrors:       a.TotalErrors.Load(),
		MappedRequests:    a.MappedRequests.Load(),
		AvgResponseTimeMs: avgMs,
		MinResponseTimeMs: float64(a.MinTimeNs.Load()) / 1e6,
		MaxResponseTimeMs: float64(a.MaxTimeNs.Load()) / 1e6,
		Variants:          variants,
		LastRequestTime:   lastReqTime,
	}
}
