package models

import (
	"time"
)

// How a variant was selected
const (
	SelectionDefault = "default"
	SelectionMapping = "mapping"
)

// Trace represents a captured resolution of one mock request
type Trace struct {
	ID          string        `json:"id"`
	ServiceName string        `json:"serviceName"`
	Route       string        `json:"route"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    int64         `json:"duration"` // Duration in nanoseconds
	Request     TraceRequest  `json:"request"`
	Response    TraceResponse `json:"response"`
	VariantID   string        `json:"variantId"`
	Selection   string        `json:"selection"` // default or mapping
	KeyValue    string        `json:"keyValue,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// TraceRequest represents the captured request
type TraceRequest struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Path    string              `json:"path"`
	Query   map[string][]string `json:"query"`
	Headers map[string][]string `json:"headers"`
	Body    string              `json:"body"`
}

// TraceResponse represents the captured response
type TraceResponse struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers"`
}

// TraceFilter represents filters for querying traces
type TraceFilter struct {
	ServiceName string    `json:"serviceName,omitempty"`
	VariantID   string    `json:"variantId,omitempty"`
	Method      string    `json:"method,omitempty"`
	StatusCode  int       `json:"statusCode,omitempty"`
	StartTime   time.Time `json:"startTime,omitempty"`
	EndTime     time.Time `json:"endTime,omitempty"`
	Limit       int       `json:"limit,omitempty"`
}
