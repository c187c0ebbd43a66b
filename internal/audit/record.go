package audit

import (
	"context"
	"time"
)

// Record captures one generation request for offline analysis. Shipping
// is best-effort by construction: no auditability guarantee is made.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Identity  string    `json:"identity"`
	Prompt    string    `json:"prompt"`
	Backend   string    `json:"backend"`
	Decision  string    `json:"decision"`
	ImageURL  string    `json:"image_url,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
}

// Sink receives audit records from the request path. Enqueue must never
// block a request.
type Sink interface {
	Enqueue(rec *Record)
	Close(ctx context.Context) error
}

// NoopSink discards records. Used when audit shipping is not configured.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *Record) {}

func (s *NoopSink) Close(ctx context.Context) error {
	return nil
}
