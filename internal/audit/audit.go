// Package audit records operational events that humans follow up on:
// escalation failures, notification misses, flow abandonment analytics.
//
// A sink never returns an error. Auditing is observability, not control
// flow; a failed audit write must not change what the conversation does.
package audit

import (
	"context"
	"log/slog"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one auditable occurrence.
type Event struct {
	Kind     string
	Severity Severity
	Message  string
	LeadID   string
	StaffID  string
}

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// SlogSink writes audit events to the process logger.
type SlogSink struct{}

// NewSlogSink creates a logger-backed sink.
func NewSlogSink() *SlogSink { return &SlogSink{} }

// Record logs the event at a level matching its severity.
func (s *SlogSink) Record(ctx context.Context, ev Event) {
	args := []any{"kind", ev.Kind, "leadID", ev.LeadID}
	if ev.StaffID != "" {
		args = append(args, "staffID", ev.StaffID)
	}
	switch ev.Severity {
	case SeverityCritical:
		slog.Error("AUDIT: "+ev.Message, args...)
	case SeverityWarning:
		slog.Warn("AUDIT: "+ev.Message, args...)
	default:
		slog.Info("AUDIT: "+ev.Message, args...)
	}
}
