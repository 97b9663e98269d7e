// Package events emits planning domain events so downstream consumers can
// react to data and version changes.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/appcontext"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Event types published to the planning events topic.
const (
	TypeCellsUpdated      = "planning.cells.updated"
	TypeVersionCreated    = "planning.version.created"
	TypeVersionCopied     = "planning.version.copied"
	TypeVersionTransition = "planning.version.transitioned"
	TypeVersionDeleted    = "planning.version.deleted"
	TypeAlertRaised       = "planning.alert.raised"
	TypeAlertResolved     = "planning.alert.resolved"
)

// PlanningEvent is the envelope published for every planning change.
type PlanningEvent struct {
	Type      string         `json:"type"`
	TenantID  string         `json:"tenant_id"`
	VersionID string         `json:"version_id"`
	UserID    string         `json:"user_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Publisher is the transport the emitter writes to.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Emitter publishes planning events. A nil publisher disables emission, so
// callers never need to branch on whether Kafka is configured. Publish
// failures are logged and swallowed; events are advisory, not transactional.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// Emit publishes one event keyed by version so per-version ordering holds.
func (e *Emitter) Emit(ctx context.Context, eventType, versionID string, payload map[string]any) {
	if e.publisher == nil {
		return
	}

	event := PlanningEvent{
		Type:      eventType,
		TenantID:  appcontext.GetTenantID(ctx),
		VersionID: versionID,
		UserID:    appcontext.GetUserID(ctx),
		TraceID:   tracing.GetTraceID(ctx),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("failed to serialize planning event")
		return
	}

	headers := map[string]string{
		"event_type": eventType,
		"tenant_id":  event.TenantID,
	}
	key := event.TenantID + ":" + versionID
	if err := e.publisher.Publish(ctx, key, data, headers); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Error("failed to publish planning event")
	}
}
