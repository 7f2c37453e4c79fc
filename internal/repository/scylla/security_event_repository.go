package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rfid-bridge/internal/models"
	"rfid-bridge/internal/util"
)

// ErrEventNotFound is returned when a resolution targets an event id that
// does not exist.
var ErrEventNotFound = errors.New("security event not found")

// SecurityEventRepository defines the store operations for the
// security_events table.
type SecurityEventRepository interface {
	Insert(ctx context.Context, ev *models.SecurityEvent) error

	// Resolve marks the event resolved. Unlike the asynchronous write paths
	// this surfaces failure: resolving an unknown id returns
	// ErrEventNotFound.
	Resolve(ctx context.Context, eventID string, resolvedAt time.Time, notes string) error
}

const (
	insertSecurityEventCQL = `INSERT INTO security_events
        (event_id, sensor_id, event_type, description, severity, status, duration, created_at, resolved_at, resolution_notes)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Cassandra UPDATE is an upsert, so IF EXISTS is what turns an unknown
	// id into an error instead of a ghost row.
	resolveSecurityEventCQL = `UPDATE security_events
        SET status = ?, resolved_at = ?, resolution_notes = ?
        WHERE event_id = ? IF EXISTS`
)

type securityEventRepository struct {
	client *ScyllaClient
}

func NewSecurityEventRepository(client *ScyllaClient) SecurityEventRepository {
	return &securityEventRepository{client: client}
}

func (r *securityEventRepository) Insert(ctx context.Context, ev *models.SecurityEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}

	err := r.client.Query(insertSecurityEventCQL,
		ev.EventID, ev.SensorID, ev.EventType, ev.Description,
		ev.Severity, ev.Status, ev.Duration, ev.CreatedAt,
		ev.ResolvedAt, ev.ResolutionNotes).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to insert security event",
			zap.String("sensor_id", ev.SensorID),
			zap.String("event_type", ev.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

func (r *securityEventRepository) Resolve(ctx context.Context, eventID string, resolvedAt time.Time, notes string) error {
	applied, err := r.client.Query(resolveSecurityEventCQL,
		models.SecurityStatusResolved, resolvedAt, notes, eventID).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to resolve security event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return fmt.Errorf("failed to resolve security event: %w", err)
	}
	if !applied {
		return ErrEventNotFound
	}
	return nil
}
