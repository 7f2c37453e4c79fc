package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"rfid-bridge/internal/models"
	"rfid-bridge/internal/repository/scylla"
	"rfid-bridge/internal/util"
)

// ErrMissingFields is returned when a security event candidate lacks one of
// sensor_id, event_type or description. Absence is a hard rejection, not a
// best-effort fill.
var ErrMissingFields = errors.New("security event missing required fields")

// SecurityService validates inbound security alerts, persists accepted ones
// and handles their resolution.
type SecurityService struct {
	repo     scylla.SecurityEventRepository
	streamer EventStreamer
	logger   *zap.Logger
}

func NewSecurityService(repo scylla.SecurityEventRepository, streamer EventStreamer, logger *zap.Logger) *SecurityService {
	return &SecurityService{
		repo:     repo,
		streamer: streamer,
		logger:   logger,
	}
}

// Record validates a candidate, applies defaults and writes the event row.
func (s *SecurityService) Record(ctx context.Context, candidate models.SecurityEventCandidate) error {
	if candidate.SensorID == "" || candidate.EventType == "" || candidate.Description == "" {
		util.Warn("Rejected security event with missing required fields",
			zap.String("sensor_id", candidate.SensorID),
			zap.String("event_type", candidate.EventType))
		return ErrMissingFields
	}

	ev := &models.SecurityEvent{
		SensorID:    candidate.SensorID,
		EventType:   candidate.EventType,
		Description: candidate.Description,
		Severity:    candidate.Severity,
		Status:      candidate.Status,
		Duration:    candidate.Duration,
		CreatedAt:   time.Now().UTC(),
	}
	if ev.Severity == "" {
		ev.Severity = models.DefaultSeverity
	}
	if ev.Status == "" {
		ev.Status = models.SecurityStatusActive
	}

	if err := s.repo.Insert(ctx, ev); err != nil {
		return err
	}

	util.Info("Security event recorded",
		zap.String("event_id", ev.EventID),
		zap.String("sensor_id", ev.SensorID),
		zap.String("event_type", ev.EventType),
		zap.String("severity", ev.Severity))

	s.mirror(ctx, ev)
	return nil
}

// Resolve marks an event resolved with optional notes. Unlike the
// message-driven paths this is request-driven and surfaces failure:
// an unknown event id yields scylla.ErrEventNotFound.
func (s *SecurityService) Resolve(ctx context.Context, eventID, notes string) error {
	if notes == "" {
		notes = models.DefaultResolutionNotes
	}

	if err := s.repo.Resolve(ctx, eventID, time.Now().UTC(), notes); err != nil {
		return err
	}

	util.Info("Security event resolved", zap.String("event_id", eventID))
	return nil
}

func (s *SecurityService) mirror(ctx context.Context, ev *models.SecurityEvent) {
	if s.streamer == nil {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.streamer.Produce(ctx, []byte(ev.SensorID), value); err != nil {
		util.Warn("Failed to mirror security event to audit stream",
			zap.String("event_id", ev.EventID),
			zap.Error(err))
	}
}
