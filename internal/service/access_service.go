package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"rfid-bridge/internal/models"
	"rfid-bridge/internal/repository/scylla"
	"rfid-bridge/internal/util"
)

// EventStreamer mirrors recorded events onto an audit stream. Optional:
// services tolerate a nil streamer and a failing one.
type EventStreamer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// AccessService records scan outcomes from the access topic, enriching each
// one with the last known display name for the tag.
type AccessService struct {
	repo     scylla.AccessLogRepository
	streamer EventStreamer
	logger   *zap.Logger
}

func NewAccessService(repo scylla.AccessLogRepository, streamer EventStreamer, logger *zap.Logger) *AccessService {
	return &AccessService{
		repo:     repo,
		streamer: streamer,
		logger:   logger,
	}
}

// ResolveUserName looks up the most recent non-sentinel name recorded for
// the tag. A store failure degrades to the sentinel instead of aborting the
// caller: losing the name is better than losing the access record.
func (s *AccessService) ResolveUserName(ctx context.Context, tag string) string {
	name, err := s.repo.LatestKnownUserName(ctx, tag)
	if err != nil {
		util.Warn("User name lookup failed, using sentinel",
			zap.String("rfid_tag", tag),
			zap.Error(err))
		return models.UnknownUserName
	}
	if name == "" {
		return models.UnknownUserName
	}
	return name
}

// RecordAccess persists one scan outcome. Persistence is at-most-once: a
// failed write is reported to the caller for logging but never retried.
func (s *AccessService) RecordAccess(ctx context.Context, ev models.AccessLogEvent) error {
	rec := &models.AccessLog{
		UserName:    s.ResolveUserName(ctx, ev.Tag),
		RFIDTag:     ev.Tag,
		AccessPoint: ev.AccessPoint,
		Status:      ev.Status,
		CreatedAt:   time.Now().UTC(),
	}

	util.Info("Logging access attempt",
		zap.String("status", rec.Status),
		zap.String("user_name", rec.UserName),
		zap.String("rfid_tag", rec.RFIDTag),
		zap.String("access_point", rec.AccessPoint))

	if err := s.repo.Insert(ctx, rec); err != nil {
		return err
	}

	s.mirror(ctx, rec)
	return nil
}

func (s *AccessService) mirror(ctx context.Context, rec *models.AccessLog) {
	if s.streamer == nil {
		return
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.streamer.Produce(ctx, []byte(rec.RFIDTag), value); err != nil {
		util.Warn("Failed to mirror access event to audit stream",
			zap.String("rfid_tag", rec.RFIDTag),
			zap.Error(err))
	}
}
