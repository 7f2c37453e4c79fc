package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rfid-bridge/internal/config"
	"rfid-bridge/internal/models"
	"rfid-bridge/internal/repository/scylla"
	"rfid-bridge/internal/util"
)

// Publisher is the transport capability the card service needs: a
// concurrency-safe publish of one payload to one topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// CardService keeps the device-resident card list and the audit log
// eventually consistent. The store is authoritative; the device is a
// volatile cache of it, rebuilt by the sync pass on every reconnection.
//
// Authorization state per tag is derived from the latest control row, never
// held in memory. No lock wraps a tag's read-then-write sequence, so two
// concurrent calls for the same tag can interleave; the audit log keeps
// both rows and the latest one wins.
type CardService struct {
	repo   scylla.AccessLogRepository
	pub    Publisher
	topics config.TopicsConfig
	logger *zap.Logger
}

func NewCardService(repo scylla.AccessLogRepository, pub Publisher, topics config.TopicsConfig, logger *zap.Logger) *CardService {
	return &CardService{
		repo:   repo,
		pub:    pub,
		topics: topics,
		logger: logger,
	}
}

// Authorize pushes an ADD command to the device side and appends an
// AUTHORIZED control row. accessPoint records what triggered the grant:
// "API" for HTTP calls, "System" for inbound CARD_ADDED notifications.
// When no user name is supplied it is backfilled from the most recent prior
// row for the tag, defaulting to "Unknown User".
func (s *CardService) Authorize(ctx context.Context, tag, userName, accessPoint string) error {
	if err := s.publishCommand(models.CardActionAdd, tag); err != nil {
		util.Warn("Failed to publish ADD command",
			zap.String("rfid_tag", tag),
			zap.Error(err))
	}

	if userName == "" {
		userName = s.backfillUserName(ctx, tag)
	}

	rec := &models.AccessLog{
		UserName:    userName,
		RFIDTag:     tag,
		AccessPoint: accessPoint,
		Status:      models.StatusAuthorized,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return err
	}

	util.Info("Card authorized",
		zap.String("rfid_tag", tag),
		zap.String("user_name", userName),
		zap.String("access_point", accessPoint))
	return nil
}

// Revoke pushes a REMOVE command and flips the most recent AUTHORIZED row
// for the tag to REVOKED in place. A tag with no AUTHORIZED row is a no-op,
// not an error: the device may announce removals we never granted.
func (s *CardService) Revoke(ctx context.Context, tag string) error {
	if err := s.publishCommand(models.CardActionRemove, tag); err != nil {
		util.Warn("Failed to publish REMOVE command",
			zap.String("rfid_tag", tag),
			zap.Error(err))
	}

	rec, err := s.repo.LatestAuthorized(ctx, tag)
	if err != nil {
		return err
	}
	if rec == nil {
		util.Info("Revoke for tag with no authorization, nothing to update",
			zap.String("rfid_tag", tag))
		return nil
	}

	if err := s.repo.MarkRevoked(ctx, tag, rec.CreatedAt); err != nil {
		return err
	}

	util.Info("Card revoked", zap.String("rfid_tag", tag))
	return nil
}

// SyncAuthorized replays the store's authorized set onto the device side:
// one ADD command per distinct tag with an AUTHORIZED row as of query time.
// Runs on every successful (re)connection to the broker.
func (s *CardService) SyncAuthorized(ctx context.Context) error {
	rows, err := s.repo.ListAuthorized(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch authorized cards: %w", err)
	}
	if len(rows) == 0 {
		util.Info("No authorized cards found in store, nothing to sync")
		return nil
	}

	seen := make(map[string]struct{}, len(rows))
	synced := 0
	for _, row := range rows {
		if _, ok := seen[row.RFIDTag]; ok {
			continue
		}
		seen[row.RFIDTag] = struct{}{}

		if err := s.publishCommand(models.CardActionAdd, row.RFIDTag); err != nil {
			util.Warn("Failed to sync card authorization",
				zap.String("rfid_tag", row.RFIDTag),
				zap.Error(err))
			continue
		}
		util.Info("Synced card authorization",
			zap.String("rfid_tag", row.RFIDTag),
			zap.String("user_name", row.UserName))
		synced++
	}

	util.Info("Card sync pass completed",
		zap.Int("authorized_rows", len(rows)),
		zap.Int("commands_sent", synced))
	return nil
}

// OpenDoor publishes an OPEN command on the door control topic.
// Fire-and-forget: a publish failure is logged, never surfaced.
func (s *CardService) OpenDoor(doorID string) {
	if doorID == "" {
		doorID = "main"
	}
	if err := s.pub.Publish(s.topics.DoorControl, []byte("OPEN")); err != nil {
		util.Warn("Failed to publish door open command",
			zap.String("door_id", doorID),
			zap.Error(err))
		return
	}
	util.Info("Door open command sent", zap.String("door_id", doorID))
}

func (s *CardService) publishCommand(action models.CardAction, tag string) error {
	payload := fmt.Sprintf("%s:%s", action, tag)
	return s.pub.Publish(s.topics.Admin, []byte(payload))
}

func (s *CardService) backfillUserName(ctx context.Context, tag string) string {
	rec, err := s.repo.LatestByTag(ctx, tag)
	if err != nil {
		util.Warn("Failed to look up prior row for user name backfill",
			zap.String("rfid_tag", tag),
			zap.Error(err))
		return models.DefaultCardHolder
	}
	if rec == nil || rec.UserName == "" {
		return models.DefaultCardHolder
	}
	return rec.UserName
}
