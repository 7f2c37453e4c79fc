package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"rfid-bridge/internal/models"
	"rfid-bridge/internal/util"
)

// AccessLogRepository defines the store operations the bridge needs against
// the access_logs audit table. Authorization state is never cached: every
// state question is answered by a fresh read of the latest rows.
type AccessLogRepository interface {
	Insert(ctx context.Context, rec *models.AccessLog) error

	// LatestKnownUserName returns the most recent non-"Unknown" user name
	// recorded for the tag, or "" when none exists.
	LatestKnownUserName(ctx context.Context, tag string) (string, error)

	// LatestByTag returns the most recent row for the tag regardless of
	// status, or nil when the tag has never been seen.
	LatestByTag(ctx context.Context, tag string) (*models.AccessLog, error)

	// LatestAuthorized returns the most recent AUTHORIZED row for the tag,
	// or nil when none exists.
	LatestAuthorized(ctx context.Context, tag string) (*models.AccessLog, error)

	// MarkRevoked flips the status of the row identified by (tag, createdAt)
	// to REVOKED in place. This is the only permitted mutation of history.
	MarkRevoked(ctx context.Context, tag string, createdAt time.Time) error

	// ListAuthorized returns every row currently carrying AUTHORIZED status,
	// across all tags.
	ListAuthorized(ctx context.Context) ([]models.AccessLog, error)
}

const (
	insertAccessLogCQL = `INSERT INTO access_logs (user_name, rfid_tag, access_point, status, created_at)
        VALUES (?, ?, ?, ?, ?)`

	selectByTagCQL = `SELECT user_name, rfid_tag, access_point, status, created_at
        FROM access_logs WHERE rfid_tag = ?`

	selectLatestByTagCQL = `SELECT user_name, rfid_tag, access_point, status, created_at
        FROM access_logs WHERE rfid_tag = ? LIMIT 1`

	markRevokedCQL = `UPDATE access_logs SET status = ?
        WHERE rfid_tag = ? AND created_at = ?`

	selectByStatusCQL = `SELECT user_name, rfid_tag, access_point, status, created_at
        FROM access_logs WHERE status = ?`
)

type accessLogRepository struct {
	client *ScyllaClient
}

func NewAccessLogRepository(client *ScyllaClient) AccessLogRepository {
	return &accessLogRepository{client: client}
}

func (r *accessLogRepository) Insert(ctx context.Context, rec *models.AccessLog) error {
	err := r.client.Query(insertAccessLogCQL,
		rec.UserName, rec.RFIDTag, rec.AccessPoint, rec.Status, rec.CreatedAt).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to insert access log",
			zap.String("rfid_tag", rec.RFIDTag),
			zap.String("status", rec.Status),
			zap.Error(err))
		return fmt.Errorf("failed to insert access log: %w", err)
	}
	return nil
}

// LatestKnownUserName walks the tag's partition newest-first and returns the
// first user name that is neither empty nor the "Unknown" sentinel. The
// "not Unknown" filter cannot be expressed in CQL, so it runs client-side;
// a single tag's partition is small.
func (r *accessLogRepository) LatestKnownUserName(ctx context.Context, tag string) (string, error) {
	iter := r.client.Query(selectByTagCQL, tag).WithContext(ctx).Iter()

	var rec models.AccessLog
	for iter.Scan(&rec.UserName, &rec.RFIDTag, &rec.AccessPoint, &rec.Status, &rec.CreatedAt) {
		if rec.UserName != "" && rec.UserName != models.UnknownUserName {
			name := rec.UserName
			_ = iter.Close()
			return name, nil
		}
	}
	if err := iter.Close(); err != nil {
		return "", fmt.Errorf("failed to look up user name for tag %s: %w", tag, err)
	}
	return "", nil
}

func (r *accessLogRepository) LatestByTag(ctx context.Context, tag string) (*models.AccessLog, error) {
	rec := &models.AccessLog{}

	err := r.client.Query(selectLatestByTagCQL, tag).WithContext(ctx).
		Scan(&rec.UserName, &rec.RFIDTag, &rec.AccessPoint, &rec.Status, &rec.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest row for tag %s: %w", tag, err)
	}
	return rec, nil
}

func (r *accessLogRepository) LatestAuthorized(ctx context.Context, tag string) (*models.AccessLog, error) {
	iter := r.client.Query(selectByTagCQL, tag).WithContext(ctx).Iter()

	var rec models.AccessLog
	for iter.Scan(&rec.UserName, &rec.RFIDTag, &rec.AccessPoint, &rec.Status, &rec.CreatedAt) {
		if rec.Status == models.StatusAuthorized {
			found := rec
			_ = iter.Close()
			return &found, nil
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to find authorized row for tag %s: %w", tag, err)
	}
	return nil, nil
}

func (r *accessLogRepository) MarkRevoked(ctx context.Context, tag string, createdAt time.Time) error {
	err := r.client.Query(markRevokedCQL, models.StatusRevoked, tag, createdAt).
		WithContext(ctx).Exec()
	if err != nil {
		util.Error("Failed to mark access log revoked",
			zap.String("rfid_tag", tag),
			zap.Error(err))
		return fmt.Errorf("failed to mark revoked: %w", err)
	}
	return nil
}

func (r *accessLogRepository) ListAuthorized(ctx context.Context) ([]models.AccessLog, error) {
	iter := r.client.Query(selectByStatusCQL, models.StatusAuthorized).WithContext(ctx).Iter()

	var out []models.AccessLog
	var rec models.AccessLog
	for iter.Scan(&rec.UserName, &rec.RFIDTag, &rec.AccessPoint, &rec.Status, &rec.CreatedAt) {
		out = append(out, rec)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list authorized cards: %w", err)
	}
	return out, nil
}
