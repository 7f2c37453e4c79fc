package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"rfid-bridge/internal/models"
	"rfid-bridge/internal/repository/scylla"
)

// fakeAccessRepo is an in-memory AccessLogRepository holding rows newest
// first, matching the clustering order of the real table.
type fakeAccessRepo struct {
	mu   sync.Mutex
	rows []models.AccessLog

	insertErr error
	readErr   error
}

func (f *fakeAccessRepo) Insert(_ context.Context, rec *models.AccessLog) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *rec)
	sort.SliceStable(f.rows, func(i, j int) bool {
		return f.rows[i].CreatedAt.After(f.rows[j].CreatedAt)
	})
	return nil
}

func (f *fakeAccessRepo) LatestKnownUserName(_ context.Context, tag string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.rows {
		if rec.RFIDTag == tag && rec.UserName != "" && rec.UserName != models.UnknownUserName {
			return rec.UserName, nil
		}
	}
	return "", nil
}

func (f *fakeAccessRepo) LatestByTag(_ context.Context, tag string) (*models.AccessLog, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.rows {
		if rec.RFIDTag == tag {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeAccessRepo) LatestAuthorized(_ context.Context, tag string) (*models.AccessLog, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.rows {
		if rec.RFIDTag == tag && rec.Status == models.StatusAuthorized {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeAccessRepo) MarkRevoked(_ context.Context, tag string, createdAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.rows {
		if rec.RFIDTag == tag && rec.CreatedAt.Equal(createdAt) {
			f.rows[i].Status = models.StatusRevoked
			return nil
		}
	}
	return nil
}

func (f *fakeAccessRepo) ListAuthorized(_ context.Context) ([]models.AccessLog, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AccessLog
	for _, rec := range f.rows {
		if rec.Status == models.StatusAuthorized {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeAccessRepo) statuses(tag string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, rec := range f.rows {
		if rec.RFIDTag == tag {
			out = append(out, rec.Status)
		}
	}
	return out
}

var _ scylla.AccessLogRepository = (*fakeAccessRepo)(nil)

type fakeSecurityRepo struct {
	mu     sync.Mutex
	events map[string]*models.SecurityEvent

	insertErr error
}

func newFakeSecurityRepo() *fakeSecurityRepo {
	return &fakeSecurityRepo{events: make(map[string]*models.SecurityEvent)}
}

func (f *fakeSecurityRepo) Insert(_ context.Context, ev *models.SecurityEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.EventID == "" {
		ev.EventID = "generated-id"
	}
	stored := *ev
	f.events[ev.EventID] = &stored
	return nil
}

func (f *fakeSecurityRepo) Resolve(_ context.Context, eventID string, resolvedAt time.Time, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok {
		return scylla.ErrEventNotFound
	}
	ev.Status = models.SecurityStatusResolved
	ev.ResolvedAt = &resolvedAt
	ev.ResolutionNotes = &notes
	return nil
}

var _ scylla.SecurityEventRepository = (*fakeSecurityRepo)(nil)

type publishedMessage struct {
	topic   string
	payload string
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: string(payload)})
	return f.err
}

func (f *fakePublisher) payloads(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, msg := range f.messages {
		if msg.topic == topic {
			out = append(out, msg.payload)
		}
	}
	return out
}

type fakeStreamer struct {
	mu     sync.Mutex
	keys   []string
	values [][]byte
	err    error
}

func (f *fakeStreamer) Produce(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, string(key))
	f.values = append(f.values, value)
	return f.err
}
