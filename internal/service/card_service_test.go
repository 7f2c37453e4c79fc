package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rfid-bridge/internal/config"
	"rfid-bridge/internal/models"
)

var cardTestTopics = config.TopicsConfig{
	AccessLog:   "rfid/access",
	Admin:       "rfid/admin",
	Security:    "rfid/security",
	DoorControl: "rfid/door",
}

func newCardService(repo *fakeAccessRepo, pub *fakePublisher) *CardService {
	return NewCardService(repo, pub, cardTestTopics, zap.NewNop())
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes ADD and records AUTHORIZED", func(t *testing.T) {
		repo := &fakeAccessRepo{}
		pub := &fakePublisher{}
		svc := newCardService(repo, pub)

		require.NoError(t, svc.Authorize(ctx, "AA:BB:CC:DD", "Alice", models.AccessPointAPI))

		assert.Equal(t, []string{"ADD:AA:BB:CC:DD"}, pub.payloads("rfid/admin"))

		rec, err := repo.LatestAuthorized(ctx, "AA:BB:CC:DD")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "Alice", rec.UserName)
		assert.Equal(t, models.AccessPointAPI, rec.AccessPoint)
	})

	t.Run("backfills user name from prior row", func(t *testing.T) {
		repo := &fakeAccessRepo{}
		require.NoError(t, repo.Insert(ctx, &models.AccessLog{
			UserName: "Alice", RFIDTag: "AA:BB:CC:DD", Status: models.StatusGranted,
			CreatedAt: time.Now().UTC().Add(-time.Hour),
		}))
		svc := newCardService(repo, &fakePublisher{})

		require.NoError(t, svc.Authorize(ctx, "AA:BB:CC:DD", "", models.AccessPointSystem))

		rec, err := repo.LatestAuthorized(ctx, "AA:BB:CC:DD")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "Alice", rec.UserName)
	})

	t.Run("defaults card holder for unseen tag", func(t *testing.T) {
		repo := &fakeAccessRepo{}
		svc := newCardService(repo, &fakePublisher{})

		require.NoError(t, svc.Authorize(ctx, "AA:BB:CC:DD", "", models.AccessPointSystem))

		rec, err := repo.LatestAuthorized(ctx, "AA:BB:CC:DD")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, models.DefaultCardHolder, rec.UserName)
	})

	t.Run("publish failure does not block the store write", func(t *testing.T) {
		repo := &fakeAccessRepo{}
		pub := &fakePublisher{err: errors.New("broker down")}
		svc := newCardService(repo, pub)

		require.NoError(t, svc.Authorize(ctx, "AA:BB:CC:DD", "Alice", models.AccessPointAPI))

		rec, err := repo.LatestAuthorized(ctx, "AA:BB:CC:DD")
		require.NoError(t, err)
		assert.NotNil(t, rec)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		repo := &fakeAccessRepo{insertErr: errors.New("store down")}
		svc := newCardService(repo, &fakePublisher{})

		assert.Error(t, svc.Authorize(ctx, "AA:BB:CC:DD", "Alice", models.AccessPointAPI))
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("flips latest AUTHORIZED row to REVOKED", func(t *testing.T) {
		repo := &fakeAccessRepo{}
		pub := &fakePublisher{}
		svc := newCardService(repo, pub)

		require.NoError(t, svc.Authorize(ctx, "AA:BB:CC:DD", "Alice", models.AccessPointAPI))
		require.NoError(t, svc.Revoke(ctx, "AA:BB:CC:DD"))

		assert.Equal(t,
			[]string{"ADD:AA:BB:CC:DD", "REMOVE:AA:BB:CC:DD"},
			pub.payloads("rfid/admin"))
		assert.Equal(t, []string{models.StatusRevoked}, repo.statuses("AA:BB:CC:DD"))

		rec, err := repo.LatestAuthorized(ctx, "AA:BB:CC:DD")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("unauthorized tag is a no-op but still publishes REMOVE", func(t *testing.T) {
		repo := &fakeAccessRepo{}
		pub := &fakePublisher{}
		svc := newCardService(repo, pub)

		require.NoError(t, svc.Revoke(ctx, "AA:BB:CC:DD"))

		assert.Equal(t, []string{"REMOVE:AA:BB:CC:DD"}, pub.payloads("rfid/admin"))
		assert.Empty(t, repo.rows)
	})

	t.Run("scan rows are never rewritten", func(t *testing.T) {
		repo := &fakeAccessRepo{}
		svc := newCardService(repo, &fakePublisher{})

		base := time.Now().UTC()
		require.NoError(t, repo.Insert(ctx, &models.AccessLog{
			UserName: "Alice", RFIDTag: "AA:BB:CC:DD", Status: models.StatusGranted,
			CreatedAt: base.Add(-time.Minute),
		}))
		require.NoError(t, svc.Authorize(ctx, "AA:BB:CC:DD", "Alice", models.AccessPointAPI))
		require.NoError(t, svc.Revoke(ctx, "AA:BB:CC:DD"))

		assert.Equal(t,
			[]string{models.StatusRevoked, models.StatusGranted},
			repo.statuses("AA:BB:CC:DD"))
	})

	t.Run("store read failure surfaces", func(t *testing.T) {
		repo := &fakeAccessRepo{readErr: errors.New("store down")}
		svc := newCardService(repo, &fakePublisher{})

		assert.Error(t, svc.Revoke(ctx, "AA:BB:CC:DD"))
	})
}

// No lock serializes a tag's read-then-write sequence, so a concurrent
// authorize/revoke pair for one tag may interleave. Both orders are legal:
// the revoke can land before the AUTHORIZED row exists and no-op, leaving
// the grant in place. This test pins down the set of permitted outcomes,
// not a serialization the service never promises.
func TestConcurrentAuthorizeRevoke(t *testing.T) {
	ctx := context.Background()
	const tag = "AA:BB:CC:DD"

	repo := &fakeAccessRepo{}
	pub := &fakePublisher{}
	svc := newCardService(repo, pub)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.Authorize(ctx, tag, "Alice", models.AccessPointAPI))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.Revoke(ctx, tag))
	}()
	wg.Wait()

	statuses := repo.statuses(tag)
	require.Len(t, statuses, 1)
	assert.Contains(t,
		[]string{models.StatusAuthorized, models.StatusRevoked},
		statuses[0])
	assert.ElementsMatch(t,
		[]string{"ADD:" + tag, "REMOVE:" + tag},
		pub.payloads("rfid/admin"))
}

func TestSyncAuthorized(t *testing.T) {
	ctx := context.Background()

	t.Run("one ADD per distinct authorized tag", func(t *testing.T) {
		repo := &fakeAccessRepo{}
		pub := &fakePublisher{}
		svc := newCardService(repo, pub)

		base := time.Now().UTC()
		for i, tag := range []string{"AA:BB:CC:DD", "AA:BB:CC:DD", "11:22:33:44"} {
			require.NoError(t, repo.Insert(ctx, &models.AccessLog{
				UserName: "Alice", RFIDTag: tag, Status: models.StatusAuthorized,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			}))
		}
		require.NoError(t, repo.Insert(ctx, &models.AccessLog{
			UserName: "Bob", RFIDTag: "DE:AD:BE:EF", Status: models.StatusRevoked,
			CreatedAt: base,
		}))

		require.NoError(t, svc.SyncAuthorized(ctx))

		assert.ElementsMatch(t,
			[]string{"ADD:AA:BB:CC:DD", "ADD:11:22:33:44"},
			pub.payloads("rfid/admin"))
	})

	t.Run("empty store publishes nothing", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := newCardService(&fakeAccessRepo{}, pub)

		require.NoError(t, svc.SyncAuthorized(ctx))
		assert.Empty(t, pub.messages)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		repo := &fakeAccessRepo{readErr: errors.New("store down")}
		svc := newCardService(repo, &fakePublisher{})

		assert.Error(t, svc.SyncAuthorized(ctx))
	})
}

func TestOpenDoor(t *testing.T) {
	t.Run("publishes OPEN on the door topic", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := newCardService(&fakeAccessRepo{}, pub)

		svc.OpenDoor("main")

		assert.Equal(t, []string{"OPEN"}, pub.payloads("rfid/door"))
	})

	t.Run("publish failure is swallowed", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		svc := newCardService(&fakeAccessRepo{}, pub)

		assert.NotPanics(t, func() { svc.OpenDoor("") })
	})
}
