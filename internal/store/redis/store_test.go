package redis

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/together/internal/domain"
)

// newTestStore connects to TOGETHER_TEST_REDIS_ADDR and flushes the selected
// database. Tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("TOGETHER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TOGETHER_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return NewStore(client)
}

func TestNewStore_Clock(t *testing.T) {
	fixed := time.Date(2023, 3, 20, 9, 0, 0, 0, time.UTC)

	s := NewStore(nil, WithClock(func() time.Time { return fixed }))
	assert.Equal(t, fixed, s.now())

	assert.NotNil(t, NewStore(nil, WithClock(nil)).now, "nil clock keeps the default")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "together:entry:abc", EntryKey("abc"))
	assert.Equal(t, "together:image:abc", ImageKey("abc"))
}

func TestPing_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer func() { _ = client.Close() }()

	err := NewStore(client).Ping(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
}

func TestJournal_CRUD(t *testing.T) {
	s := newTestStore(t)
	j := s.Journal()
	ctx := context.Background()

	e := domain.Entry{ID: "e1", Title: "First", Content: "été", Author: "Ana", Date: "2023-03-20", Time: "10:00:00", Timestamp: 1}
	require.NoError(t, j.Insert(ctx, e))
	assert.Error(t, j.Insert(ctx, e), "duplicate id must be rejected")

	got, err := j.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	e.Title = "Renamed"
	require.NoError(t, j.Replace(ctx, e))

	list, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Title)

	require.NoError(t, j.Delete(ctx, "e1"))
	assert.True(t, domain.IsNotFound(j.Delete(ctx, "e1")))

	_, err = j.Get(ctx, "e1")
	assert.True(t, domain.IsNotFound(err))
	assert.True(t, domain.IsNotFound(j.Replace(ctx, e)))
}

func TestBlobs_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	b := s.Blobs()
	ctx := context.Background()

	data := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	asset, err := b.Put(ctx, domain.BlobWrite{
		Filename:    "01.png",
		ContentType: "image/png",
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, asset.ID)

	ok, err := b.Exists(ctx, "01.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Exists(ctx, "02.png")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "01.png", list[0].Filename)
	assert.Equal(t, int64(len(data)), list[0].Size)

	blob, err := b.Open(ctx, asset.ID)
	require.NoError(t, err)
	got, err := io.ReadAll(blob.Body)
	require.NoError(t, err)
	require.NoError(t, blob.Body.Close())
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", blob.ContentType)

	require.NoError(t, b.Delete(ctx, asset.ID))
	assert.True(t, domain.IsNotFound(b.Delete(ctx, asset.ID)))

	_, err = b.Open(ctx, asset.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestBlobs_StampedWithClock(t *testing.T) {
	s := newTestStore(t)
	uploaded := time.Date(2023, 6, 28, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return uploaded }
	b := s.Blobs()
	ctx := context.Background()

	data := []byte("GIF89a")
	asset, err := b.Put(ctx, domain.BlobWrite{Filename: "01.gif", ContentType: "image/gif", Size: int64(len(data)), Body: bytes.NewReader(data)})
	require.NoError(t, err)
	assert.Equal(t, uploaded, asset.UpdatedAt)

	list, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uploaded, list[0].UpdatedAt)
}

func TestJournal_DocumentAndIndexStayInStep(t *testing.T) {
	s := newTestStore(t)
	j := s.Journal()
	ctx := context.Background()

	e := domain.Entry{ID: "e1", Title: "First", Content: "c", Author: "Ana", Timestamp: 1}
	require.NoError(t, j.Insert(ctx, e))
	assert.Error(t, j.Insert(ctx, e))

	members, err := s.client.SMembers(ctx, KeyAllEntries).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, members, "a rejected duplicate adds nothing")

	require.NoError(t, j.Delete(ctx, "e1"))
	n, err := s.client.Exists(ctx, EntryKey("e1")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	members, err = s.client.SMembers(ctx, KeyAllEntries).Result()
	require.NoError(t, err)
	assert.Empty(t, members)

	// An index member left without a document is cleared by Delete.
	require.NoError(t, s.client.SAdd(ctx, KeyAllEntries, "stale").Err())
	assert.True(t, domain.IsNotFound(j.Delete(ctx, "stale")))
	members, err = s.client.SMembers(ctx, KeyAllEntries).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}
