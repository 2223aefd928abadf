package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averyhart/pettycoon/internal/domain"
	"github.com/averyhart/pettycoon/internal/store/memory"
)

// fakeBlobStore implements domain.BlobWriter and domain.BlobReader over a
// map, standing in for the S3 backend.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = body
	return nil
}

func (f *fakeBlobStore) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

func (f *fakeBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("fake blob: get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *fakeBlobStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []domain.BlobInfo
	for path, body := range f.objects {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			infos = append(infos, domain.BlobInfo{Path: path, Size: int64(len(body))})
		}
	}
	return infos, nil
}

func (f *fakeBlobStore) Exists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[path]
	return ok, nil
}

func resolvedOffer(id string, status domain.TradeStatus, updatedAt time.Time) domain.TradeOffer {
	return domain.TradeOffer{
		ID:           id,
		FromPlayerID: "alice",
		ToPlayerID:   "bob",
		FromItems:    domain.TradeItems{Money: 100},
		ToItems:      domain.TradeItems{Money: 50},
		Status:       status,
		ExpiresAt:    updatedAt.Add(24 * time.Hour),
		CreatedAt:    updatedAt.Add(-time.Hour),
		UpdatedAt:    updatedAt,
	}
}

func newArchiverFixture(t *testing.T) (*TradeArchiver, *memory.TradeStore, *fakeBlobStore) {
	t.Helper()
	states := memory.NewGameStateStore()
	trades := memory.NewTradeStore(states)
	blobs := newFakeBlobStore()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	arch := NewTradeArchiver(blobs, blobs, trades, memory.NewAuditStore(), logger)
	return arch, trades, blobs
}

func TestArchiveTradesUploadsAndPurges(t *testing.T) {
	arch, trades, blobs := newArchiverFixture(t)
	ctx := context.Background()

	cutoff := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	old := resolvedOffer("t-old", domain.TradeStatusAccepted, cutoff.Add(-48*time.Hour))
	recent := resolvedOffer("t-recent", domain.TradeStatusRejected, cutoff.Add(time.Hour))
	pending := resolvedOffer("t-pending", domain.TradeStatusPending, cutoff.Add(-48*time.Hour))
	for _, offer := range []domain.TradeOffer{old, recent, pending} {
		require.NoError(t, trades.Create(ctx, offer))
	}

	count, err := arch.ArchiveTrades(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Archived offer is gone, the others survive.
	_, err = trades.GetByID(ctx, "t-old")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = trades.GetByID(ctx, "t-recent")
	assert.NoError(t, err)
	_, err = trades.GetByID(ctx, "t-pending")
	assert.NoError(t, err)

	rc, err := blobs.Get(ctx, "archive/trades/2026-08.jsonl")
	require.NoError(t, err)
	defer rc.Close()

	var got domain.TradeOffer
	require.NoError(t, json.NewDecoder(rc).Decode(&got))
	assert.Equal(t, "t-old", got.ID)
	assert.Equal(t, domain.TradeStatusAccepted, got.Status)
}

func TestArchiveTradesAppendsToMonthlyFile(t *testing.T) {
	arch, trades, blobs := newArchiverFixture(t)
	ctx := context.Background()

	cutoff := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, trades.Create(ctx, resolvedOffer("t-1", domain.TradeStatusAccepted, cutoff.Add(-time.Hour))))

	count, err := arch.ArchiveTrades(ctx, cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	// A later run in the same month appends rather than overwrites.
	later := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, trades.Create(ctx, resolvedOffer("t-2", domain.TradeStatusCancelled, later.Add(-time.Hour))))

	count, err = arch.ArchiveTrades(ctx, later)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	rc, err := blobs.Get(ctx, "archive/trades/2026-08.jsonl")
	require.NoError(t, err)
	defer rc.Close()

	var ids []string
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		var offer domain.TradeOffer
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &offer))
		ids = append(ids, offer.ID)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"t-1", "t-2"}, ids)
}

func TestArchiveTradesNothingToDo(t *testing.T) {
	arch, _, blobs := newArchiverFixture(t)

	count, err := arch.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)

	infos, err := blobs.List(context.Background(), "archive/")
	require.NoError(t, err)
	assert.Empty(t, infos)
}
