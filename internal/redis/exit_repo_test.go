package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edirooss/scriptd/internal/host"
	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
)

func newTestRepo(t *testing.T, history int64) (*ExitRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	log := zaptest.NewLogger(t)
	client := NewClient(mr.Addr(), 0, log)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()))
	return NewExitRepository(log, client, history, time.Minute), mr
}

func record(pid int64, text string) host.ExitRecord {
	return host.NewExitRecord(pid, processmgr.ProcessState{Kind: processmgr.Halted}, []float64{float64(pid)}, text)
}

func TestExitRepositoryRecordAndGet(t *testing.T) {
	repo, mr := newTestRepo(t, 10)
	ctx := context.Background()

	rec := record(1, "done")
	require.NoError(t, repo.Record(ctx, rec))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.PID, got.PID)
	assert.Equal(t, "Halted", got.State)
	assert.Equal(t, []float64{1}, got.Floats)
	assert.Equal(t, "done", got.Text)

	assert.True(t, mr.Exists(exitKey(rec.ID.String())))
	assert.Equal(t, time.Minute, mr.TTL(exitKey(rec.ID.String())))

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrExitNotFound)
}

func TestExitRepositoryRecentIsNewestFirstAndTrimmed(t *testing.T) {
	repo, _ := newTestRepo(t, 3)
	ctx := context.Background()

	for pid := int64(1); pid <= 5; pid++ {
		require.NoError(t, repo.Record(ctx, record(pid, "")))
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	recs, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.EqualValues(t, 5, recs[0].PID)
	assert.EqualValues(t, 3, recs[2].PID)

	recs, err = repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.EqualValues(t, 5, recs[0].PID)

	recs, err = repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestExitRepositorySkipsExpiredAndGarbage(t *testing.T) {
	repo, mr := newTestRepo(t, 10)
	ctx := context.Background()

	a, b := record(1, "a"), record(2, "b")
	require.NoError(t, repo.Record(ctx, a))
	require.NoError(t, repo.Record(ctx, b))

	mr.FastForward(2 * time.Minute)
	c := record(3, "c")
	require.NoError(t, repo.Record(ctx, c))

	raw, _ := json.Marshal(map[string]any{"pid": "not a number"})
	require.NoError(t, mr.Set(exitKey("garbage"), string(raw)))
	_, err := mr.Lpush(exitIndexKey, "garbage")
	require.NoError(t, err)

	recs, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, c.ID, recs[0].ID)
}

func TestPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), 0, zaptest.NewLogger(t))
	defer client.Close()
	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
