// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	batches [][]cache.GameActionRecord
	err     error
}

func (f *fakeSource) Pop(ctx context.Context, timeout time.Duration, limit int) ([]cache.GameActionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	if len(b) > limit {
		b = b[:limit]
	}
	return b, nil
}

func (f *fakeSource) Requeue(ctx context.Context, recs []cache.GameActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append([][]cache.GameActionRecord{recs}, f.batches...)
	return nil
}

type fakeStore struct {
	mu         sync.Mutex
	actions    []cache.GameActionRecord
	abandoned  []uuid.UUID
	failMark   bool
	failInsert bool
}

func (f *fakeStore) InsertActions(ctx context.Context, recs []cache.GameActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return errors.New("db down")
	}
	f.actions = append(f.actions, recs...)
	return nil
}

func (f *fakeStore) MarkAbandoned(ctx context.Context, gameID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMark {
		return errors.New("db down")
	}
	f.abandoned = append(f.abandoned, gameID)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func action(gameID uuid.UUID, idx int, kind string) cache.GameActionRecord {
	return cache.GameActionRecord{
		GameID:      gameID,
		ActionIndex: idx,
		ActorUserID: uuid.New(),
		ActionType:  kind,
		Timestamp:   time.Now().UnixMilli(),
	}
}

func TestDrainOnceStoresBatch(t *testing.T) {
	gameID := uuid.New()
	src := &fakeSource{batches: [][]cache.GameActionRecord{{
		action(gameID, 1, "bid"),
		action(gameID, 2, "pass"),
	}}}
	store := &fakeStore{}
	s := New(src, store, Config{BatchSize: 10}, quietLogger())

	n, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.actions, 2)

	n, err = s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "an empty queue is not an error")
}

func TestDrainOnceSurfacesSourceErrors(t *testing.T) {
	s := New(&fakeSource{err: errors.New("redis gone")}, &fakeStore{}, Config{}, quietLogger())
	_, err := s.DrainOnce(context.Background())
	assert.Error(t, err)
}

func TestDrainOnceRequeuesRejectedBatch(t *testing.T) {
	gameID := uuid.New()
	batch := []cache.GameActionRecord{action(gameID, 1, "bid"), action(gameID, 2, "pass")}
	src := &fakeSource{batches: [][]cache.GameActionRecord{batch}}
	store := &fakeStore{failInsert: true}
	s := New(src, store, Config{BatchSize: 10}, quietLogger())

	_, err := s.DrainOnce(context.Background())
	require.Error(t, err)
	require.Len(t, src.batches, 1, "the batch is back on the queue")

	store.failInsert = false
	n, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, batch, store.actions)
}

func TestSweepMarksIdleGamesAbandoned(t *testing.T) {
	idle, active, aborted := uuid.New(), uuid.New(), uuid.New()
	src := &fakeSource{batches: [][]cache.GameActionRecord{
		{action(idle, 1, "bid"), action(aborted, 1, "bid")},
		{action(aborted, 2, "game_aborted")},
	}}
	store := &fakeStore{}
	s := New(src, store, Config{BatchSize: 10, InactivityTimeout: 10 * time.Minute}, quietLogger())

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	_, err := s.DrainOnce(context.Background())
	require.NoError(t, err)
	_, err = s.DrainOnce(context.Background())
	require.NoError(t, err)

	clock = clock.Add(9 * time.Minute)
	src.batches = append(src.batches, []cache.GameActionRecord{action(active, 1, "bid")})
	_, err = s.DrainOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, s.Sweep(context.Background()))

	clock = clock.Add(2 * time.Minute)
	marked := s.Sweep(context.Background())
	assert.Equal(t, []uuid.UUID{idle}, marked)
	assert.Equal(t, []uuid.UUID{idle}, store.abandoned)

	assert.Empty(t, s.Sweep(context.Background()), "a marked game is forgotten")
}

func TestSweepKeepsGameWhenStoreFails(t *testing.T) {
	gameID := uuid.New()
	src := &fakeSource{batches: [][]cache.GameActionRecord{{action(gameID, 1, "bid")}}}
	store := &fakeStore{failMark: true}
	s := New(src, store, Config{InactivityTimeout: time.Minute}, quietLogger())

	clock := time.Now()
	s.now = func() time.Time { return clock }
	_, err := s.DrainOnce(context.Background())
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	assert.Len(t, s.Sweep(context.Background()), 1)
	store.failMark = false
	assert.Len(t, s.Sweep(context.Background()), 1, "retried on the next sweep")
	assert.Equal(t, []uuid.UUID{gameID}, store.abandoned)
}

func TestRunStopsOnCancel(t *testing.T) {
	gameID := uuid.New()
	src := &fakeSource{batches: [][]cache.GameActionRecord{{action(gameID, 1, "bid")}}}
	store := &fakeStore{}
	s := New(src, store, Config{InactivityTimeout: time.Hour, SweepInterval: 10 * time.Millisecond}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.actions) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
