// Package historian drains the game action queue into PostgreSQL and closes out
// games that stopped producing actions.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source yields batches of queued actions. An empty batch means the wait timed out.
// Requeue returns a batch the store could not take to the front of the queue.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration, limit int) ([]cache.GameActionRecord, error)
	Requeue(ctx context.Context, recs []cache.GameActionRecord) error
}

// Store persists action batches and game status changes.
type Store interface {
	InsertActions(ctx context.Context, recs []cache.GameActionRecord) error
	MarkAbandoned(ctx context.Context, gameID uuid.UUID) error
}

const requeueTimeout = 5 * time.Second

// Config tunes the two loops.
type Config struct {
	BatchSize         int
	PollTimeout       time.Duration
	InactivityTimeout time.Duration
	SweepInterval     time.Duration
}

// Service encapsulates the queue and DB logic for capturing game actions
// and marking games abandoned when a certain inactivity threshold is reached.
type Service struct {
	src    Source
	store  Store
	cfg    Config
	logger *logrus.Logger

	lastActivity sync.Map // uuid.UUID -> time.Time
	now          func() time.Time
}

func New(src Source, store Store, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Service{src: src, store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Run blocks until ctx is cancelled or a loop fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.drainLoop(ctx) })
	if s.cfg.InactivityTimeout > 0 {
		g.Go(func() error { return s.inactivityLoop(ctx) })
	}
	s.logger.Info("historian started")
	err := g.Wait()
	s.logger.Info("historian stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Service) drainLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Errorf("drain: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// DrainOnce moves one batch from the queue to the store and returns its size.
// A batch the store rejects goes back to the queue; inserts ignore redelivered actions.
// Terminal actions drop the game from inactivity tracking.
func (s *Service) DrainOnce(ctx context.Context) (int, error) {
	recs, err := s.src.Pop(ctx, s.cfg.PollTimeout, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := s.store.InsertActions(ctx, recs); err != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
		defer cancel()
		if rerr := s.src.Requeue(rctx, recs); rerr != nil {
			s.logger.Errorf("lost %d actions: requeue failed: %v", len(recs), rerr)
		}
		return 0, err
	}

	now := s.now()
	for _, rec := range recs {
		if terminalAction(rec.ActionType) {
			s.lastActivity.Delete(rec.GameID)
			continue
		}
		s.lastActivity.Store(rec.GameID, now)
	}
	s.logger.Debugf("flushed %d actions", len(recs))
	return len(recs), nil
}

func (s *Service) inactivityLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep marks every game idle for longer than the inactivity timeout as abandoned
// and returns the idle ids it found. A failed mark is retried on the next sweep.
func (s *Service) Sweep(ctx context.Context) []uuid.UUID {
	now := s.now()
	var idle []uuid.UUID
	s.lastActivity.Range(func(key, val interface{}) bool {
		gameID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if ok1 && ok2 && now.Sub(last) > s.cfg.InactivityTimeout {
			idle = append(idle, gameID)
		}
		return true
	})
	for _, id := range idle {
		if err := s.store.MarkAbandoned(ctx, id); err != nil {
			s.logger.Warnf("failed to mark game %s abandoned: %v", id, err)
			continue
		}
		s.lastActivity.Delete(id)
		s.logger.Infof("marked game %s abandoned after inactivity", id)
	}
	return idle
}

func terminalAction(actionType string) bool {
	return actionType == "game_aborted"
}
