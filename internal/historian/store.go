package historian

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/mighty/internal/cache"
)

// RedisSource pops from the queue behind cache.Rdb.
type RedisSource struct{}

func (RedisSource) Pop(ctx context.Context, timeout time.Duration, limit int) ([]cache.GameActionRecord, error) {
	return cache.PopGameActions(ctx, timeout, limit)
}

func (RedisSource) Requeue(ctx context.Context, recs []cache.GameActionRecord) error {
	return cache.RequeueGameActions(ctx, recs)
}

// PostgresStore writes to the game_actions and games tables.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// InsertActions stores a batch in one transaction, upserting each game row.
// A redelivered action is ignored.
func (p PostgresStore) InsertActions(ctx context.Context, recs []cache.GameActionRecord) error {
	return pgx.BeginTxFunc(ctx, p.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("action %d of game %s: %w", rec.ActionIndex, rec.GameID, err)
			}
		}
		return nil
	})
}

func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertGameQ := `
		INSERT INTO games (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (
			game_id, action_index, actor_user_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, payload,
		time.UnixMilli(rec.Timestamp),
	)
	if err != nil {
		return err
	}

	if terminalAction(rec.ActionType) {
		finalizeQ := `
			UPDATE games
			SET status = 'abandoned', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.GameID); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned closes a game that is still in progress.
func (p PostgresStore) MarkAbandoned(ctx context.Context, gameID uuid.UUID) error {
	q := `
		UPDATE games
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err := p.Pool.Exec(ctx, q, gameID)
	return err
}
