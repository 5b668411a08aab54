// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/mighty/internal/models"
	"github.com/jason-s-yu/mighty/internal/rating"
)

// UpsertGame marks a game as in progress, creating its row on first sight.
func UpsertGame(ctx context.Context, gameID uuid.UUID) error {
	q := `
		INSERT INTO games (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := DB.Exec(ctx, q, gameID)
	return err
}

// SetGameStatus closes out a game as 'completed' or 'abandoned'.
func SetGameStatus(ctx context.Context, gameID uuid.UUID, status string) error {
	q := `UPDATE games SET status = $1, end_time = NOW() WHERE id = $2`
	_, err := DB.Exec(ctx, q, status, gameID)
	return err
}

// RecordRoundResult stores one settled deal and applies each registered seat's chip delta
// and rating change. Ephemeral users keep their balance in memory only.
func RecordRoundResult(ctx context.Context, res models.RoundResult) error {
	seats, err := json.Marshal(res.Seats)
	if err != nil {
		return fmt.Errorf("marshal seats: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status)
			VALUES ($1, 'in_progress')
			ON CONFLICT (id) DO NOTHING
		`
		if _, e := tx.Exec(ctx, upsertGame, res.GameID); e != nil {
			return e
		}

		insert := `
			INSERT INTO round_results
				(game_id, deal, master_seat, friend_seat, bid_quantity, trump, success, team_points, seats)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (game_id, deal) DO NOTHING
		`
		tag, e := tx.Exec(ctx, insert,
			res.GameID, res.Deal, res.MasterSeat, res.FriendSeat,
			res.BidQuantity, res.Trump, res.Success, res.TeamPoints, seats,
		)
		if e != nil {
			return e
		}
		if tag.RowsAffected() == 0 {
			// already recorded; do not apply deltas twice
			return nil
		}

		update := `UPDATE users SET chips = chips + $1 WHERE id = $2 AND NOT is_ephemeral`
		for _, s := range res.Seats {
			if s.UserID == uuid.Nil || s.Delta == 0 {
				continue
			}
			if _, e := tx.Exec(ctx, update, s.Delta, s.UserID); e != nil {
				return e
			}
		}
		return applyRatingsTx(ctx, tx, res)
	})
	if err != nil {
		return fmt.Errorf("record round %d of game %s: %w", res.Deal, res.GameID, err)
	}
	return nil
}

// applyRatingsTx rates the deal for the registered seats.
func applyRatingsTx(ctx context.Context, tx pgx.Tx, res models.RoundResult) error {
	ids := make([]uuid.UUID, 0, len(res.Seats))
	for _, s := range res.Seats {
		if s.UserID != uuid.Nil {
			ids = append(ids, s.UserID)
		}
	}
	rows, err := tx.Query(ctx, `
		SELECT id, rating, rating_rd, rating_sigma
		FROM users
		WHERE id = ANY($1) AND NOT is_ephemeral
		FOR UPDATE
	`, ids)
	if err != nil {
		return err
	}
	current := make(map[uuid.UUID]rating.Rating, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var r rating.Rating
		if err := rows.Scan(&id, &r.Elo, &r.RD, &r.Sigma); err != nil {
			rows.Close()
			return err
		}
		current[id] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for id, r := range rating.ApplyRound(res, current) {
		q := `UPDATE users SET rating = $1, rating_rd = $2, rating_sigma = $3 WHERE id = $4`
		if _, err := tx.Exec(ctx, q, r.Elo, r.RD, r.Sigma, id); err != nil {
			return err
		}
	}
	return nil
}
