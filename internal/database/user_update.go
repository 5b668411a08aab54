package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/auth"
)

// ClaimUser gives the ephemeral account id an email and password, and a new username
// when one is given. It returns ErrUserNotFound when id is unknown or already registered.
func ClaimUser(ctx context.Context, id uuid.UUID, email, password, username string) error {
	hashed, err := auth.CreateHash(password, auth.Params)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tag, err := DB.Exec(ctx,
		`UPDATE users
		 SET email = $1, password = $2, is_ephemeral = FALSE, username = COALESCE(NULLIF($3, ''), username)
		 WHERE id = $4 AND is_ephemeral`,
		email, hashed, username, id)
	if err != nil {
		return fmt.Errorf("claim user: %w", uniqueViolation(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
