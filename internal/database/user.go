package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/mighty/internal/auth"
	"github.com/jason-s-yu/mighty/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidCredentials is returned by AuthenticateUser for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned when no user matches.
	ErrUserNotFound = errors.New("user not found")
)

// uniqueViolation maps a unique-constraint failure to ErrEmailTaken.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

// CreateUser inserts user, assigning an id when it has none and hashing a plain password.
func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Password != "" {
		hash, err := auth.CreateHash(user.Password, auth.Params)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user.Password = hash
	}

	var email *string
	if user.Email != "" {
		email = &user.Email
	}
	_, err := DB.Exec(ctx,
		`INSERT INTO users (id, email, password, username, is_ephemeral, is_admin, chips)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, email, user.Password, user.Username, user.IsEphemeral, user.IsAdmin, user.Chips)
	if err != nil {
		return fmt.Errorf("insert user: %w", uniqueViolation(err))
	}
	return nil
}

const selectUser = `
	SELECT id, COALESCE(email, ''), password, username, is_ephemeral, is_admin, chips, rating
	FROM users
`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Username, &u.IsEphemeral, &u.IsAdmin, &u.Chips, &u.Rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(DB.QueryRow(ctx, selectUser+`WHERE email=$1`, email))
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(DB.QueryRow(ctx, selectUser+`WHERE id=$1`, id))
}

// AuthenticateUser checks the password and returns a fresh session token. A hash made
// with an older cost is replaced on success.
func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	user, err := GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("user lookup: %w", err)
	}

	match, err := auth.ComparePasswordAndHash(password, user.Password)
	if err != nil || !match {
		return "", ErrInvalidCredentials
	}
	if auth.NeedsRehash(user.Password, auth.Params) {
		if hash, err := auth.CreateHash(password, auth.Params); err == nil {
			if _, err := DB.Exec(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hash, user.ID); err != nil {
				logrus.Warnf("rehash password for %s: %v", user.ID, err)
			}
		}
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	return token, nil
}
