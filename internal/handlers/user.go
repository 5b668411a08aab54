package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/auth"
	"github.com/jason-s-yu/mighty/internal/database"
	"github.com/jason-s-yu/mighty/internal/models"
	"github.com/sirupsen/logrus"
)

const userLookupTimeout = 5 * time.Second

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func writeKind(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": msg})
}

// withDatabase answers 503 while no database is configured; accounts live only there.
func withDatabase(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if database.DB == nil {
			writeKind(w, http.StatusServiceUnavailable, "unavailable", "user accounts need a database")
			return
		}
		next(w, r)
	}
}

// writeUserError maps account failures to a status; anything unexpected is logged.
func writeUserError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, database.ErrEmailTaken):
		writeKind(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, database.ErrInvalidCredentials):
		writeKind(w, http.StatusForbidden, "forbidden", "authentication failed")
	case errors.Is(err, database.ErrUserNotFound):
		writeKind(w, http.StatusNotFound, "user_not_found", err.Error())
	default:
		logrus.WithError(err).Errorf("%s failed", op)
		writeKind(w, http.StatusInternalServerError, "internal", op+" failed")
	}
}

func setAuthCookie(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     authCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := auth.TokenTTL(); ttl > 0 {
		cookie.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, cookie)
}

// authenticate returns the user id carried by the request's token.
func authenticate(r *http.Request) (uuid.UUID, error) {
	token := requestToken(r)
	if token == "" {
		return uuid.Nil, errMissingToken
	}
	id, err := auth.UserIDFromToken(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errBadToken, err)
	}
	return id, nil
}

// EnsureEphemeralUser returns the request's user, creating a guest (and its token cookie)
// when the request carries no valid token. username names a new guest and is the display
// name of a known token whose user is not stored.
func EnsureEphemeralUser(w http.ResponseWriter, r *http.Request, username string) (*models.User, string, error) {
	if username == "" {
		username = "Guest"
	}
	if token := requestToken(r); token != "" {
		if id, err := auth.UserIDFromToken(token); err == nil {
			return knownUser(r.Context(), id, username), token, nil
		}
	}

	u := &models.User{Username: username, IsEphemeral: true}
	if database.DB != nil {
		if err := database.CreateUser(r.Context(), u); err != nil {
			return nil, "", fmt.Errorf("create guest: %w", err)
		}
	} else {
		u.ID = uuid.New()
	}
	token, err := auth.CreateJWT(u.ID.String())
	if err != nil {
		return nil, "", fmt.Errorf("create guest token: %w", err)
	}
	setAuthCookie(w, token)
	return u, token, nil
}

// knownUser prefers the stored account for id and falls back to a guest named username.
func knownUser(ctx context.Context, id uuid.UUID, username string) *models.User {
	if database.DB != nil {
		ctx, cancel := context.WithTimeout(ctx, userLookupTimeout)
		defer cancel()
		if stored, err := database.GetUserByID(ctx, id); err == nil {
			stored.Password = ""
			return stored
		}
	}
	return &models.User{ID: id, Username: username, IsEphemeral: true}
}

// ClaimEphemeralHandler registers the caller's guest account with an email and password,
// keeping its id, chips and rating.
func ClaimEphemeralHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req credentials
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		badRequest(w, "email and password are required")
		return
	}

	if err := database.ClaimUser(r.Context(), userID, req.Email, req.Password, req.Username); err != nil {
		writeUserError(w, "claim", err)
		return
	}
	u, err := database.GetUserByID(r.Context(), userID)
	if err != nil {
		writeUserError(w, "claim", err)
		return
	}
	u.Password = ""
	writeJSON(w, http.StatusOK, u)
}

// CreateUserHandler registers an account from {"email", "password", "username"}.
func CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" {
		badRequest(w, "email, password and username are required")
		return
	}

	user := models.User{Email: req.Email, Password: req.Password, Username: req.Username}
	if err := database.CreateUser(r.Context(), &user); err != nil {
		writeUserError(w, "create user", err)
		return
	}
	user.Password = ""
	writeJSON(w, http.StatusCreated, user)
}

// LoginHandler exchanges {"email", "password"} for {"token"}. The token is also set as
// the auth cookie.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request payload")
		return
	}

	token, err := database.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			logrus.Infof("login rejected for %q", req.Email)
		}
		writeUserError(w, "login", err)
		return
	}
	setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
