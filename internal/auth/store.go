package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/autogenius/autogenius/internal/db"
)

// stateTTL bounds how long a login may take between redirect and callback.
const stateTTL = 10 * time.Minute

// Store persists users, auth sessions and pending OAuth states.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a new auth store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertUser inserts the user or refreshes its profile and last login.
func (s *Store) UpsertUser(ctx context.Context, u User) (*User, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, picture, created_at, last_login)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name,
		   picture = excluded.picture, last_login = excluded.last_login`,
		u.ID, u.Email, u.Name, u.Picture, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return s.GetUser(ctx, u.ID)
}

// GetUser returns the user with the given ID, or nil if absent.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, picture, created_at, last_login FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.CreatedAt, &u.LastLogin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u.IsAuthenticated = true
	return &u, nil
}

// CreateSession starts an auth session for userID and returns its opaque
// token. Only a hash of the token is stored.
func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), userID, now, now.Add(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("creating auth session: %w", err)
	}
	return token, nil
}

// UserForToken resolves a session token to its user. Unknown and expired
// tokens yield nil.
func (s *Store) UserForToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}
	var userID string
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM auth_sessions WHERE token_hash = ?`, hashToken(token),
	).Scan(&userID, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up auth session: %w", err)
	}
	if !s.now().Before(expires) {
		return nil, s.DeleteSession(ctx, token)
	}
	return s.GetUser(ctx, userID)
}

// DeleteSession ends the session for token. Unknown tokens are ignored.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token_hash = ?`, hashToken(token)); err != nil {
		return fmt.Errorf("deleting auth session: %w", err)
	}
	return nil
}

// PurgeExpired removes expired sessions and stale OAuth states.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("purging auth sessions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE created_at <= ?`, now.Add(-stateTTL)); err != nil {
		return 0, fmt.Errorf("purging oauth states: %w", err)
	}
	return res.RowsAffected()
}

// NewState records a fresh OAuth state value. cliRedirect is where the
// callback hands the token to a terminal client, or empty for browsers.
func (s *Store) NewState(ctx context.Context, cliRedirect string) (string, error) {
	state, err := randomToken()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO oauth_states (state, cli_redirect, created_at) VALUES (?, ?, ?)`,
		state, cliRedirect, s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("saving oauth state: %w", err)
	}
	return state, nil
}

// ConsumeState deletes state and returns its CLI redirect. ok is false when
// the state is unknown or older than stateTTL.
func (s *Store) ConsumeState(ctx context.Context, state string) (cliRedirect string, ok bool, err error) {
	var created time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT cli_redirect, created_at FROM oauth_states WHERE state = ?`, state,
	).Scan(&cliRedirect, &created)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading oauth state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = ?`, state); err != nil {
		return "", false, fmt.Errorf("deleting oauth state: %w", err)
	}
	if s.now().Sub(created) > stateTTL {
		return "", false, nil
	}
	return cliRedirect, true, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
