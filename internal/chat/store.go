package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/db"
)

// Store persists chat sessions and their messages.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a new chat store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: func() time.Time { return time.Now().UTC() }}
}

// CreateSession inserts a session owned by userID together with its
// opening messages, in order.
func (s *Store) CreateSession(ctx context.Context, userID string, v catalog.Vehicle, opening []Message) (*Session, error) {
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Vehicle:   v,
		TextSize:  DefaultTextSize,
		CreatedAt: s.now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, manufacturer, model, year, text_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, v.Manufacturer, v.Model, v.Year, sess.TextSize, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	for i, m := range opening {
		m.SessionID = sess.ID
		m.Seq = i + 1
		if err := s.insertMessage(ctx, tx, &m); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session: %w", err)
	}
	return &sess, nil
}

// GetSession returns the session with the given ID, or nil if absent.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, manufacturer, model, year, text_size, created_at FROM chat_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Vehicle.Manufacturer, &sess.Vehicle.Model, &sess.Vehicle.Year, &sess.TextSize, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &sess, nil
}

// AppendMessages adds messages to the end of a session transcript.
func (s *Store) AppendMessages(ctx context.Context, sessionID string, msgs ...Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE session_id = ?`, sessionID,
	).Scan(&last); err != nil {
		return fmt.Errorf("reading last sequence: %w", err)
	}
	for i := range msgs {
		m := msgs[i]
		m.SessionID = sessionID
		m.Seq = last + i + 1
		if err := s.insertMessage(ctx, tx, &m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}
	return nil
}

func (s *Store) insertMessage(ctx context.Context, tx *sql.Tx, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	var products sql.NullString
	if len(m.Products) > 0 {
		data, err := json.Marshal(m.Products)
		if err != nil {
			return fmt.Errorf("encoding products: %w", err)
		}
		products = sql.NullString{String: string(data), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, seq, role, content, car_image, products, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Seq, m.Role, m.Content, m.CarImage, products, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// Messages returns a session transcript in order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, role, content, car_image, products, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var products sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Content, &m.CarImage, &products, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if products.Valid {
			if err := json.Unmarshal([]byte(products.String), &m.Products); err != nil {
				return nil, fmt.Errorf("decoding products of message %s: %w", m.ID, err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SetTextSize updates the display size of a session.
func (s *Store) SetTextSize(ctx context.Context, sessionID, size string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET text_size = ? WHERE id = ?`, size, sessionID); err != nil {
		return fmt.Errorf("updating text size: %w", err)
	}
	return nil
}

// History lists the user's sessions, newest first.
func (s *Store) History(ctx context.Context, userID string) ([]HistoryItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.manufacturer, s.model, s.year, s.created_at,
		        COALESCE((SELECT m.content FROM chat_messages m WHERE m.session_id = s.id ORDER BY m.seq DESC LIMIT 1), ''),
		        (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)
		 FROM chat_sessions s WHERE s.user_id = ?
		 ORDER BY s.created_at DESC, s.rowid DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var items []HistoryItem
	for rows.Next() {
		var h HistoryItem
		if err := rows.Scan(&h.ID, &h.Vehicle.Manufacturer, &h.Vehicle.Model, &h.Vehicle.Year, &h.CreatedAt, &h.LastMessage, &h.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		items = append(items, h)
	}
	return items, rows.Err()
}

// DeleteUserSessions removes every session the user owns; messages follow
// by cascade.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	return res.RowsAffected()
}
