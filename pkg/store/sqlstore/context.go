package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"careerprep/pkg/models"
	"careerprep/pkg/store"
)

const messageColumns = `id, session_id, user_id, sender_type, sender_name, sender_role, sender_department,
	content, sent_at, in_reply_to, is_auto_response`

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	defer s.observe("get_message")()

	var msg models.Message
	err := s.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// SaveMessage inserts or replaces a message by id.
func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) error {
	defer s.observe("save_message")()

	msg.SentAt = msg.SentAt.UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO messages (`+messageColumns+`)
		VALUES (:id, :session_id, :user_id, :sender_type, :sender_name, :sender_role, :sender_department,
			:content, :sent_at, :in_reply_to, :is_auto_response)`, msg)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	defer s.observe("insert_message")()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	msg.SentAt = msg.SentAt.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (:id, :session_id, :user_id, :sender_type, :sender_name, :sender_role, :sender_department,
			:content, :sent_at, :in_reply_to, :is_auto_response)`, msg)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *Store) ListSessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	defer s.observe("list_session_messages")()

	messages := []models.Message{}
	err := s.db.SelectContext(ctx, &messages, `
		SELECT `+messageColumns+` FROM messages WHERE session_id = ? ORDER BY sent_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session messages: %w", err)
	}
	return messages, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	defer s.observe("get_session")()

	var session models.Session
	err := s.db.GetContext(ctx, &session, `SELECT id, user_id, job_title, company_name FROM sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *Store) SaveSession(ctx context.Context, session *models.Session) error {
	defer s.observe("save_session")()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, user_id, job_title, company_name)
		VALUES (:id, :user_id, :job_title, :company_name)`, session)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	defer s.observe("get_profile")()

	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, `SELECT id, full_name FROM profiles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile *models.Profile) error {
	defer s.observe("save_profile")()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO profiles (id, full_name) VALUES (:id, :full_name)`, profile)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
