package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"careerprep/pkg/constants"
	"careerprep/pkg/models"
	"careerprep/pkg/store"
)

func (s *Store) getJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	defer s.observe("get_message")()

	var msg models.Message
	if err := s.getJSON(ctx, constants.MessageKeyPrefix+id, &msg); err != nil {
		if err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// SaveMessage writes a message and indexes it under its session by sent time
func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) error {
	defer s.observe("save_message")()

	msg.SentAt = msg.SentAt.UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, constants.MessageKeyPrefix+msg.ID, data, 0)
		pipe.ZAdd(ctx, constants.SessionMessagesKey+msg.SessionID, &redis.Z{
			Score:  float64(msg.SentAt.UnixMilli()),
			Member: msg.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	return s.SaveMessage(ctx, msg)
}

func (s *Store) ListSessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	defer s.observe("list_session_messages")()

	ids, err := s.rdb.ZRange(ctx, constants.SessionMessagesKey+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session messages: %w", err)
	}

	messages := make([]models.Message, 0, len(ids))
	if len(ids) == 0 {
		return messages, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = constants.MessageKeyPrefix + id
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session messages: %w", err)
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	defer s.observe("get_session")()

	var session models.Session
	if err := s.getJSON(ctx, constants.SessionKeyPrefix+id, &session); err != nil {
		if err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *Store) SaveSession(ctx context.Context, session *models.Session) error {
	defer s.observe("save_session")()

	return s.setJSON(ctx, constants.SessionKeyPrefix+session.ID, session, "session")
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	defer s.observe("get_profile")()

	var profile models.Profile
	if err := s.getJSON(ctx, constants.ProfileKeyPrefix+id, &profile); err != nil {
		if err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile *models.Profile) error {
	defer s.observe("save_profile")()

	return s.setJSON(ctx, constants.ProfileKeyPrefix+profile.ID, profile, "profile")
}

func (s *Store) setJSON(ctx context.Context, key string, value interface{}, kind string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", kind, err)
	}
	return nil
}
