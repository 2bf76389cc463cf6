package processor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"careerprep/pkg/models"
	"careerprep/pkg/store"
)

// memoryStore is an in-memory store.Store with switchable failures
type memoryStore struct {
	mu        sync.Mutex
	responses map[string]*models.Response
	messages  map[string]*models.Message
	sessions  map[string]*models.Session
	profiles  map[string]*models.Profile
	inserted  []models.Message

	failComplete      error
	failMarkFailed    error
	failInsertMessage error
	failGetMessage    error
}

var _ store.Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		responses: make(map[string]*models.Response),
		messages:  make(map[string]*models.Message),
		sessions:  make(map[string]*models.Session),
		profiles:  make(map[string]*models.Profile),
	}
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }
func (m *memoryStore) Close() error                   { return nil }

func (m *memoryStore) CreateResponse(ctx context.Context, resp *models.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}
	if resp.ReceivedAt.IsZero() {
		resp.ReceivedAt = time.Now()
	}
	if resp.ProcessingStatus == "" {
		resp.ProcessingStatus = models.StatusPending
	}
	copied := *resp
	m.responses[resp.ID] = &copied
	return nil
}

func (m *memoryStore) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.responses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *resp
	return &copied, nil
}

func (m *memoryStore) ClaimPending(ctx context.Context, workerID string, limit int) ([]models.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*models.Response
	for _, resp := range m.responses {
		if !resp.Processed && resp.ProcessingStatus == models.StatusPending {
			pending = append(pending, resp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ReceivedAt.Before(pending[j].ReceivedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]models.Response, 0, len(pending))
	for _, resp := range pending {
		m.claim(resp, workerID)
		claimed = append(claimed, *resp)
	}
	return claimed, nil
}

func (m *memoryStore) ClaimByID(ctx context.Context, id, workerID string) (*models.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.responses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if resp.Processed || resp.ProcessingStatus != models.StatusPending {
		return nil, store.ErrNotClaimable
	}
	m.claim(resp, workerID)
	copied := *resp
	return &copied, nil
}

func (m *memoryStore) claim(resp *models.Response, workerID string) {
	now := time.Now()
	resp.ProcessingStatus = models.StatusProcessing
	resp.ClaimedBy = workerID
	resp.ClaimedAt = &now
}

func (m *memoryStore) CompleteResponse(ctx context.Context, id, workerID string, outcome models.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failComplete != nil {
		return m.failComplete
	}
	resp, err := m.claimedBy(id, workerID)
	if err != nil {
		return err
	}
	resp.Processed = true
	resp.ProcessingStatus = outcome.Status
	resp.EscalationReason = outcome.EscalationReason
	resp.AutoResponseGenerated = outcome.AutoResponseGenerated
	resp.ClaimedBy = ""
	resp.ClaimedAt = nil
	return nil
}

func (m *memoryStore) MarkFailed(ctx context.Context, id, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarkFailed != nil {
		return m.failMarkFailed
	}
	resp, err := m.claimedBy(id, workerID)
	if err != nil {
		return err
	}
	resp.ProcessingStatus = models.StatusFailed
	resp.ClaimedBy = ""
	resp.ClaimedAt = nil
	return nil
}

func (m *memoryStore) claimedBy(id, workerID string) (*models.Response, error) {
	resp, ok := m.responses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if resp.ProcessingStatus != models.StatusProcessing || resp.ClaimedBy != workerID {
		return nil, store.ErrNotClaimable
	}
	return resp, nil
}

// steal hands a claimed response to another worker, as a reclaim followed by
// a fresh claim would.
func (m *memoryStore) steal(id, workerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claim(m.responses[id], workerID)
}

func (m *memoryStore) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reclaimed := 0
	for _, resp := range m.responses {
		if resp.ProcessingStatus == models.StatusProcessing && resp.ClaimedAt != nil && resp.ClaimedAt.Before(cutoff) {
			resp.ProcessingStatus = models.StatusPending
			resp.ClaimedBy = ""
			resp.ClaimedAt = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (m *memoryStore) CountPending(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, resp := range m.responses {
		if !resp.Processed && resp.ProcessingStatus == models.StatusPending {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetMessage != nil {
		return nil, m.failGetMessage
	}
	msg, ok := m.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (m *memoryStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *msg
	m.messages[msg.ID] = &copied
	return nil
}

func (m *memoryStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertMessage != nil {
		return m.failInsertMessage
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	copied := *msg
	m.messages[msg.ID] = &copied
	m.inserted = append(m.inserted, copied)
	return nil
}

func (m *memoryStore) ListSessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var messages []models.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			messages = append(messages, *msg)
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].SentAt.Before(messages[j].SentAt) })
	return messages, nil
}

func (m *memoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *memoryStore) SaveSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memoryStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (m *memoryStore) SaveProfile(ctx context.Context, profile *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *profile
	m.profiles[profile.ID] = &copied
	return nil
}
