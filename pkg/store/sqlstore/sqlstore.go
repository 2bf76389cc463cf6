package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"careerprep/pkg/constants"
	"careerprep/pkg/metrics"
	"careerprep/pkg/models"
	"careerprep/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
    id                      TEXT PRIMARY KEY,
    message_id              TEXT NOT NULL,
    session_id              TEXT NOT NULL,
    user_id                 TEXT NOT NULL,
    content                 TEXT NOT NULL DEFAULT '',
    received_at             DATETIME NOT NULL,
    processed               BOOLEAN NOT NULL DEFAULT 0,
    processing_status       TEXT NOT NULL DEFAULT 'pending'
                            CHECK (processing_status IN ('pending', 'processing', 'processed', 'escalated', 'failed')),
    escalation_reason       TEXT,
    auto_response_generated BOOLEAN NOT NULL DEFAULT 0,
    claimed_by              TEXT NOT NULL DEFAULT '',
    claimed_at              DATETIME
);

CREATE TABLE IF NOT EXISTS messages (
    id                TEXT PRIMARY KEY,
    session_id        TEXT NOT NULL,
    user_id           TEXT NOT NULL DEFAULT '',
    sender_type       TEXT NOT NULL,
    sender_name       TEXT NOT NULL DEFAULT '',
    sender_role       TEXT NOT NULL DEFAULT '',
    sender_department TEXT NOT NULL DEFAULT '',
    content           TEXT NOT NULL,
    sent_at           DATETIME NOT NULL,
    in_reply_to       TEXT NOT NULL DEFAULT '',
    is_auto_response  BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    job_title    TEXT NOT NULL DEFAULT '',
    company_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS profiles (
    id        TEXT PRIMARY KEY,
    full_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_responses_pickup ON responses(processed, processing_status, received_at);
CREATE INDEX IF NOT EXISTS idx_responses_claimed ON responses(processing_status, claimed_at);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, sent_at);
`

const responseColumns = `id, message_id, session_id, user_id, content, received_at, processed,
	processing_status, escalation_reason, auto_response_generated, claimed_by, claimed_at`

// Store is a SQLite-backed store.Store
type Store struct {
	db      *sqlx.DB
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

var _ store.Store = (*Store)(nil)

// Open creates the database file and its directory if needed and applies the schema.
func Open(path string, logger *logrus.Logger, metrics *metrics.Metrics) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer keeps claim transactions from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}

	logger.WithField("path", path).Info("Opened SQLite store")

	return &Store{db: db, logger: logger, metrics: metrics}, nil
}

func (s *Store) observe(operation string) func() {
	start := time.Now()
	return func() {
		s.metrics.StoreOperationDuration.WithLabelValues(constants.BackendSQLite, operation).Observe(time.Since(start).Seconds())
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateResponse inserts a new pending response, filling in id and received
// time when they are unset.
func (s *Store) CreateResponse(ctx context.Context, resp *models.Response) error {
	defer s.observe("create_response")()

	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}
	if resp.ReceivedAt.IsZero() {
		resp.ReceivedAt = time.Now()
	}
	resp.ReceivedAt = resp.ReceivedAt.UTC()
	if resp.ProcessingStatus == "" {
		resp.ProcessingStatus = models.StatusPending
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO responses (id, message_id, session_id, user_id, content, received_at, processed,
			processing_status, escalation_reason, auto_response_generated, claimed_by, claimed_at)
		VALUES (:id, :message_id, :session_id, :user_id, :content, :received_at, :processed,
			:processing_status, :escalation_reason, :auto_response_generated, :claimed_by, :claimed_at)`, resp)
	if err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}
	return nil
}

func (s *Store) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	defer s.observe("get_response")()

	var resp models.Response
	err := s.db.GetContext(ctx, &resp, `SELECT `+responseColumns+` FROM responses WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return &resp, nil
}

// ClaimPending selects the oldest pending responses and moves each to
// processing with a conditional update, all in one transaction.
func (s *Store) ClaimPending(ctx context.Context, workerID string, limit int) ([]models.Response, error) {
	defer s.observe("claim_pending")()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback()

	var ids []string
	err = tx.SelectContext(ctx, &ids, `
		SELECT id FROM responses
		WHERE processed = 0 AND processing_status = ?
		ORDER BY received_at ASC
		LIMIT ?`, models.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending responses: %w", err)
	}

	claimedAt := time.Now().UTC()
	claimed := make([]models.Response, 0, len(ids))
	for _, id := range ids {
		resp, err := claimTx(ctx, tx, id, workerID, claimedAt)
		if errors.Is(err, store.ErrNotClaimable) {
			continue
		}
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, *resp)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return claimed, nil
}

func (s *Store) ClaimByID(ctx context.Context, id, workerID string) (*models.Response, error) {
	defer s.observe("claim_by_id")()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM responses WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to look up response: %w", err)
	}
	if exists == 0 {
		return nil, store.ErrNotFound
	}

	resp, err := claimTx(ctx, tx, id, workerID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return resp, nil
}

func claimTx(ctx context.Context, tx *sqlx.Tx, id, workerID string, claimedAt time.Time) (*models.Response, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE responses
		SET processing_status = ?, claimed_by = ?, claimed_at = ?
		WHERE id = ? AND processed = 0 AND processing_status = ?`,
		models.StatusProcessing, workerID, claimedAt, id, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim response %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to claim response %s: %w", id, err)
	}
	if affected == 0 {
		return nil, store.ErrNotClaimable
	}

	var resp models.Response
	if err := tx.GetContext(ctx, &resp, `SELECT `+responseColumns+` FROM responses WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to read claimed response %s: %w", id, err)
	}
	return &resp, nil
}

// CompleteResponse records the terminal outcome and releases the claim. The
// write only lands while workerID still holds the claim.
func (s *Store) CompleteResponse(ctx context.Context, id, workerID string, outcome models.Outcome) error {
	defer s.observe("complete_response")()

	result, err := s.db.ExecContext(ctx, `
		UPDATE responses
		SET processed = 1, processing_status = ?, escalation_reason = ?, auto_response_generated = ?,
			claimed_by = '', claimed_at = NULL
		WHERE id = ? AND processing_status = ? AND claimed_by = ?`,
		outcome.Status, outcome.EscalationReason, outcome.AutoResponseGenerated,
		id, models.StatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to complete response: %w", err)
	}
	return s.requireClaim(ctx, result, id)
}

// MarkFailed sets the failed status without touching the processed flag.
func (s *Store) MarkFailed(ctx context.Context, id, workerID string) error {
	defer s.observe("mark_failed")()

	result, err := s.db.ExecContext(ctx, `
		UPDATE responses
		SET processing_status = ?, claimed_by = '', claimed_at = NULL
		WHERE id = ? AND processing_status = ? AND claimed_by = ?`,
		models.StatusFailed, id, models.StatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to mark response failed: %w", err)
	}
	return s.requireClaim(ctx, result, id)
}

func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	defer s.observe("reclaim_stale")()

	result, err := s.db.ExecContext(ctx, `
		UPDATE responses
		SET processing_status = ?, claimed_by = '', claimed_at = NULL
		WHERE processing_status = ? AND claimed_at < ?`,
		models.StatusPending, models.StatusProcessing, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale responses: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale responses: %w", err)
	}
	return int(affected), nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	defer s.observe("count_pending")()

	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM responses WHERE processed = 0 AND processing_status = ?`, models.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending responses: %w", err)
	}
	return count, nil
}

// requireClaim tells a missing response apart from one whose claim was
// reclaimed or finished by another worker.
func (s *Store) requireClaim(ctx context.Context, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM responses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to look up response %s: %w", id, err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return store.ErrNotClaimable
}
