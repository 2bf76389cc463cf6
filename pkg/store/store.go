// Package store defines persistence for intern responses and the messaging
// context they are processed against.
package store

import (
	"context"
	"errors"
	"time"

	"careerprep/pkg/models"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrNotClaimable is returned when a response exists but is no longer
	// pending, or when a worker finishes a response it no longer holds.
	ErrNotClaimable = errors.New("response is not claimable")
)

// ResponseStore persists responses through pending -> processing -> terminal.
type ResponseStore interface {
	CreateResponse(ctx context.Context, resp *models.Response) error
	GetResponse(ctx context.Context, id string) (*models.Response, error)

	// ClaimPending atomically moves up to limit unprocessed pending responses,
	// oldest received first, to processing on behalf of workerID.
	ClaimPending(ctx context.Context, workerID string, limit int) ([]models.Response, error)
	// ClaimByID claims one response. It returns ErrNotClaimable when the
	// response is not pending.
	ClaimByID(ctx context.Context, id, workerID string) (*models.Response, error)

	// CompleteResponse and MarkFailed only write while workerID holds the
	// claim. Once the claim was reclaimed or finished elsewhere they return
	// ErrNotClaimable and leave the response untouched.
	CompleteResponse(ctx context.Context, id, workerID string, outcome models.Outcome) error
	MarkFailed(ctx context.Context, id, workerID string) error

	// ReclaimStale returns processing responses claimed before cutoff to pending.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int, error)
	CountPending(ctx context.Context) (int64, error)
}

// ContextStore holds the messages, sessions and profiles a response is
// answered against.
type ContextStore interface {
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	SaveMessage(ctx context.Context, msg *models.Message) error
	// InsertMessage stores a new message, assigning an id and sent time when unset.
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListSessionMessages(ctx context.Context, sessionID string) ([]models.Message, error)

	GetSession(ctx context.Context, id string) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error

	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error
}

// Store is the full persistence surface used by the service
type Store interface {
	ResponseStore
	ContextStore

	Ping(ctx context.Context) error
	Close() error
}
