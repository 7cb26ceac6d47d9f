package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"train-design-backend/internal/design"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the calling user. Ownership mismatches are indistinguishable from absence
// on purpose.
var ErrNotFound = errors.New("record not found")

// EditStatus is the ledger state machine. Records are created directly in
// StatusProcessing and transition exactly once to a terminal state.
type EditStatus string

const (
	StatusPending    EditStatus = "pending"
	StatusProcessing EditStatus = "processing"
	StatusCompleted  EditStatus = "completed"
	StatusFailed     EditStatus = "failed"
)

// Terminal reports whether the status ends the state machine.
func (s EditStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Session is one named design flow. At most one session per user is active.
type Session struct {
	ID          int64
	UserID      uuid.UUID
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EditRecord is one ledger entry tracking an edit attempt end to end. Only
// Status, GeneratedImageURL and ErrorMessage ever change after creation.
type EditRecord struct {
	ID                int64
	UserID            uuid.UUID
	SessionID         int64
	UserInput         string
	ParsedDelta       design.Delta
	Snapshot          design.Snapshot
	Status            EditStatus
	GeneratedImageURL string
	ErrorMessage      string
	CreatedAt         time.Time
}

// Outcome carries the terminal state written by Finalize.
type Outcome struct {
	Status       EditStatus
	ImageURL     string
	ErrorMessage string
}

// Completed builds the success outcome. A completed record always carries
// the generated image URL.
func Completed(imageURL string) Outcome {
	return Outcome{Status: StatusCompleted, ImageURL: imageURL}
}

// Failed builds the failure outcome. A failed record always carries the
// error message.
func Failed(message string) Outcome {
	return Outcome{Status: StatusFailed, ErrorMessage: message}
}

// ParameterStore holds one parameter snapshot per user.
type ParameterStore interface {
	// GetOrCreate returns the user's snapshot, creating it from schema
	// defaults on first access. Idempotent.
	GetOrCreate(userID uuid.UUID) (design.Snapshot, error)
	// ApplyDelta partially updates the snapshot and returns the result.
	// Fields absent from the delta are untouched; fields outside the
	// schema are ignored. No range validation is performed.
	ApplyDelta(userID uuid.UUID, delta design.Delta) (design.Snapshot, error)
}

// SessionRegistry enforces the single-active-session invariant.
type SessionRegistry interface {
	// GetActive returns the user's active session, or nil when the user
	// has no sessions yet.
	GetActive(userID uuid.UUID) (*Session, error)
	// Create adds a session. With makeActive it atomically clears the
	// user's other active flags first (clear-then-set).
	Create(userID uuid.UUID, name, description string, makeActive bool) (*Session, error)
	// SetActive activates one session in a single clear-then-set
	// transaction. ErrNotFound when the session is not the user's.
	SetActive(userID uuid.UUID, sessionID int64) error
	// List returns the user's sessions, most recently updated first.
	List(userID uuid.UUID) ([]Session, error)
}

// EditLedger is the append-only history of edit attempts.
type EditLedger interface {
	// Append inserts the record with status processing and assigns its id
	// and creation time.
	Append(rec *EditRecord) (*EditRecord, error)
	// Finalize moves a processing record to a terminal state. It is a
	// no-op on records already terminal, so the transition happens at
	// most once.
	Finalize(id int64, out Outcome) error
	// ListByUser returns the user's records, newest first.
	ListByUser(userID uuid.UUID, limit int) ([]EditRecord, error)
	// ListBySession returns the user's records for one session, newest
	// first.
	ListBySession(userID uuid.UUID, sessionID int64, limit int) ([]EditRecord, error)
	// GetByID returns one record; ErrNotFound when absent or owned by
	// another user.
	GetByID(userID uuid.UUID, id int64) (*EditRecord, error)
	// LatestCompletedImage returns the newest completed record's image
	// URL for the user, scoped to sessionID when non-zero. Empty string
	// when no completed record exists.
	LatestCompletedImage(userID uuid.UUID, sessionID int64) (string, error)
}
