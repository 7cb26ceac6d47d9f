package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"train-design-backend/internal/design"
)

// MemoryStore is an in-process implementation of ParameterStore,
// SessionRegistry and EditLedger. It backs the test suite and lets the
// server run without DATABASE_URL, at the cost of losing state on restart.
type MemoryStore struct {
	mu sync.Mutex

	params   map[uuid.UUID]design.Snapshot
	sessions map[int64]*Session
	records  map[int64]*EditRecord
	nextSess int64
	nextRec  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		params:   make(map[uuid.UUID]design.Snapshot),
		sessions: make(map[int64]*Session),
		records:  make(map[int64]*EditRecord),
	}
}

func (m *MemoryStore) GetOrCreate(userID uuid.UUID) (design.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.params[userID]
	if !ok {
		snapshot = design.Defaults()
		m.params[userID] = snapshot
	}
	return snapshot.Clone(), nil
}

func (m *MemoryStore) ApplyDelta(userID uuid.UUID, delta design.Delta) (design.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.params[userID]
	if !ok {
		snapshot = design.Defaults()
		m.params[userID] = snapshot
	}
	for field, value := range delta {
		if design.IsField(field) {
			snapshot[field] = value
		}
	}
	return snapshot.Clone(), nil
}

func (m *MemoryStore) GetActive(userID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			out := *s
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Create(userID uuid.UUID, name, description string, makeActive bool) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if makeActive {
		m.clearActiveLocked(userID)
	}

	m.nextSess++
	now := time.Now()
	s := &Session{
		ID:          m.nextSess,
		UserID:      userID,
		Name:        name,
		Description: description,
		IsActive:    makeActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.sessions[s.ID] = s

	out := *s
	return &out, nil
}

func (m *MemoryStore) SetActive(userID uuid.UUID, sessionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.sessions[sessionID]
	if !ok || target.UserID != userID {
		return ErrNotFound
	}

	m.clearActiveLocked(userID)
	target.IsActive = true
	target.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) clearActiveLocked(userID uuid.UUID) {
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			s.UpdatedAt = time.Now()
		}
	}
}

func (m *MemoryStore) List(userID uuid.UUID) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sessions []Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			sessions = append(sessions, *s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].ID > sessions[j].ID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (m *MemoryStore) Append(rec *EditRecord) (*EditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRec++
	stored := *rec
	stored.ID = m.nextRec
	stored.Status = StatusProcessing
	stored.CreatedAt = time.Now()
	stored.ParsedDelta = cloneDelta(rec.ParsedDelta)
	stored.Snapshot = rec.Snapshot.Clone()
	m.records[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (m *MemoryStore) Finalize(id int64, out Outcome) error {
	if !out.Status.Terminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", out.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status.Terminal() {
		return nil
	}
	rec.Status = out.Status
	rec.GeneratedImageURL = out.ImageURL
	rec.ErrorMessage = out.ErrorMessage
	return nil
}

func (m *MemoryStore) ListByUser(userID uuid.UUID, limit int) ([]EditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(func(rec *EditRecord) bool {
		return rec.UserID == userID
	}, limit), nil
}

func (m *MemoryStore) ListBySession(userID uuid.UUID, sessionID int64, limit int) ([]EditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(func(rec *EditRecord) bool {
		return rec.UserID == userID && rec.SessionID == sessionID
	}, limit), nil
}

func (m *MemoryStore) GetByID(userID uuid.UUID, id int64) (*EditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok || rec.UserID != userID {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (m *MemoryStore) LatestCompletedImage(userID uuid.UUID, sessionID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.listLocked(func(rec *EditRecord) bool {
		if rec.UserID != userID || rec.Status != StatusCompleted {
			return false
		}
		return sessionID == 0 || rec.SessionID == sessionID
	}, 1)
	if len(records) == 0 {
		return "", nil
	}
	return records[0].GeneratedImageURL, nil
}

func (m *MemoryStore) listLocked(match func(*EditRecord) bool, limit int) []EditRecord {
	var records []EditRecord
	for _, rec := range m.records {
		if match(rec) {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

func cloneDelta(d design.Delta) design.Delta {
	out := make(design.Delta, len(d))
	for field, value := range d {
		out[field] = value
	}
	return out
}
