package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"train-design-backend/internal/design"
)

// DatabaseClient is the Postgres implementation of ParameterStore,
// SessionRegistry and EditLedger.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

// GetOrCreate inserts the default snapshot on first access; the ON CONFLICT
// clause makes concurrent first calls converge on a single row.
func (d *DatabaseClient) GetOrCreate(userID uuid.UUID) (design.Snapshot, error) {
	defaults, err := json.Marshal(design.Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default snapshot: %w", err)
	}

	_, err = d.db.Exec(`
		INSERT INTO design_parameters (user_id, snapshot)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to create parameters: %w", err)
	}

	var raw []byte
	err = d.db.QueryRow(`
		SELECT snapshot FROM design_parameters WHERE user_id = $1
	`, userID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters: %w", err)
	}

	var snapshot design.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

// ApplyDelta merges the delta into the stored snapshot in one statement.
// Fields outside the schema are dropped before the merge.
func (d *DatabaseClient) ApplyDelta(userID uuid.UUID, delta design.Delta) (design.Snapshot, error) {
	known := make(design.Delta, len(delta))
	for field, value := range delta {
		if design.IsField(field) {
			known[field] = value
		}
	}
	if len(known) == 0 {
		return d.GetOrCreate(userID)
	}

	patch, err := json.Marshal(known)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delta: %w", err)
	}

	var raw []byte
	err = d.db.QueryRow(`
		UPDATE design_parameters
		SET snapshot = snapshot || $2::jsonb, updated_at = NOW()
		WHERE user_id = $1
		RETURNING snapshot
	`, userID, patch).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update parameters: %w", err)
	}

	var snapshot design.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

func (d *DatabaseClient) GetActive(userID uuid.UUID) (*Session, error) {
	var s Session
	err := d.db.QueryRow(`
		SELECT id, user_id, session_name, description, is_active, created_at, updated_at
		FROM design_sessions
		WHERE user_id = $1 AND is_active = TRUE
		LIMIT 1
	`, userID).Scan(&s.ID, &s.UserID, &s.Name, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return &s, nil
}

// Create inserts a session. When makeActive, the user's other active flags
// are cleared first inside the same transaction so a concurrent reader can
// briefly observe zero active sessions but never two.
func (d *DatabaseClient) Create(userID uuid.UUID, name, description string, makeActive bool) (*Session, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if makeActive {
		if _, err := tx.Exec(`
			UPDATE design_sessions SET is_active = FALSE, updated_at = NOW()
			WHERE user_id = $1 AND is_active = TRUE
		`, userID); err != nil {
			return nil, fmt.Errorf("failed to clear active sessions: %w", err)
		}
	}

	var s Session
	err = tx.QueryRow(`
		INSERT INTO design_sessions (user_id, session_name, description, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, session_name, description, is_active, created_at, updated_at
	`, userID, name, description, makeActive).Scan(
		&s.ID, &s.UserID, &s.Name, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session: %w", err)
	}
	return &s, nil
}

// SetActive runs clear-then-set in one transaction.
func (d *DatabaseClient) SetActive(userID uuid.UUID, sessionID int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE design_sessions SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_active = TRUE
	`, userID); err != nil {
		return fmt.Errorf("failed to clear active sessions: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE design_sessions SET is_active = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to activate session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session activation: %w", err)
	}
	return nil
}

func (d *DatabaseClient) List(userID uuid.UUID) ([]Session, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, session_name, description, is_active, created_at, updated_at
		FROM design_sessions
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Description, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (d *DatabaseClient) Append(rec *EditRecord) (*EditRecord, error) {
	parsed, err := json.Marshal(rec.ParsedDelta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parsed delta: %w", err)
	}
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	out := *rec
	out.Status = StatusProcessing
	err = d.db.QueryRow(`
		INSERT INTO edit_history (user_id, session_id, user_input, parsed_changes, parameters_snapshot, status)
		VALUES ($1, $2, $3, $4, $5, 'processing')
		RETURNING id, created_at
	`, rec.UserID, rec.SessionID, rec.UserInput, parsed, snapshot).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append edit record: %w", err)
	}
	return &out, nil
}

// Finalize guards the exactly-once transition with WHERE status =
// 'processing'; a second call against a terminal record changes nothing.
func (d *DatabaseClient) Finalize(id int64, out Outcome) error {
	if !out.Status.Terminal() {
		return fmt.Errorf("finalize requires a terminal status, got %q", out.Status)
	}

	res, err := d.db.Exec(`
		UPDATE edit_history
		SET status = $2,
		    generated_image_url = NULLIF($3, ''),
		    error_message = NULLIF($4, '')
		WHERE id = $1 AND status = 'processing'
	`, id, out.Status, out.ImageURL, out.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to finalize edit record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := d.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM edit_history WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check edit record: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

const editRecordColumns = `id, user_id, session_id, user_input, parsed_changes, parameters_snapshot,
	status, COALESCE(generated_image_url, ''), COALESCE(error_message, ''), created_at`

func (d *DatabaseClient) ListByUser(userID uuid.UUID, limit int) ([]EditRecord, error) {
	rows, err := d.db.Query(`
		SELECT `+editRecordColumns+`
		FROM edit_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list edit history: %w", err)
	}
	defer rows.Close()
	return scanEditRecords(rows)
}

func (d *DatabaseClient) ListBySession(userID uuid.UUID, sessionID int64, limit int) ([]EditRecord, error) {
	rows, err := d.db.Query(`
		SELECT `+editRecordColumns+`
		FROM edit_history
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session history: %w", err)
	}
	defer rows.Close()
	return scanEditRecords(rows)
}

func (d *DatabaseClient) GetByID(userID uuid.UUID, id int64) (*EditRecord, error) {
	row := d.db.QueryRow(`
		SELECT `+editRecordColumns+`
		FROM edit_history
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	rec, err := scanEditRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edit record: %w", err)
	}
	return rec, nil
}

func (d *DatabaseClient) LatestCompletedImage(userID uuid.UUID, sessionID int64) (string, error) {
	query := `
		SELECT COALESCE(generated_image_url, '')
		FROM edit_history
		WHERE user_id = $1 AND status = 'completed'
	`
	args := []interface{}{userID}
	if sessionID != 0 {
		query += ` AND session_id = $2`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 1`

	var url string
	err := d.db.QueryRow(query, args...).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest completed image: %w", err)
	}
	return url, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEditRecord(row rowScanner) (*EditRecord, error) {
	var rec EditRecord
	var parsed, snapshot []byte
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.SessionID, &rec.UserInput, &parsed, &snapshot,
		&rec.Status, &rec.GeneratedImageURL, &rec.ErrorMessage, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(parsed, &rec.ParsedDelta); err != nil {
		return nil, fmt.Errorf("failed to decode parsed delta: %w", err)
	}
	if err := json.Unmarshal(snapshot, &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &rec, nil
}

func scanEditRecords(rows *sql.Rows) ([]EditRecord, error) {
	var records []EditRecord
	for rows.Next() {
		rec, err := scanEditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edit record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}
