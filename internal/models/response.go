package models

import (
	"time"

	"train-design-backend/internal/design"
	"train-design-backend/internal/store"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SubmitEditResponse struct {
	Success       bool         `json:"success"`
	HistoryID     int64        `json:"history_id"`
	ParsedChanges design.Delta `json:"parsed_changes"`
}

type ParametersResponse struct {
	Parameters design.Snapshot `json:"parameters"`
}

type EditRecordResponse struct {
	ID                 int64           `json:"id"`
	SessionID          int64           `json:"session_id"`
	UserInput          string          `json:"user_input"`
	ParsedChanges      design.Delta    `json:"parsed_changes"`
	ParametersSnapshot design.Snapshot `json:"parameters_snapshot"`
	Status             string          `json:"status"`
	GeneratedImageURL  string          `json:"generated_image_url,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type HistoryResponse struct {
	History []EditRecordResponse `json:"history"`
}

type SessionResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type BaseImageResponse struct {
	URL string `json:"url"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// NewEditRecordResponse maps a ledger row to its API shape.
func NewEditRecordResponse(rec *store.EditRecord) EditRecordResponse {
	return EditRecordResponse{
		ID:                 rec.ID,
		SessionID:          rec.SessionID,
		UserInput:          rec.UserInput,
		ParsedChanges:      rec.ParsedDelta,
		ParametersSnapshot: rec.Snapshot,
		Status:             string(rec.Status),
		GeneratedImageURL:  rec.GeneratedImageURL,
		ErrorMessage:       rec.ErrorMessage,
		CreatedAt:          rec.CreatedAt,
	}
}

// NewSessionResponse maps a session row to its API shape.
func NewSessionResponse(s *store.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
