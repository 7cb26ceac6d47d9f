// Package services holds the synthesis orchestrator: the synchronous edit
// submission path and the asynchronous generation pipeline behind it.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"train-design-backend/internal/design"
	"train-design-backend/internal/store"
)

// ErrEmptyInput rejects blank submissions before any side effect.
var ErrEmptyInput = errors.New("user input is empty")

// Interpreter is the external change-interpretation capability.
type Interpreter interface {
	Interpret(ctx context.Context, userInput string) (map[string]design.ChangeValue, error)
}

// Synthesizer is the external image-generation capability.
type Synthesizer interface {
	EditImage(ctx context.Context, prompt, baseImageURL string) (string, error)
	DownloadImage(ctx context.Context, downloadURL string) ([]byte, error)
}

// RenderStore persists generated renders to durable storage. Optional; when
// absent the synthesizer's temporary URL is recorded as-is.
type RenderStore interface {
	UploadRender(userID uuid.UUID, sessionID, historyID int64, data []byte) (string, error)
}

// SubmitResult is returned to the caller as soon as the ledger entry
// exists; image synthesis continues in the background.
type SubmitResult struct {
	HistoryID   int64
	ParsedDelta design.Delta
}

// EditService owns the edit pipeline end to end: interpret, resolve,
// record, then synthesize asynchronously and commit on success.
type EditService struct {
	params   store.ParameterStore
	sessions store.SessionRegistry
	ledger   store.EditLedger

	interpreter Interpreter
	synthesizer Synthesizer
	renders     RenderStore

	baseImageURL string
	pool         *WorkerPool
	logger       *zap.Logger
}

func NewEditService(
	params store.ParameterStore,
	sessions store.SessionRegistry,
	ledger store.EditLedger,
	interp Interpreter,
	synth Synthesizer,
	renders RenderStore,
	baseImageURL string,
	workers, queueSize int,
	logger *zap.Logger,
) *EditService {
	s := &EditService{
		params:       params,
		sessions:     sessions,
		ledger:       ledger,
		interpreter:  interp,
		synthesizer:  synth,
		renders:      renders,
		baseImageURL: baseImageURL,
		logger:       logger,
	}
	s.pool = NewWorkerPool(workers, queueSize, s.process, logger)
	return s
}

// Shutdown drains the synthesis queue. Call after the HTTP server has
// stopped accepting requests.
func (s *EditService) Shutdown() {
	s.pool.Shutdown()
}

// Submit runs the synchronous half of an edit. Empty input, interpretation
// and resolution failures happen before the ledger write and surface to the
// caller; after the record exists the caller only ever sees success, and
// the outcome is observable by polling the ledger.
func (s *EditService) Submit(ctx context.Context, userID uuid.UUID, userInput string) (*SubmitResult, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, ErrEmptyInput
	}

	session, err := s.activeSession(userID)
	if err != nil {
		return nil, err
	}

	current, err := s.params.GetOrCreate(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}

	parsed, err := s.interpreter.Interpret(ctx, userInput)
	if err != nil {
		return nil, err
	}

	delta, err := design.Resolve(parsed, current)
	if err != nil {
		return nil, err
	}

	// Prospective snapshot for the audit trail; the parameter store is
	// only updated after synthesis succeeds.
	merged := current.Merge(delta)

	rec, err := s.ledger.Append(&store.EditRecord{
		UserID:      userID,
		SessionID:   session.ID,
		UserInput:   userInput,
		ParsedDelta: delta,
		Snapshot:    merged,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record edit: %w", err)
	}

	job := synthesisJob{
		HistoryID: rec.ID,
		UserID:    userID,
		SessionID: session.ID,
		Delta:     delta,
		Previous:  current,
		Merged:    merged,
	}
	if !s.pool.Enqueue(job) {
		if err := s.ledger.Finalize(rec.ID, store.Failed("synthesis queue is full, try again later")); err != nil {
			s.logger.Error("failed to finalize rejected edit",
				zap.Int64("history_id", rec.ID), zap.Error(err))
		}
	}

	return &SubmitResult{HistoryID: rec.ID, ParsedDelta: delta}, nil
}

// activeSession returns the user's active session, creating a timestamped
// default one on first use.
func (s *EditService) activeSession(userID uuid.UUID) (*store.Session, error) {
	session, err := s.sessions.GetActive(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active session: %w", err)
	}
	if session != nil {
		return session, nil
	}

	name := "Design " + time.Now().Format("2006-01-02 15:04")
	session, err = s.sessions.Create(userID, name, "", true)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// process is the asynchronous half, executed on a pool worker. Its only
// outputs are a terminal ledger status and, on success, the parameter
// commit. Errors are recorded, never propagated.
func (s *EditService) process(ctx context.Context, job synthesisJob) {
	// Chain off the newest completed render in this session, read at task
	// start. Concurrent submissions may still complete out of order; the
	// design accepts that and callers serialize client-side if they care.
	base, err := s.ledger.LatestCompletedImage(job.UserID, job.SessionID)
	if err != nil {
		s.logger.Warn("failed to look up latest render, using base image",
			zap.Int64("history_id", job.HistoryID), zap.Error(err))
		base = ""
	}
	if base == "" {
		base = s.baseImageURL
	}

	prompt := design.BuildEditPrompt(job.Delta, job.Previous, job.Merged)

	imageURL, err := s.synthesizer.EditImage(ctx, prompt, base)
	if err != nil {
		s.logger.Error("image synthesis failed",
			zap.Int64("history_id", job.HistoryID), zap.Error(err))
		if ferr := s.ledger.Finalize(job.HistoryID, store.Failed(err.Error())); ferr != nil {
			s.logger.Error("failed to finalize edit record",
				zap.Int64("history_id", job.HistoryID), zap.Error(ferr))
		}
		return
	}

	imageURL = s.persistRender(ctx, job, imageURL)

	if err := s.ledger.Finalize(job.HistoryID, store.Completed(imageURL)); err != nil {
		s.logger.Error("failed to finalize edit record",
			zap.Int64("history_id", job.HistoryID), zap.Error(err))
		return
	}

	// Commit only after the record is completed so a failed synthesis
	// never moves the parameter store ahead of what the user can see.
	if _, err := s.params.ApplyDelta(job.UserID, job.Delta); err != nil {
		s.logger.Error("failed to commit parameter delta",
			zap.Int64("history_id", job.HistoryID), zap.Error(err))
		return
	}

	s.logger.Info("edit completed",
		zap.Int64("history_id", job.HistoryID),
		zap.String("image_url", imageURL))
}

// persistRender copies the temporary render into durable storage. Any
// failure falls back to the synthesizer's URL.
func (s *EditService) persistRender(ctx context.Context, job synthesisJob, imageURL string) string {
	if s.renders == nil {
		return imageURL
	}

	data, err := s.synthesizer.DownloadImage(ctx, imageURL)
	if err != nil {
		s.logger.Warn("failed to download render, keeping remote URL",
			zap.Int64("history_id", job.HistoryID), zap.Error(err))
		return imageURL
	}

	publicURL, err := s.renders.UploadRender(job.UserID, job.SessionID, job.HistoryID, data)
	if err != nil {
		s.logger.Warn("failed to upload render, keeping remote URL",
			zap.Int64("history_id", job.HistoryID), zap.Error(err))
		return imageURL
	}
	return publicURL
}
