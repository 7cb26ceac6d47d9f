package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"train-design-backend/internal/design"
	"train-design-backend/internal/interpreter"
	"train-design-backend/internal/models"
	"train-design-backend/internal/services"
	"train-design-backend/internal/store"
)

const defaultHistoryLimit = 50

type DesignHandler struct {
	service      *services.EditService
	params       store.ParameterStore
	sessions     store.SessionRegistry
	ledger       store.EditLedger
	baseImageURL string
}

func NewDesignHandler(
	service *services.EditService,
	params store.ParameterStore,
	sessions store.SessionRegistry,
	ledger store.EditLedger,
	baseImageURL string,
) *DesignHandler {
	return &DesignHandler{
		service:      service,
		params:       params,
		sessions:     sessions,
		ledger:       ledger,
		baseImageURL: baseImageURL,
	}
}

// SubmitEdit godoc
// @Summary     Submit a design edit
// @Description Interprets the free-text change, records a processing history entry and starts image synthesis in the background. Poll the history entry for the outcome.
// @Tags        design
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.SubmitEditRequest true "Edit description"
// @Success     200 {object} models.SubmitEditResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /design/edits [post]
func (h *DesignHandler) SubmitEdit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.SubmitEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	result, err := h.service.Submit(c.Request.Context(), userID, req.UserInput)
	if err != nil {
		h.submitError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SubmitEditResponse{
		Success:       true,
		HistoryID:     result.HistoryID,
		ParsedChanges: result.ParsedDelta,
	})
}

func (h *DesignHandler) submitError(c *gin.Context, err error) {
	var resErr *design.ResolutionError
	switch {
	case errors.Is(err, services.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "please enter a change description",
		})
	case errors.As(err, &resErr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "could not resolve the requested change",
			Message: resErr.Error(),
		})
	case errors.Is(err, interpreter.ErrInterpretation):
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "failed to interpret the change description",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to submit edit",
			Message: err.Error(),
		})
	}
}

// GetParameters godoc
// @Summary     Get current design parameters
// @Description Returns the caller's parameter snapshot, creating it with schema defaults on first access.
// @Tags        design
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ParametersResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /design/parameters [get]
func (h *DesignHandler) GetParameters(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	snapshot, err := h.params.GetOrCreate(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load parameters",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.ParametersResponse{Parameters: snapshot})
}

// GetHistory godoc
// @Summary     List edit history
// @Description Returns edit records newest first, scoped to the given session, or the caller's active session when omitted. Empty when the caller has no sessions.
// @Tags        design
// @Produce     json
// @Security    Bearer
// @Param       limit query int false "Maximum records to return (default 50)"
// @Param       session_id query int false "Session to scope to (defaults to the active session)"
// @Success     200 {object} models.HistoryResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /design/history [get]
func (h *DesignHandler) GetHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var q models.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid query parameters",
			Message: err.Error(),
		})
		return
	}
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}

	sessionID := q.SessionID
	if sessionID == 0 {
		active, err := h.sessions.GetActive(userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "failed to load active session",
				Message: err.Error(),
			})
			return
		}
		if active == nil {
			c.JSON(http.StatusOK, models.HistoryResponse{History: []models.EditRecordResponse{}})
			return
		}
		sessionID = active.ID
	}

	records, err := h.ledger.ListBySession(userID, sessionID, q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load history",
			Message: err.Error(),
		})
		return
	}

	history := make([]models.EditRecordResponse, len(records))
	for i := range records {
		history[i] = models.NewEditRecordResponse(&records[i])
	}
	c.JSON(http.StatusOK, models.HistoryResponse{History: history})
}

// GetHistoryItem godoc
// @Summary     Get one edit record
// @Description Returns a single edit record owned by the caller.
// @Tags        design
// @Produce     json
// @Security    Bearer
// @Param       history_id path int true "History record id"
// @Success     200 {object} models.EditRecordResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /design/history/{history_id} [get]
func (h *DesignHandler) GetHistoryItem(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("history_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid history id"})
		return
	}

	rec, err := h.ledger.GetByID(userID, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "history record not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to load history record",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.NewEditRecordResponse(rec))
}

// GetBaseImage godoc
// @Summary     Get the configured base drawing
// @Description Returns the fallback base image every new session chains from.
// @Tags        design
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.BaseImageResponse
// @Router      /design/base-image [get]
func (h *DesignHandler) GetBaseImage(c *gin.Context) {
	c.JSON(http.StatusOK, models.BaseImageResponse{URL: h.baseImageURL})
}
