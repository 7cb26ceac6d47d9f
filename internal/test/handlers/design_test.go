package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"train-design-backend/internal/design"
	"train-design-backend/internal/handlers"
	"train-design-backend/internal/interpreter"
	"train-design-backend/internal/middleware"
	"train-design-backend/internal/services"
	"train-design-backend/internal/store"
)

const testBaseImage = "https://assets.example.com/train-base.png"

type stubInterpreter struct {
	changes map[string]design.ChangeValue
	err     error
}

func (s *stubInterpreter) Interpret(ctx context.Context, userInput string) (map[string]design.ChangeValue, error) {
	return s.changes, s.err
}

type stubSynthesizer struct {
	url string
	err error
}

func (s *stubSynthesizer) EditImage(ctx context.Context, prompt, baseImageURL string) (string, error) {
	return s.url, s.err
}

func (s *stubSynthesizer) DownloadImage(ctx context.Context, downloadURL string) ([]byte, error) {
	return []byte("png-bytes"), nil
}

type testEnv struct {
	router  *gin.Engine
	store   *store.MemoryStore
	service *services.EditService
	userID  uuid.UUID
}

func setup(t *testing.T, interp services.Interpreter, synth services.Synthesizer) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemoryStore()
	userID := uuid.New()
	svc := services.NewEditService(m, m, m, interp, synth, nil, testBaseImage, 2, 16, zap.NewNop())
	t.Cleanup(svc.Shutdown)

	designHandler := handlers.NewDesignHandler(svc, m, m, m, testBaseImage)
	sessionsHandler := handlers.NewSessionsHandler(m)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID.String())
		c.Next()
	})
	api.POST("/design/edits", designHandler.SubmitEdit)
	api.GET("/design/parameters", designHandler.GetParameters)
	api.GET("/design/history", designHandler.GetHistory)
	api.GET("/design/history/:history_id", designHandler.GetHistoryItem)
	api.GET("/design/base-image", designHandler.GetBaseImage)
	api.GET("/sessions", sessionsHandler.ListSessions)
	api.POST("/sessions", sessionsHandler.CreateSession)
	api.GET("/sessions/active", sessionsHandler.GetActiveSession)
	api.POST("/sessions/:session_id/activate", sessionsHandler.ActivateSession)

	return &testEnv{router: router, store: m, service: svc, userID: userID}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestSubmitEdit(t *testing.T) {
	interp := &stubInterpreter{changes: map[string]design.ChangeValue{
		"trainHeadLength": {Kind: design.Absolute, Value: 11000},
	}}
	env := setup(t, interp, &stubSynthesizer{url: "https://img/1.png"})

	w := env.do("POST", "/api/v1/design/edits", gin.H{"user_input": "make the head 11 meters"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success       bool           `json:"success"`
		HistoryID     int64          `json:"history_id"`
		ParsedChanges map[string]int `json:"parsed_changes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Positive(t, resp.HistoryID)
	assert.Equal(t, 11000, resp.ParsedChanges["trainHeadLength"])

	// The record resolves to completed once the background worker finishes.
	require.Eventually(t, func() bool {
		rec, err := env.store.GetByID(env.userID, resp.HistoryID)
		return err == nil && rec.Status == store.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitEdit_MissingBody(t *testing.T) {
	env := setup(t, &stubInterpreter{}, &stubSynthesizer{})

	w := env.do("POST", "/api/v1/design/edits", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestSubmitEdit_BlankInput(t *testing.T) {
	env := setup(t, &stubInterpreter{}, &stubSynthesizer{})

	w := env.do("POST", "/api/v1/design/edits", gin.H{"user_input": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "change description")
}

func TestSubmitEdit_InterpreterDown(t *testing.T) {
	interp := &stubInterpreter{
		err: fmt.Errorf("%w: connection refused", interpreter.ErrInterpretation),
	}
	env := setup(t, interp, &stubSynthesizer{})

	w := env.do("POST", "/api/v1/design/edits", gin.H{"user_input": "longer head"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSubmitEdit_UnresolvableChange(t *testing.T) {
	interp := &stubInterpreter{changes: map[string]design.ChangeValue{
		"spoilerAngle": {Kind: design.RelativeOffset, Field: "spoilerAngle", Offset: 5},
	}}
	env := setup(t, interp, &stubSynthesizer{})

	w := env.do("POST", "/api/v1/design/edits", gin.H{"user_input": "tilt the spoiler"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "could not resolve")
}

func TestGetParameters_Defaults(t *testing.T) {
	env := setup(t, &stubInterpreter{}, &stubSynthesizer{})

	w := env.do("GET", "/api/v1/design/parameters", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Parameters map[string]int `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 10500, resp.Parameters["trainHeadLength"])
	assert.Equal(t, 1200, resp.Parameters["windowWidth"])
}

func TestGetHistory_EmptyWithoutSessions(t *testing.T) {
	env := setup(t, &stubInterpreter{}, &stubSynthesizer{})

	w := env.do("GET", "/api/v1/design/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"history":[]}`, w.Body.String())
}

func TestGetHistory_ScopedToActiveSession(t *testing.T) {
	interp := &stubInterpreter{changes: map[string]design.ChangeValue{
		"trainHeadLength": {Kind: design.Absolute, Value: 11000},
	}}
	env := setup(t, interp, &stubSynthesizer{url: "https://img/1.png"})

	w := env.do("POST", "/api/v1/design/edits", gin.H{"user_input": "longer head"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/v1/design/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		History []struct {
			ID        int64  `json:"id"`
			UserInput string `json:"user_input"`
			Status    string `json:"status"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.History, 1)
	assert.Equal(t, "longer head", resp.History[0].UserInput)

	// A different session id returns an empty list.
	w = env.do("GET", "/api/v1/design/history?session_id=999", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"history":[]}`, w.Body.String())
}

func TestGetHistoryItem_NotFound(t *testing.T) {
	env := setup(t, &stubInterpreter{}, &stubSynthesizer{})

	w := env.do("GET", "/api/v1/design/history/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHistoryItem_BadID(t *testing.T) {
	env := setup(t, &stubInterpreter{}, &stubSynthesizer{})

	w := env.do("GET", "/api/v1/design/history/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBaseImage(t *testing.T) {
	env := setup(t, &stubInterpreter{}, &stubSynthesizer{})

	w := env.do("GET", "/api/v1/design/base-image", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testBaseImage)
}

func TestMissingUserContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := store.NewMemoryStore()
	designHandler := handlers.NewDesignHandler(nil, m, m, m, testBaseImage)

	router := gin.New()
	router.GET("/api/v1/design/parameters", designHandler.GetParameters)

	req, _ := http.NewRequest("GET", "/api/v1/design/parameters", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
