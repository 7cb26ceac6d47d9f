package store_test

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-design-backend/internal/design"
	"train-design-backend/internal/store"
)

func TestGetOrCreate_Idempotent(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	first, err := m.GetOrCreate(userID)
	require.NoError(t, err)
	assert.Equal(t, design.Defaults(), first)

	second, err := m.GetOrCreate(userID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestApplyDelta_PartialUpdate(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	updated, err := m.ApplyDelta(userID, design.Delta{"trainHeadLength": 11000})
	require.NoError(t, err)

	assert.Equal(t, 11000, updated["trainHeadLength"])
	assert.Equal(t, design.DefaultValue("windowWidth"), updated["windowWidth"])
}

func TestApplyDelta_IgnoresUnknownFields(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	updated, err := m.ApplyDelta(userID, design.Delta{"spoilerAngle": 15, "windowWidth": 1500})
	require.NoError(t, err)

	_, present := updated["spoilerAngle"]
	assert.False(t, present)
	assert.Equal(t, 1500, updated["windowWidth"])
}

func TestSessions_CreateActivates(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	first, err := m.Create(userID, "Design A", "", true)
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := m.Create(userID, "Design B", "variant", true)
	require.NoError(t, err)
	assert.True(t, second.IsActive)

	active, err := m.GetActive(userID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}

func TestSessions_SetActiveSwitches(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	first, err := m.Create(userID, "Design A", "", true)
	require.NoError(t, err)
	_, err = m.Create(userID, "Design B", "", true)
	require.NoError(t, err)

	require.NoError(t, m.SetActive(userID, first.ID))

	active, err := m.GetActive(userID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)
}

func TestSessions_SetActiveOwnership(t *testing.T) {
	m := store.NewMemoryStore()
	owner := uuid.New()
	other := uuid.New()

	s, err := m.Create(owner, "Design A", "", true)
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetActive(other, s.ID), store.ErrNotFound)
	assert.ErrorIs(t, m.SetActive(owner, 999), store.ErrNotFound)
}

func TestSessions_NoActiveInitially(t *testing.T) {
	m := store.NewMemoryStore()

	active, err := m.GetActive(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, active)
}

// TestSessions_AtMostOneActive drives the registry with a random sequence of
// creates and activations and checks the invariant after every step.
func TestSessions_AtMostOneActive(t *testing.T) {
	m := store.NewMemoryStore()
	rng := rand.New(rand.NewSource(1))
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	ids := make(map[uuid.UUID][]int64)
	for step := 0; step < 200; step++ {
		userID := users[rng.Intn(len(users))]

		switch {
		case len(ids[userID]) == 0 || rng.Intn(2) == 0:
			s, err := m.Create(userID, "Design", "", rng.Intn(2) == 0)
			require.NoError(t, err)
			ids[userID] = append(ids[userID], s.ID)
		default:
			own := ids[userID]
			require.NoError(t, m.SetActive(userID, own[rng.Intn(len(own))]))
		}

		for _, u := range users {
			sessions, err := m.List(u)
			require.NoError(t, err)
			active := 0
			for _, s := range sessions {
				if s.IsActive {
					active++
				}
			}
			assert.LessOrEqual(t, active, 1, "step %d user %s", step, u)
		}
	}
}

func TestLedger_AppendStartsProcessing(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	rec, err := m.Append(&store.EditRecord{
		UserID:      userID,
		SessionID:   1,
		UserInput:   "make the head longer",
		ParsedDelta: design.Delta{"trainHeadLength": 11000},
		Snapshot:    design.Defaults(),
	})
	require.NoError(t, err)

	assert.Positive(t, rec.ID)
	assert.Equal(t, store.StatusProcessing, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestLedger_FinalizeExactlyOnce(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	rec, err := m.Append(&store.EditRecord{UserID: userID, SessionID: 1, UserInput: "x"})
	require.NoError(t, err)

	require.NoError(t, m.Finalize(rec.ID, store.Completed("https://img/1.png")))

	// Second transition is ignored.
	require.NoError(t, m.Finalize(rec.ID, store.Failed("late failure")))

	got, err := m.GetByID(userID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Equal(t, "https://img/1.png", got.GeneratedImageURL)
	assert.Empty(t, got.ErrorMessage)
}

func TestLedger_FinalizeRejectsNonTerminal(t *testing.T) {
	m := store.NewMemoryStore()

	rec, err := m.Append(&store.EditRecord{UserID: uuid.New(), SessionID: 1})
	require.NoError(t, err)

	assert.Error(t, m.Finalize(rec.ID, store.Outcome{Status: store.StatusProcessing}))
}

func TestLedger_GetByIDOwnership(t *testing.T) {
	m := store.NewMemoryStore()
	owner := uuid.New()

	rec, err := m.Append(&store.EditRecord{UserID: owner, SessionID: 1})
	require.NoError(t, err)

	_, err = m.GetByID(uuid.New(), rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = m.GetByID(owner, rec.ID+1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLedger_ListNewestFirst(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := m.Append(&store.EditRecord{UserID: userID, SessionID: 1})
		require.NoError(t, err)
	}

	records, err := m.ListByUser(userID, 50)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Greater(t, records[0].ID, records[1].ID)
	assert.Greater(t, records[1].ID, records[2].ID)

	limited, err := m.ListByUser(userID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, records[0].ID, limited[0].ID)
}

func TestLedger_ListBySession(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	_, err := m.Append(&store.EditRecord{UserID: userID, SessionID: 1})
	require.NoError(t, err)
	rec2, err := m.Append(&store.EditRecord{UserID: userID, SessionID: 2})
	require.NoError(t, err)

	records, err := m.ListBySession(userID, 2, 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec2.ID, records[0].ID)
}

func TestLedger_LatestCompletedImage(t *testing.T) {
	m := store.NewMemoryStore()
	userID := uuid.New()

	url, err := m.LatestCompletedImage(userID, 0)
	require.NoError(t, err)
	assert.Empty(t, url)

	first, err := m.Append(&store.EditRecord{UserID: userID, SessionID: 1})
	require.NoError(t, err)
	require.NoError(t, m.Finalize(first.ID, store.Completed("https://img/1.png")))

	second, err := m.Append(&store.EditRecord{UserID: userID, SessionID: 1})
	require.NoError(t, err)
	require.NoError(t, m.Finalize(second.ID, store.Completed("https://img/2.png")))

	failed, err := m.Append(&store.EditRecord{UserID: userID, SessionID: 1})
	require.NoError(t, err)
	require.NoError(t, m.Finalize(failed.ID, store.Failed("synthesis error")))

	url, err = m.LatestCompletedImage(userID, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://img/2.png", url)

	// Other sessions do not leak into a scoped lookup.
	url, err = m.LatestCompletedImage(userID, 7)
	require.NoError(t, err)
	assert.Empty(t, url)
}
