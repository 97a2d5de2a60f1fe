package deployer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

func newSession(id string, statuses ...models.ArtifactStatus) *models.DeploymentSession {
	progress := make([]*models.ArtifactProgress, len(statuses))
	for i := range statuses {
		progress[i] = &models.ArtifactProgress{IFlowID: "Flow" + id}
	}
	sess := models.NewDeploymentSession(id, "CCCI_PROD", progress)
	sess.Mutate(func() {
		for i, st := range statuses {
			sess.Artifacts[i].Status = st
		}
	})
	return sess
}

func TestSessionStore_GetUnknownID(t *testing.T) {
	store := NewSessionStore(0)
	_, err := store.Get("unknown-id")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_CreateDuplicate(t *testing.T) {
	store := NewSessionStore(0)
	require.NoError(t, store.Create(newSession("dep-1")))
	assert.Error(t, store.Create(newSession("dep-1")))
}

func TestSessionStore_ListCountsFromLiveProgress(t *testing.T) {
	store := NewSessionStore(0)
	sess := newSession("dep-1",
		models.ArtifactStatusCompleted,
		models.ArtifactStatusFailed,
		models.ArtifactStatusInProgress,
	)
	require.NoError(t, store.Create(sess))

	summaries := store.List()
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].Total)
	assert.Equal(t, 1, summaries[0].Completed)
	assert.Equal(t, 1, summaries[0].Failed)

	// Counts follow the progress records without re-registering.
	sess.Mutate(func() { sess.Artifacts[2].Status = models.ArtifactStatusCompleted })
	summaries = store.List()
	assert.Equal(t, 2, summaries[0].Completed)
}

func TestSessionStore_ListNewestFirst(t *testing.T) {
	store := NewSessionStore(0)

	older := newSession("dep-old")
	older.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(older))
	require.NoError(t, store.Create(newSession("dep-new")))

	summaries := store.List()
	require.Len(t, summaries, 2)
	assert.Equal(t, "dep-new", summaries[0].ID)
	assert.Equal(t, "dep-old", summaries[1].ID)
}

func TestSessionStore_EvictsExpiredFinishedSessions(t *testing.T) {
	store := NewSessionStore(time.Minute)

	done := newSession("dep-done", models.ArtifactStatusCompleted)
	past := time.Now().Add(-2 * time.Minute)
	done.Mutate(func() {
		done.Status = models.DeploymentStatusCompleted
		done.CompletedAt = &past
	})
	require.NoError(t, store.Create(done))

	running := newSession("dep-running", models.ArtifactStatusInProgress)
	running.Mutate(func() { running.Status = models.DeploymentStatusInProgress })
	require.NoError(t, store.Create(running))

	store.evictExpired()

	_, err := store.Get("dep-done")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get("dep-running")
	assert.NoError(t, err)
}
