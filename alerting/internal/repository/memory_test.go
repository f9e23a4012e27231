package repository

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weaponwatch/alerting/internal/config"
	"weaponwatch/alerting/internal/models"
)

func newAlert(id string, confidence float64) models.Alert {
	return models.Alert{
		ID:         id,
		Source:     models.SourceSimulator,
		SourceID:   id,
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Camera:     "Main Entrance",
		Weapon:     "knife",
		Confidence: confidence,
		Severity:   models.SeverityWarning,
		Status:     models.StatusPending,
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	repo := NewMemoryAlertRepository()

	require.NoError(t, repo.Insert(newAlert("a-1", 0.7)))
	err := repo.Insert(newAlert("a-1", 0.9))

	require.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, repo.Len())

	got, err := repo.Get("a-1")
	require.NoError(t, err)
	assert.Equal(t, 0.7, got.Confidence, "first insert wins")
}

func TestInsertRejectsInvalidAlerts(t *testing.T) {
	repo := NewMemoryAlertRepository()

	bad := []models.Alert{
		newAlert("", 0.5),
		newAlert("c-1", 1.2),
		newAlert("c-2", -0.1),
	}
	noSeverity := newAlert("c-3", 0.5)
	noSeverity.Severity = ""
	bad = append(bad, noSeverity)

	for _, a := range bad {
		assert.ErrorIs(t, repo.Insert(a), ErrInvalidAlert, "alert %q", a.ID)
	}
	assert.Equal(t, 0, repo.Len())
}

func TestUpdateStatusLifecycle(t *testing.T) {
	repo := NewMemoryAlertRepository()
	require.NoError(t, repo.Insert(newAlert("a-1", 0.9)))

	updated, prev, err := repo.UpdateStatus("a-1", models.StatusAcknowledged)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, prev)
	assert.Equal(t, models.StatusAcknowledged, updated.Status)
	require.NotNil(t, updated.AcknowledgedAt)

	_, _, err = repo.UpdateStatus("a-1", models.StatusPending)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, models.StatusAcknowledged, terr.From)

	got, err := repo.Get("a-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAcknowledged, got.Status)
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryAlertRepository().WithClock(func() time.Time { return clock })
	require.NoError(t, repo.Insert(newAlert("a-1", 0.9)))

	clock = clock.Add(time.Minute)
	got, prev, err := repo.UpdateStatus("a-1", models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, prev)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), got.UpdatedAt)
}

func TestUpdateStatusNotFound(t *testing.T) {
	repo := NewMemoryAlertRepository()
	_, _, err := repo.UpdateStatus("missing", models.StatusSent)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIsRestartableSnapshot(t *testing.T) {
	repo := NewMemoryAlertRepository()
	require.NoError(t, repo.Insert(newAlert("a-1", 0.9)))
	require.NoError(t, repo.Insert(newAlert("a-2", 0.7)))

	seq := repo.List()
	first := slices.Collect(seq)
	require.Len(t, first, 2)

	require.NoError(t, repo.Insert(newAlert("a-3", 0.5)))
	second := slices.Collect(seq)
	assert.Len(t, second, 3, "each iteration takes a fresh snapshot")
	assert.Equal(t, "a-3", second[0].ID, "newest insertion first")
	assert.Equal(t, "a-1", second[2].ID)

	// mutating a yielded copy must not reach the store
	first[0].Status = models.StatusAcknowledged
	got, err := repo.Get(first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestListStopsEarly(t *testing.T) {
	repo := NewMemoryAlertRepository()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Insert(newAlert(id, 0.5)))
	}

	n := 0
	for range repo.List() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestConcurrentInsertKeepsIDsUnique(t *testing.T) {
	repo := NewMemoryAlertRepository()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Insert(newAlert("same", 0.8))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrDuplicateID) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, repo.Len())
}

func TestCameraRegistry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := NewCameraRegistry([]config.CameraConfig{
		{ID: "cam-001", Name: "Main Entrance", Location: "Building A", Status: "active"},
		{ID: "cam-002", Name: "Parking Garage", Location: "Level B1", Status: "inactive"},
		{ID: "cam-003", Name: "Lobby", Location: "Building A - Lobby", Status: ""},
	}, now)

	assert.Equal(t, []string{"Main Entrance", "Lobby"}, reg.ActiveNames())

	later := now.Add(time.Minute)
	assert.True(t, reg.MarkAlert("Main Entrance", later))
	assert.False(t, reg.MarkAlert("Main Entrance", later), "second mark is a no-op")
	assert.False(t, reg.MarkAlert("Primary Webcam", later), "unknown camera ignored")

	cams := reg.List()
	assert.Equal(t, models.CameraAlert, cams[0].Status)
	assert.Equal(t, later, cams[0].LastActivity)

	require.NoError(t, reg.SetStatus("cam-002", models.CameraActive, later))
	assert.ErrorIs(t, reg.SetStatus("cam-999", models.CameraActive, later), ErrCameraNotFound)
	assert.Error(t, reg.SetStatus("cam-001", models.CameraStatus("broken"), later))

	loc, ok := reg.Location("Lobby")
	assert.True(t, ok)
	assert.Equal(t, "Building A - Lobby", loc)
}
