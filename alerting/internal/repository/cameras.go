package repository

import (
	"fmt"
	"sync"
	"time"

	"weaponwatch/alerting/internal/config"
	"weaponwatch/alerting/internal/models"
)

type MemoryCameraRegistry struct {
	mu      sync.RWMutex
	cameras []models.Camera
}

// NewCameraRegistry builds the roster from configuration. Cameras with an
// unknown or empty status start active.
func NewCameraRegistry(roster []config.CameraConfig, now time.Time) *MemoryCameraRegistry {
	cameras := make([]models.Camera, 0, len(roster))
	for _, c := range roster {
		status := models.CameraStatus(c.Status)
		if !status.Valid() {
			status = models.CameraActive
		}
		cameras = append(cameras, models.Camera{
			ID:           c.ID,
			Name:         c.Name,
			Location:     c.Location,
			Status:       status,
			LastActivity: now,
		})
	}
	return &MemoryCameraRegistry{cameras: cameras}
}

func (r *MemoryCameraRegistry) List() []models.Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Camera, len(r.cameras))
	copy(out, r.cameras)
	return out
}

// ActiveNames returns the names of cameras that are not inactive.
func (r *MemoryCameraRegistry) ActiveNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, c := range r.cameras {
		if c.Status != models.CameraInactive {
			names = append(names, c.Name)
		}
	}
	return names
}

// Location returns the location of the named camera, if known.
func (r *MemoryCameraRegistry) Location(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.cameras {
		if c.Name == name {
			return c.Location, true
		}
	}
	return "", false
}

// MarkAlert flags the named camera as being in alert. It reports whether the
// status changed; unknown names are ignored.
func (r *MemoryCameraRegistry) MarkAlert(name string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.cameras {
		if r.cameras[i].Name != name {
			continue
		}
		r.cameras[i].LastActivity = at
		if r.cameras[i].Status == models.CameraAlert {
			return false
		}
		r.cameras[i].Status = models.CameraAlert
		return true
	}
	return false
}

func (r *MemoryCameraRegistry) SetStatus(id string, status models.CameraStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("unknown camera status %q", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.cameras {
		if r.cameras[i].ID == id {
			r.cameras[i].Status = status
			r.cameras[i].LastActivity = at
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrCameraNotFound, id)
}
