package sources

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"weaponwatch/alerting/internal/config"
	"weaponwatch/alerting/internal/models"
)

// DefaultCamera labels simulated detections when no camera is active.
const DefaultCamera = "Unknown Camera"

// CameraLister supplies the cameras a simulated detection may come from.
type CameraLister interface {
	ActiveNames() []string
}

// Simulator emits a synthetic detection with a fixed probability per tick.
type Simulator struct {
	probability   float64
	minConfidence float64
	maxConfidence float64
	weapons       []string
	cameras       CameraLister

	mu    sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	newID func() string
}

type SimulatorOption func(*Simulator)

// WithRand makes the simulator deterministic.
func WithRand(rng *rand.Rand) SimulatorOption {
	return func(s *Simulator) { s.rng = rng }
}

func WithSimulatorClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

func WithIDGenerator(newID func() string) SimulatorOption {
	return func(s *Simulator) { s.newID = newID }
}

func NewSimulator(cfg config.SimulatorConfig, cameras CameraLister, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		probability:   cfg.Probability,
		minConfidence: cfg.MinConfidence,
		maxConfidence: cfg.MaxConfidence,
		weapons:       cfg.Weapons,
		cameras:       cameras,
		rng:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Name() string {
	return models.SourceSimulator
}

func (s *Simulator) Poll(_ context.Context) ([]models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.weapons) == 0 || s.rng.Float64() >= s.probability {
		return nil, nil
	}

	camera := DefaultCamera
	if s.cameras != nil {
		if names := s.cameras.ActiveNames(); len(names) > 0 {
			camera = names[s.rng.IntN(len(names))]
		}
	}

	return []models.Candidate{{
		Source:     models.SourceSimulator,
		SourceID:   s.newID(),
		Weapon:     s.weapons[s.rng.IntN(len(s.weapons))],
		Confidence: s.minConfidence + s.rng.Float64()*(s.maxConfidence-s.minConfidence),
		Timestamp:  s.now(),
		Camera:     camera,
	}}, nil
}
