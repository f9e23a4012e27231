package frames

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"weaponwatch/alerting/internal/config"
	"weaponwatch/alerting/internal/metrics"
	"weaponwatch/alerting/internal/models"
)

// RecentLimit is how many detections the loop keeps for display.
const RecentLimit = 5

// Detection is a synthetic detection produced from one sampled frame.
type Detection struct {
	ID         string             `json:"id"`
	Weapon     string             `json:"weapon"`
	Confidence float64            `json:"confidence"`
	BBox       models.BoundingBox `json:"bbox"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Loop samples the webcam at a fixed cadence. Every call to Poll is one
// sample; it is driven by a sources.Runner while streaming.
type Loop struct {
	probability   float64
	minConfidence float64
	maxConfidence float64
	weapons       []string
	width         int
	height        int
	camera        string
	location      string
	metrics       *metrics.Metrics

	mu          sync.Mutex
	rng         *rand.Rand
	now         func() time.Time
	newID       func() string
	windowStart time.Time
	samples     int
	fps         int
	totalFrames uint64
	recent      []Detection
}

type Option func(*Loop)

func WithRand(rng *rand.Rand) Option {
	return func(l *Loop) { l.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Loop) { l.newID = newID }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

func NewLoop(cfg config.WebcamConfig, opts ...Option) *Loop {
	l := &Loop{
		probability:   cfg.DetectionProbability,
		minConfidence: cfg.MinConfidence,
		maxConfidence: cfg.MaxConfidence,
		weapons:       cfg.Weapons,
		width:         cfg.Width,
		height:        cfg.Height,
		camera:        cfg.Camera,
		location:      cfg.Location,
		rng:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xcafe)),
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Name() string {
	return models.SourceWebcam
}

// Poll takes one sample. With the configured probability it synthesizes a
// detection and returns it as a candidate.
func (l *Loop) Poll(_ context.Context) ([]models.Candidate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.countSample(now)

	if len(l.weapons) == 0 || l.rng.Float64() >= l.probability {
		return nil, nil
	}

	d := Detection{
		ID:         l.newID(),
		Weapon:     l.weapons[l.rng.IntN(len(l.weapons))],
		Confidence: l.minConfidence + l.rng.Float64()*(l.maxConfidence-l.minConfidence),
		BBox:       l.randomBox(),
		Timestamp:  now,
	}
	l.recent = append([]Detection{d}, l.recent...)
	if len(l.recent) > RecentLimit {
		l.recent = l.recent[:RecentLimit]
	}

	box := d.BBox
	return []models.Candidate{{
		Source:     models.SourceWebcam,
		SourceID:   d.ID,
		Weapon:     d.Weapon,
		Confidence: d.Confidence,
		Timestamp:  d.Timestamp,
		Camera:     l.camera,
		Location:   l.location,
		BBox:       &box,
	}}, nil
}

// countSample advances the FPS window. The reported rate is the number of
// samples in the last completed window of at least one second. The first
// sample only opens the window.
func (l *Loop) countSample(now time.Time) {
	l.totalFrames++
	if l.windowStart.IsZero() {
		l.windowStart = now
		return
	}
	l.samples++
	if now.Sub(l.windowStart) >= time.Second {
		l.fps = l.samples
		l.samples = 0
		l.windowStart = now
		l.metrics.SetWebcamFPS(float64(l.fps))
	}
}

// randomBox places a box whose origin lies in the first 60% of each axis,
// sized 100-200px, clipped to the frame.
func (l *Loop) randomBox() models.BoundingBox {
	x := int(l.rng.Float64() * 0.6 * float64(l.width))
	y := int(l.rng.Float64() * 0.6 * float64(l.height))
	w := 100 + int(l.rng.Float64()*100)
	h := 100 + int(l.rng.Float64()*100)

	w = min(w, l.width-x)
	h = min(h, l.height-y)
	return models.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

// Reset clears FPS state; called when streaming starts or stops.
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windowStart = time.Time{}
	l.samples = 0
	l.fps = 0
	l.metrics.SetWebcamFPS(0)
}

func (l *Loop) FPS() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fps
}

func (l *Loop) TotalFrames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalFrames
}

// Recent returns up to RecentLimit detections, newest first.
func (l *Loop) Recent() []Detection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Detection(nil), l.recent...)
}

// Bounds returns the frame size detections are placed in.
func (l *Loop) Bounds() (int, int) {
	return l.width, l.height
}
