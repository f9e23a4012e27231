package sources

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/metrics"
	"weaponwatch/alerting/internal/models"
)

// Runner drives a Source on a fixed cadence. The timer is re-armed only after
// a tick has fully completed, so ticks never overlap. Each Start gets a new
// generation; results produced under an older generation are discarded.
type Runner struct {
	source     Source
	ingester   Ingester
	interval   time.Duration
	backoffMax time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger

	// commitMu covers the generation check and the ingest that follows it.
	commitMu sync.Mutex

	mu         sync.Mutex
	generation uint64
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

type RunnerOption func(*Runner)

// WithBackoff enables capped exponential backoff after consecutive failed
// polls. A zero cap keeps the fixed interval.
func WithBackoff(ceiling time.Duration) RunnerOption {
	return func(r *Runner) { r.backoffMax = ceiling }
}

func WithRunnerMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(source Source, ingester Ingester, interval time.Duration, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:   source,
		ingester: ingester,
		interval: interval,
		logger:   logger.With(zap.String("source", source.Name())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the loop. It returns false if the runner is already running.
func (r *Runner) Start(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return false
	}
	r.generation++
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(loopCtx, r.generation, r.done)

	r.logger.Info("Source started", zap.Duration("interval", r.interval), zap.Uint64("generation", r.generation))
	return true
}

// Stop cancels the loop and waits for it to exit. A candidate already being
// ingested is allowed to finish; nothing polled under the old generation is
// ingested once Stop has returned.
func (r *Runner) Stop() {
	r.commitMu.Lock()
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		r.commitMu.Unlock()
		return
	}
	r.generation++
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	r.commitMu.Unlock()

	cancel()
	<-done
	r.logger.Info("Source stopped")
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Tick runs a single poll-and-ingest cycle under the current generation.
func (r *Runner) Tick(ctx context.Context) error {
	return r.tick(ctx, r.Generation())
}

func (r *Runner) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation == gen
}

func (r *Runner) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	failures := 0
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := r.tick(ctx, gen); err != nil {
			failures++
		} else {
			failures = 0
		}
		timer.Reset(Backoff(r.interval, r.backoffMax, failures))
	}
}

func (r *Runner) tick(ctx context.Context, gen uint64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "poll-"+r.source.Name())
	defer span.Finish()

	candidates, err := r.source.Poll(ctx)
	if ctx.Err() != nil || !r.current(gen) {
		// stopped while polling
		return nil
	}
	if err != nil {
		span.SetTag("error", true)
		r.metrics.IncPollFailures(r.source.Name())
		r.logger.Warn("Poll failed, will retry", zap.Error(err))
		return err
	}

	committer, _ := r.source.(Committer)
	for _, c := range candidates {
		if !r.commit(ctx, gen, c, committer) {
			r.logger.Debug("Discarding stale candidates", zap.Uint64("generation", gen))
			return nil
		}
	}
	span.SetTag("candidates", len(candidates))
	return nil
}

// commit ingests one candidate if gen is still current. It reports false when
// the generation has moved on.
func (r *Runner) commit(ctx context.Context, gen uint64, c models.Candidate, committer Committer) bool {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	if !r.current(gen) {
		return false
	}
	if _, _, err := r.ingester.Ingest(ctx, c); err != nil {
		r.logger.Warn("Candidate rejected", zap.String("source_id", c.SourceID), zap.Error(err))
		return true
	}
	if committer != nil {
		committer.Commit(c)
	}
	return true
}

// Backoff returns the delay before the next tick after the given number of
// consecutive failures: interval doubled per failure, capped at ceiling.
func Backoff(interval, ceiling time.Duration, failures int) time.Duration {
	if ceiling <= interval || failures <= 0 {
		return interval
	}
	d := interval
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}
