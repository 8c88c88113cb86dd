package summarycache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/chronicle/internal/models"
)

type persistJob struct {
	cache     *Cache
	summaries []models.CachedSummary
}

// Persister writes summaries in the background through a bounded queue
// drained by a single worker. Jobs that do not fit are dropped.
type Persister struct {
	jobs    chan persistJob
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewPersister starts a persister with room for capacity queued jobs. Each
// job runs under its own timeout, detached from the enqueuing request.
func NewPersister(capacity int, timeout time.Duration, logger *slog.Logger) *Persister {
	if capacity <= 0 {
		capacity = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Persister{
		jobs:    make(chan persistJob, capacity),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Enqueue schedules summaries for writing without blocking. It reports
// whether the job was accepted.
func (p *Persister) Enqueue(cache *Cache, summaries []models.CachedSummary) bool {
	if !cache.Enabled() || len(summaries) == 0 {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("summary persistence closed, dropping job", slog.Int("summaries", len(summaries)))
		return false
	}
	select {
	case p.jobs <- persistJob{cache: cache, summaries: summaries}:
		return true
	default:
		p.logger.Warn("summary persistence queue full, dropping job", slog.Int("summaries", len(summaries)))
		return false
	}
}

func (p *Persister) run() {
	defer close(p.done)
	for job := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		n := job.cache.Save(ctx, job.summaries)
		cancel()
		p.logger.Debug("summaries persisted",
			slog.Int("saved", n),
			slog.Int("submitted", len(job.summaries)),
		)
	}
}

// Close stops accepting jobs and waits for the queue to drain or ctx to end.
// Close may be called more than once.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
