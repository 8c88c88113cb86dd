// Package maintenance keeps a journal inbox's summary cache warm: as entries
// age into older tiers, periodic prewarm and cleanup passes summarize the new
// batches and drop superseded ones.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/starford/chronicle/internal/insight"
)

// Journals is the pipeline surface maintenance needs.
type Journals interface {
	Prewarm(ctx context.Context, user, journal string, now time.Time) (insight.PrewarmResult, error)
	Cleanup(ctx context.Context, user, journal string, now time.Time) (insight.CleanupResult, error)
}

// Inbox lists the journal files to maintain.
type Inbox interface {
	Scan() ([]string, error)
}

// Pass totals one maintenance run.
type Pass struct {
	Files     int
	Failed    int
	Generated int
	Saved     int
	Fallbacks int
	Deleted   int
}

// Scheduler runs maintenance passes on a cron schedule.
type Scheduler struct {
	journals Journals
	inbox    Inbox
	user     string
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Scheduler maintaining user's summaries for every file in inbox.
func New(journals Journals, inbox Inbox, user string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		journals: journals,
		inbox:    inbox,
		user:     user,
		logger:   logger,
		now:      time.Now,
	}
}

// Run registers the pass under schedule (standard five-field cron or a
// descriptor such as "@daily") and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, schedule string) error {
	c := rcron.New(rcron.WithChain(rcron.SkipIfStillRunning(rcron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", schedule, err)
	}
	c.Start()
	s.logger.Info("maintenance: started", slog.String("schedule", schedule))

	<-ctx.Done()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("maintenance: stop timeout waiting for running pass")
	}
	s.logger.Info("maintenance: stopped")
	return nil
}

// RunOnce maintains every journal in the inbox.
func (s *Scheduler) RunOnce(ctx context.Context) Pass {
	var pass Pass
	files, err := s.inbox.Scan()
	if err != nil {
		s.logger.Error("maintenance: scan failed", slog.String("error", err.Error()))
		return pass
	}
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		pass.Files++
		if err := s.maintain(ctx, path, &pass); err != nil {
			pass.Failed++
			s.logger.Warn("maintenance: journal failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
	s.logger.Info("maintenance: pass complete",
		slog.Int("files", pass.Files),
		slog.Int("generated", pass.Generated),
		slog.Int("deleted", pass.Deleted),
		slog.Int("fallbacks", pass.Fallbacks))
	return pass
}

// HandleChange maintains a single journal; it is the watcher callback.
func (s *Scheduler) HandleChange(ctx context.Context, path string) {
	var pass Pass
	if err := s.maintain(ctx, path, &pass); err != nil {
		s.logger.Warn("maintenance: journal failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Info("maintenance: journal refreshed",
		slog.String("path", path),
		slog.Int("generated", pass.Generated),
		slog.Int("deleted", pass.Deleted))
}

func (s *Scheduler) maintain(ctx context.Context, path string, pass *Pass) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("maintenance: read %s: %w", path, err)
	}
	now := s.now()
	journal := string(data)

	warm, err := s.journals.Prewarm(ctx, s.user, journal, now)
	if err != nil {
		return fmt.Errorf("maintenance: prewarm %s: %w", path, err)
	}
	pass.Generated += warm.Generated
	pass.Saved += warm.Saved
	pass.Fallbacks += warm.Fallbacks

	clean, err := s.journals.Cleanup(ctx, s.user, journal, now)
	if err != nil {
		return fmt.Errorf("maintenance: cleanup %s: %w", path, err)
	}
	pass.Deleted += clean.Weekly + clean.Monthly
	return nil
}
