package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultSweepInterval = time.Minute

// ReaperOptions задаёт параметры воркера выселения сессий.
type ReaperOptions struct {
	Logger   *log.Entry
	Interval time.Duration
}

// ReaperOption настраивает Reaper.
type ReaperOption func(*ReaperOptions)

// WithReaperLogger задаёт logger для воркера.
func WithReaperLogger(logger *log.Entry) ReaperOption {
	return func(opts *ReaperOptions) {
		opts.Logger = logger
	}
}

// WithSweepInterval задаёт интервал между проходами.
func WithSweepInterval(interval time.Duration) ReaperOption {
	return func(opts *ReaperOptions) {
		opts.Interval = interval
	}
}

// Reaper периодически выселяет простаивающие сессии.
type Reaper struct {
	manager  *Manager
	logger   *log.Entry
	interval time.Duration
}

// NewReaper создаёт воркер выселения сессий.
func NewReaper(manager *Manager, options ...ReaperOption) *Reaper {
	opts := ReaperOptions{Interval: defaultSweepInterval}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "session-reaper")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}

	return &Reaper{
		manager:  manager,
		logger:   logger,
		interval: opts.Interval,
	}
}

// Run запускает периодическое выселение до отмены ctx.
func (r *Reaper) Run(ctx context.Context) {
	if r.manager == nil {
		r.logger.Warn("session reaper is disabled: manager is nil")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	evicted := r.manager.Sweep(r.manager.now())
	if evicted > 0 {
		r.logger.WithFields(log.Fields{
			"evicted":   evicted,
			"remaining": r.manager.Len(),
		}).Info("idle cart sessions evicted")
	}
}
