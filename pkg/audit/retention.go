package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes events older than the retention window on a cron
// schedule.
type Pruner struct {
	store         *Store
	retentionDays int
	schedule      string
	cron          *cron.Cron
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPruner creates a pruner. retentionDays <= 0 disables pruning entirely.
func NewPruner(store *Store, retentionDays int, schedule string) *Pruner {
	return &Pruner{
		store:         store,
		retentionDays: retentionDays,
		schedule:      schedule,
		cron:          cron.New(),
		logger:        slog.Default().With("component", "audit.retention"),
	}
}

// Start schedules pruning. A disabled retention window is a no-op.
func (p *Pruner) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.retentionDays <= 0 {
		p.logger.Info("audit retention disabled, events kept indefinitely")
		return nil
	}

	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", p.schedule, err)
	}

	if _, err := p.cron.AddFunc(p.schedule, p.runOnce); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("audit retention scheduled",
		"schedule", p.schedule,
		"retention_days", p.retentionDays,
	)
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
}

// PruneNow prunes immediately, outside the schedule.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -p.retentionDays)
	return p.store.PruneBefore(ctx, cutoff)
}

func (p *Pruner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := p.PruneNow(ctx)
	if err != nil {
		p.logger.Error("audit prune failed", "error", err)
		return
	}
	p.logger.Info("audit prune completed", "removed", removed)
}
