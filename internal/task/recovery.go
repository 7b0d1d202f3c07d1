package task

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/generation"
)

// DefaultStuckCheckInterval is used when RecoveryPolicy.CheckInterval is
// not set.
const DefaultStuckCheckInterval = 5 * time.Minute

// RecoveryPolicy controls which unfinished charts Recover and
// RunStuckMonitor treat as abandoned.
type RecoveryPolicy struct {
	// StuckAge is how long a chart may sit in WAIT or RUNNING without an
	// update before it is considered abandoned. It must exceed the longest
	// generation a live process can run, retries included. Zero treats every
	// unfinished chart as abandoned, which is only safe with one instance.
	StuckAge time.Duration

	// CheckInterval is how often RunStuckMonitor looks for stuck charts.
	CheckInterval time.Duration
}

func (p RecoveryPolicy) withDefaults() RecoveryPolicy {
	if p.CheckInterval <= 0 {
		p.CheckInterval = DefaultStuckCheckInterval
	}
	return p
}

// Recover resumes charts left unfinished by a previous run. Charts in
// RUNNING past the stuck age are failed as interrupted; charts in WAIT past
// the stuck age are submitted again with a prompt rebuilt from their
// dataset. Charts updated more recently are assumed to belong to a live
// process and are left alone.
func (p *Pipeline) Recover(ctx context.Context) error {
	waiting, err := p.charts.FindByStatus(ctx, domain.ChartStatusWait, p.recovery.StuckAge)
	if err != nil {
		return fmt.Errorf("failed to get waiting charts: %w", err)
	}
	running, err := p.charts.FindByStatus(ctx, domain.ChartStatusRunning, p.recovery.StuckAge)
	if err != nil {
		return fmt.Errorf("failed to get running charts: %w", err)
	}

	p.logger.Info("recovering unfinished charts",
		"waiting_count", len(waiting),
		"running_count", len(running),
		"stuck_age", p.recovery.StuckAge)

	for _, c := range running {
		p.factory.recorder.fail(ctx, c.ID, c.OwnerID, ExecMessageInterrupted)
	}

	requeued := 0
	for _, c := range waiting {
		log := p.logger.With("chart_id", c.ID)

		ds, err := p.datasets.ReadRows(ctx, domain.DatasetTableName(c.ID))
		if err != nil {
			log.Error("failed to read dataset of waiting chart", "error", err)
			p.factory.recorder.fail(ctx, c.ID, c.OwnerID, ExecMessageDatasetMissing)
			continue
		}
		prompt, err := generation.BuildPrompt(c.Goal, c.ChartType, ds)
		if err != nil {
			log.Error("failed to rebuild prompt of waiting chart", "error", err)
			p.factory.recorder.fail(ctx, c.ID, c.OwnerID, ExecMessageDatasetMissing)
			continue
		}
		if err := p.Enqueue(c.ID, c.OwnerID, prompt); err != nil {
			log.Error("failed to requeue waiting chart", "error", err)
			continue
		}
		requeued++
	}

	p.logger.Info("chart recovery complete", "requeued", requeued, "interrupted", len(running))
	return nil
}

// RunStuckMonitor periodically fails charts that have been RUNNING for
// longer than the stuck age, such as those owned by a process that died.
// It blocks until ctx is done and returns at once when no stuck age is
// configured.
func (p *Pipeline) RunStuckMonitor(ctx context.Context) {
	if p.recovery.StuckAge <= 0 {
		return
	}

	ticker := time.NewTicker(p.recovery.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.failStuck(ctx)
		}
	}
}

func (p *Pipeline) failStuck(ctx context.Context) {
	stuck, err := p.charts.FindByStatus(ctx, domain.ChartStatusRunning, p.recovery.StuckAge)
	if err != nil {
		p.logger.Error("failed to check for stuck charts", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	p.logger.Info("found stuck charts", "count", len(stuck))
	for _, c := range stuck {
		p.factory.recorder.fail(ctx, c.ID, c.OwnerID, ExecMessageInterrupted)
	}
}
