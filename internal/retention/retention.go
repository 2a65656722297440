// Package retention prunes old query runs from the store on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/mtsiakos/skopos/internal/config"
	"github.com/mtsiakos/skopos/internal/natsbus"
	"github.com/mtsiakos/skopos/internal/notify"
	"github.com/mtsiakos/skopos/internal/store"
)

type Pruner struct {
	store    *store.Store
	client   *natsbus.Client
	broker   *notify.Broker
	schedule string
	maxAge   time.Duration
}

func New(st *store.Store, client *natsbus.Client, broker *notify.Broker, cfg config.RetentionConfig) (*Pruner, error) {
	if !gronx.New().IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("invalid retention schedule: %q", cfg.Schedule)
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", cfg.MaxAge)
	}
	return &Pruner{
		store:    st,
		client:   client,
		broker:   broker,
		schedule: cfg.Schedule,
		maxAge:   cfg.MaxAge,
	}, nil
}

// Start runs the prune loop until the context is cancelled. One pass runs
// immediately so a gateway that was down over a scheduled tick still catches
// up; after that each iteration sleeps until the next cron tick.
func (p *Pruner) Start(ctx context.Context) {
	slog.Info("retention pruner started", "schedule", p.schedule, "max_age", p.maxAge)

	if _, err := p.prune(); err != nil {
		slog.Error("startup prune failed", "error", err)
	}

	for {
		next, err := gronx.NextTick(p.schedule, false)
		if err != nil {
			slog.Error("failed to compute next prune tick", "error", err)
			return
		}

		select {
		case <-ctx.Done():
			slog.Info("retention pruner stopped")
			return
		case <-time.After(time.Until(next)):
			if _, err := p.prune(); err != nil {
				slog.Error("prune failed", "error", err)
			}
		}
	}
}

func (p *Pruner) prune() (int64, error) {
	cutoff := time.Now().UTC().Add(-p.maxAge)
	n, err := p.store.PruneRunsBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	slog.Info("pruned query runs", "count", n, "cutoff", cutoff)

	event := notify.Notification{
		Type:      notify.TypeRunsPruned,
		Data:      map[string]any{"pruned": n, "cutoff": cutoff},
		Timestamp: time.Now().UTC(),
	}
	if p.client != nil {
		if err := p.client.PublishJSON(natsbus.TopicEventsRetention, event); err != nil {
			slog.Warn("failed to publish retention event", "error", err)
		}
	}
	p.broker.Publish(event)
	return n, nil
}

// PruneNow runs one prune pass immediately and returns the number of runs
// removed.
func (p *Pruner) PruneNow() (int64, error) {
	return p.prune()
}
