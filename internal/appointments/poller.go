package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

// DefaultRefreshInterval is how often the working set is refetched while a
// session is active.
const DefaultRefreshInterval = 30 * time.Second

type loader interface {
	LoadAll(ctx context.Context) error
}

// Poller keeps the working set fresh by refetching it on an interval. The
// first refetch happens as soon as Run starts.
type Poller struct {
	store    loader
	logger   *logging.Logger
	interval time.Duration
}

func NewPoller(store loader, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Poller{
		store:    store,
		logger:   logger,
		interval: DefaultRefreshInterval,
	}
}

func (p *Poller) WithInterval(d time.Duration) *Poller {
	if d > 0 {
		p.interval = d
	}
	return p
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	if p.store == nil || ctx.Err() != nil {
		return
	}
	err := p.store.LoadAll(ctx)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUnauthenticated), errors.Is(err, context.Canceled):
		p.logger.Debug("appointment poll skipped", "error", err)
	default:
		p.logger.Warn("appointment poll failed", "error", err)
	}
}
