package bootstrap

import (
	"context"
	"sync"

	"github.com/wolfman30/hsm-appointments/internal/session"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

type sessionSource interface {
	Current() session.Session
	OnChange(fn func(session.Session))
	Restore(ctx context.Context) (session.Session, error)
}

type workingSet interface {
	Reset()
}

type poller interface {
	Run(ctx context.Context)
}

// Runtime keeps appointment sync in step with the session: authenticating
// starts the poller (whose first pass is the initial load) and any drop to
// anonymous stops it and clears the working set.
type Runtime struct {
	sessions sessionSource
	store    workingSet
	poller   poller
	logger   *logging.Logger

	mu      sync.Mutex
	base    context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func NewRuntime(sessions sessionSource, store workingSet, p poller, logger *logging.Logger) *Runtime {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Runtime{
		sessions: sessions,
		store:    store,
		poller:   p,
		logger:   logger,
		base:     context.Background(),
	}
	sessions.OnChange(r.handle)
	return r
}

// Start restores any persisted session. Sync runs under ctx until Stop or
// until ctx ends.
func (r *Runtime) Start(ctx context.Context) (session.Session, error) {
	r.mu.Lock()
	r.base = ctx
	r.stopped = false
	r.mu.Unlock()
	return r.sessions.Restore(ctx)
}

// Stop halts sync and waits for the poller to return.
func (r *Runtime) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.stopSync()
}

// Syncing reports whether the poller is running.
func (r *Runtime) Syncing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Runtime) handle(s session.Session) {
	if s.Authenticated() {
		r.startSync(s)
		return
	}
	r.stopSync()
	r.store.Reset()
	r.logger.Info("appointment sync stopped; working set cleared")
}

func (r *Runtime) startSync(s session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.base)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	go func() {
		defer close(done)
		r.poller.Run(ctx)
	}()
	r.logger.Info("appointment sync started", "identity", s.Identity, "role", string(s.Role))
}

func (r *Runtime) stopSync() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
