package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/menta2k/image-annotator/pkg/store"
)

// Default live cadence.
const (
	DefaultInterval = 6 * time.Second
	DefaultBackoff  = 20 * time.Second
)

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time WaitFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LiveLoop sends the current camera frame on a fixed cadence while live mode
// is on, backing off after a rate limit. The loop is rebuilt, sending
// immediately, whenever live mode or a request-shaping setting changes.
type LiveLoop struct {
	orch     *Orchestrator
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
	backoff  time.Duration
	wait     WaitFunc

	mu          sync.Mutex
	parent      context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

// NewLiveLoop creates a stopped loop. A nil wait uses Sleep.
func NewLiveLoop(o *Orchestrator, interval, backoff time.Duration, wait WaitFunc) *LiveLoop {
	if wait == nil {
		wait = Sleep
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &LiveLoop{
		orch:     o,
		store:    o.store,
		logger:   o.logger,
		interval: interval,
		backoff:  backoff,
		wait:     wait,
	}
}

// Start begins watching the store. Requests use ctx, so cancelling it also
// aborts an in-flight send; config changes only replace the loop.
func (l *LiveLoop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.unsubscribe != nil {
		l.mu.Unlock()
		return
	}
	l.parent = ctx
	l.unsubscribe = l.store.Subscribe(store.ChangeLive|store.ChangeConfig, func(store.Change) {
		l.restart()
	})
	l.mu.Unlock()

	l.restart()
}

// Stop tears the loop down. An in-flight request is not cancelled.
func (l *LiveLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *LiveLoop) restart() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.unsubscribe == nil || l.parent.Err() != nil || !l.store.LiveMode() {
		return
	}

	ctx, cancel := context.WithCancel(l.parent)
	l.cancel = cancel
	go func() {
		if err := l.run(ctx, l.parent); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error("live.stopped", "error", err)
		}
	}()
}

// NextDelay is the wait before the next tick.
func (l *LiveLoop) NextDelay() time.Duration {
	if l.orch.RateLimited() {
		return l.backoff
	}
	return l.interval
}

// Run ticks until the wait function fails, typically because ctx is done.
// Each tick sends unless live mode is off or a request is in flight.
func (l *LiveLoop) Run(ctx context.Context) error {
	return l.run(ctx, ctx)
}

func (l *LiveLoop) run(loopCtx, sendCtx context.Context) error {
	for {
		if loopCtx.Err() != nil {
			return loopCtx.Err()
		}
		if l.store.LiveMode() && !l.orch.Loading() {
			err := l.orch.Send(sendCtx)
			if err != nil && !errors.Is(err, ErrBusy) && !errors.Is(err, ErrNoImage) {
				l.logger.Debug("live.tick", "error", err)
			}
		}
		if err := l.wait(loopCtx, l.NextDelay()); err != nil {
			return err
		}
	}
}
