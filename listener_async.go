package goToken

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type queuedEvent struct {
	ctx context.Context
	ev  Event
}

// AsyncListener queues events and delivers them to an inner Listener from a
// single background goroutine, preserving order. With DropIfFull a full
// queue drops the event and counts it; otherwise the caller blocks until
// there is room or its context ends.
type AsyncListener struct {
	cfg     ListenerConfig
	inner   Listener
	logger  zerolog.Logger
	metrics *Metrics

	ch        chan queuedEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewAsyncListener starts the delivery goroutine. Call Close to drain and stop it.
func NewAsyncListener(inner Listener, cfg ListenerConfig, logger zerolog.Logger, metrics *Metrics) *AsyncListener {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if inner == nil {
		inner = NopListener{}
	}

	a := &AsyncListener{
		cfg:     cfg,
		inner:   inner,
		logger:  logger,
		metrics: metrics,
		ch:      make(chan queuedEvent, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	a.wg.Add(1)
	go a.run()

	return a
}

func (a *AsyncListener) run() {
	defer a.wg.Done()

	for {
		select {
		case q := <-a.ch:
			safeDeliver(q.ctx, a.inner, q.ev, a.logger, a.metrics)
		case <-a.done:
			for {
				select {
				case q := <-a.ch:
					safeDeliver(q.ctx, a.inner, q.ev, a.logger, a.metrics)
				default:
					return
				}
			}
		}
	}
}

func (a *AsyncListener) enqueue(ctx context.Context, ev Event) {
	if a == nil || a.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	q := queuedEvent{ctx: context.WithoutCancel(ctx), ev: ev}

	if a.cfg.DropIfFull {
		select {
		case a.ch <- q:
		case <-a.done:
		default:
			a.dropped.Add(1)
		}
		return
	}

	select {
	case a.ch <- q:
	case <-ctx.Done():
	case <-a.done:
	}
}

// Close stops accepting events, delivers what is queued and waits.
func (a *AsyncListener) Close() error {
	if a == nil {
		return nil
	}
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.done)
		a.wg.Wait()
	})
	return nil
}

// Dropped returns the number of events dropped on a full queue.
func (a *AsyncListener) Dropped() uint64 {
	if a == nil {
		return 0
	}
	return a.dropped.Load()
}

func (a *AsyncListener) OnLogin(ctx context.Context, loginType, loginID, token string, params LoginParams) {
	a.enqueue(ctx, Event{Type: EventLogin, LoginType: loginType, LoginID: loginID, Token: token, Device: params.Device, Params: params})
}

func (a *AsyncListener) OnLogout(ctx context.Context, loginType, loginID, token string) {
	a.enqueue(ctx, Event{Type: EventLogout, LoginType: loginType, LoginID: loginID, Token: token})
}

func (a *AsyncListener) OnKickedOut(ctx context.Context, loginType, loginID, token string) {
	a.enqueue(ctx, Event{Type: EventKickedOut, LoginType: loginType, LoginID: loginID, Token: token})
}

func (a *AsyncListener) OnReplaced(ctx context.Context, loginType, loginID, device, token string) {
	a.enqueue(ctx, Event{Type: EventReplaced, LoginType: loginType, LoginID: loginID, Device: device, Token: token})
}

func (a *AsyncListener) OnDisable(ctx context.Context, loginType, loginID, realm string, timeout int64) {
	a.enqueue(ctx, Event{Type: EventDisable, LoginType: loginType, LoginID: loginID, Realm: realm, Timeout: timeout})
}

func (a *AsyncListener) OnUntieDisable(ctx context.Context, loginType, loginID, realm string) {
	a.enqueue(ctx, Event{Type: EventUntieDisable, LoginType: loginType, LoginID: loginID, Realm: realm})
}

func (a *AsyncListener) OnSessionCreate(ctx context.Context, loginType, sessionID string) {
	a.enqueue(ctx, Event{Type: EventSessionCreate, LoginType: loginType, SessionID: sessionID})
}

func (a *AsyncListener) OnSessionDestroy(ctx context.Context, loginType, sessionID string) {
	a.enqueue(ctx, Event{Type: EventSessionDestroy, LoginType: loginType, SessionID: sessionID})
}
