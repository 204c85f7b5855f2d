package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// Notifier delivers an alert to some downstream sink (guard radio, email
// gateway, log).
type Notifier interface {
	Notify(ctx context.Context, a types.Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, a types.Alert) error {
	n.Logger.Warn("badge alert",
		zap.String("alert_id", a.ID),
		zap.String("kind", string(a.Kind)),
		zap.String("badge_code", a.BadgeCode),
		zap.String("entry_id", a.EntryID),
		zap.String("identity_key", a.IdentityKey),
	)
	return nil
}

// Dispatcher fans alerts out to sinks on a background goroutine. Dispatch
// never blocks and never fails; a full queue or a failing sink is logged.
type Dispatcher struct {
	sinks   []Notifier
	timeout time.Duration
	logger  *zap.Logger

	queue chan types.Alert
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts the delivery goroutine. Call Close to drain it.
func NewDispatcher(logger *zap.Logger, buffer int, sinks ...Notifier) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		sinks:   sinks,
		timeout: 5 * time.Second,
		logger:  logger,
		queue:   make(chan types.Alert, buffer),
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

// Dispatch queues a for delivery.
func (d *Dispatcher) Dispatch(a types.Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("alert dropped: dispatcher closed", zap.String("alert_id", a.ID))
		return
	}
	select {
	case d.queue <- a:
	default:
		d.logger.Error("alert dropped: queue full", zap.String("alert_id", a.ID), zap.String("kind", string(a.Kind)))
	}
}

// Close stops accepting alerts and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for a := range d.queue {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := s.Notify(ctx, a); err != nil {
				d.logger.Error("alert notification failed", zap.Error(err), zap.String("alert_id", a.ID))
			}
			cancel()
		}
	}
}
