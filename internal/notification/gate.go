package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/observability/metrics"

	"go.uber.org/zap"
)

const (
	DefaultCooldown = 6 * time.Hour
	DefaultDelay    = 30 * time.Second
)

type Decision int

const (
	DecisionScheduled Decision = iota
	DecisionCoalesced
	DecisionCooldown
)

func (d Decision) String() string {
	switch d {
	case DecisionScheduled:
		return "scheduled"
	case DecisionCoalesced:
		return "coalesced"
	case DecisionCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Gate allows at most one outage notification per device per cooldown window.
// An alert already waiting on its delay absorbs further outages of the same device.
type Gate struct {
	logs      domainDevice.EmailLogRepository
	notifier  Notifier
	scheduler Scheduler
	cooldown  time.Duration
	delay     time.Duration

	mu      sync.Mutex
	pending map[domainDevice.Key]struct{}
}

// GateOption configures the gate.
type GateOption func(*Gate)

func WithCooldown(cooldown time.Duration) GateOption {
	return func(g *Gate) {
		if cooldown >= 0 {
			g.cooldown = cooldown
		}
	}
}

func WithDelay(delay time.Duration) GateOption {
	return func(g *Gate) {
		if delay >= 0 {
			g.delay = delay
		}
	}
}

func NewGate(logs domainDevice.EmailLogRepository, notifier Notifier, scheduler Scheduler, opts ...GateOption) (*Gate, error) {
	if logs == nil {
		return nil, errors.New("notification gate: nil email log repository")
	}
	if notifier == nil {
		return nil, errors.New("notification gate: nil notifier")
	}
	if scheduler == nil {
		return nil, errors.New("notification gate: nil scheduler")
	}

	g := &Gate{
		logs:      logs,
		notifier:  notifier,
		scheduler: scheduler,
		cooldown:  DefaultCooldown,
		delay:     DefaultDelay,
		pending:   make(map[domainDevice.Key]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// MaybeNotify schedules a notification unless one went out for the device within the cooldown.
// It never waits for the delivery.
func (g *Gate) MaybeNotify(ctx context.Context, alert Alert) (Decision, error) {
	key := alert.Key()
	log := logger.WithDevice(alert.Type, alert.DeviceID)

	if g.isPending(key) {
		metrics.ObserveNotification(DecisionCoalesced.String())
		log.Debug("Outage notification already pending", zap.String("event", "notification_coalesced"))
		return DecisionCoalesced, nil
	}

	lastSent, found, err := g.logs.LastSent(ctx, key)
	if err != nil {
		return DecisionCooldown, err
	}
	if found && alert.Timestamp-lastSent <= int64(g.cooldown/time.Second) {
		metrics.ObserveNotification(DecisionCooldown.String())
		log.Info("Outage notification suppressed by cooldown",
			zap.String("event", "notification_cooldown"),
			zap.Int64("last_sent", lastSent),
		)
		return DecisionCooldown, nil
	}

	g.mu.Lock()
	if _, ok := g.pending[key]; ok {
		g.mu.Unlock()
		metrics.ObserveNotification(DecisionCoalesced.String())
		return DecisionCoalesced, nil
	}
	g.pending[key] = struct{}{}
	metrics.SetPendingNotifications(len(g.pending))
	g.mu.Unlock()

	if err := g.scheduler.Schedule(g.delay, func(ctx context.Context) { g.deliver(ctx, alert) }); err != nil {
		g.clearPending(key)
		return DecisionCooldown, err
	}

	metrics.ObserveNotification(DecisionScheduled.String())
	log.Info("Outage notification scheduled",
		zap.String("event", "notification_scheduled"),
		zap.Duration("delay", g.delay),
	)
	return DecisionScheduled, nil
}

// deliver sends the alert and records it as sent whether or not the send succeeded.
func (g *Gate) deliver(ctx context.Context, alert Alert) {
	key := alert.Key()
	defer g.clearPending(key)

	if err := g.notifier.Notify(ctx, alert); err != nil {
		metrics.ObserveNotification("failed")
		logger.Error("Outage notification failed",
			zap.String("event", "notification_failed"),
			zap.String("type", alert.Type),
			zap.String("device_id", alert.DeviceID),
			zap.Error(err),
		)
	} else {
		metrics.ObserveNotification("delivered")
	}

	if err := g.logs.SetLastSent(ctx, key, alert.Timestamp); err != nil {
		logger.Error("Failed to record notification timestamp",
			zap.String("type", alert.Type),
			zap.String("device_id", alert.DeviceID),
			zap.Error(err),
		)
	}
}

func (g *Gate) isPending(key domainDevice.Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[key]
	return ok
}

func (g *Gate) clearPending(key domainDevice.Key) {
	g.mu.Lock()
	delete(g.pending, key)
	metrics.SetPendingNotifications(len(g.pending))
	g.mu.Unlock()
}
