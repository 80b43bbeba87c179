package ingestion

import (
	"context"
	"errors"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/events"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/notification"
	"facility-uptime-monitor/internal/observability/metrics"
	"facility-uptime-monitor/internal/tracker"
	"facility-uptime-monitor/pkg/keylock"

	"go.uber.org/zap"
)

// Sources label where a report arrived from in logs and metrics.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// NotificationGate is the part of the notification gate ingestion depends on.
type NotificationGate interface {
	MaybeNotify(ctx context.Context, alert notification.Alert) (notification.Decision, error)
}

// Outcome is what one report did.
type Outcome struct {
	Device       *domainDevice.Device `json:"device"`
	Transition   string               `json:"transition"`
	FirstSeen    bool                 `json:"first_seen"`
	Notification string               `json:"notification,omitempty"`
}

// Service turns status reports into device state, outage intervals and alerts.
type Service struct {
	tracker   *tracker.Tracker
	gate      NotificationGate
	guard     Guard
	publisher events.Publisher
	locks     *keylock.Locker
	metrics   *MetricsTracker
	now       func() time.Time
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

func WithGuard(guard Guard) ServiceOption {
	return func(s *Service) {
		if guard != nil {
			s.guard = guard
		}
	}
}

func WithPublisher(publisher events.Publisher) ServiceOption {
	return func(s *Service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMetrics(m *MetricsTracker) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewService(tr *tracker.Tracker, gate NotificationGate, opts ...ServiceOption) (*Service, error) {
	if tr == nil {
		return nil, errors.New("ingestion service: nil tracker")
	}
	if gate == nil {
		return nil, errors.New("ingestion service: nil notification gate")
	}

	s := &Service{
		tracker: tr,
		gate:    gate,
		guard:   NewAPIKeyGuard(nil, "", false),
		locks:   keylock.New(),
		metrics: NewMetricsTracker(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Metrics() *MetricsTracker {
	return s.metrics
}

// Prepare validates a decoded message and authorizes it. headerKey overrides an absent body key.
func (s *Service) Prepare(msg *StatusReportMessage, headerKey string) (tracker.Report, error) {
	if err := ValidateStatusReport(msg); err != nil {
		return tracker.Report{}, err
	}

	apiKey := msg.APIKey
	if apiKey == "" {
		apiKey = headerKey
	}
	campus, err := s.guard.Authorize(apiKey, msg.DeviceName)
	if err != nil {
		return tracker.Report{}, err
	}

	return tracker.Report{
		Type:       msg.Type,
		DeviceID:   msg.DeviceID,
		DeviceName: msg.DeviceName,
		Campus:     campus,
		Power:      *msg.Power,
		Alarm:      *msg.Alarm,
	}, nil
}

// HandlePayload decodes, validates and ingests a raw payload.
func (s *Service) HandlePayload(ctx context.Context, source string, payload []byte, headerKey string) (*Outcome, error) {
	s.metrics.Update(func(m *IngestMetrics) { m.ReportsReceived++ })

	msg, err := ParseStatusReport(payload)
	if err == nil {
		var report tracker.Report
		report, err = s.Prepare(msg, headerKey)
		if err == nil {
			return s.Ingest(ctx, source, report)
		}
	}

	s.metrics.Update(func(m *IngestMetrics) { m.ReportsRejected++ })
	metrics.ObserveStatusReport(source, "rejected", 0)
	return nil, err
}

// Ingest applies one validated report. Same-device reports are serialized; the
// notification is only scheduled here, never awaited.
func (s *Service) Ingest(ctx context.Context, source string, report tracker.Report) (*Outcome, error) {
	started := time.Now()
	now := s.now().Unix()
	key := report.Key()
	log := logger.WithDevice(key.Type, key.DeviceID)

	unlock := s.locks.Lock(key.String())
	result, trigger, err := s.applyLocked(ctx, report, now)
	unlock()

	if err != nil {
		s.metrics.Update(func(m *IngestMetrics) { m.ReportsFailed++ })
		metrics.ObserveStatusReport(source, metrics.ResultError, time.Since(started))
		log.Error("Failed to ingest status report", zap.String("source", source), zap.Error(err))
		return nil, err
	}

	outcome := &Outcome{
		Device:     result.Device,
		Transition: result.Kind.String(),
		FirstSeen:  result.FirstSeen,
	}

	if trigger {
		decision, err := s.gate.MaybeNotify(ctx, notification.Alert{
			Type:       key.Type,
			DeviceID:   key.DeviceID,
			DeviceName: result.Device.DeviceName,
			Campus:     result.Device.Campus,
			Timestamp:  now,
		})
		if err != nil {
			s.metrics.Update(func(m *IngestMetrics) { m.ReportsFailed++ })
			metrics.ObserveStatusReport(source, metrics.ResultError, time.Since(started))
			log.Error("Failed to evaluate outage notification", zap.Error(err))
			return nil, err
		}
		outcome.Notification = decision.String()
		if decision == notification.DecisionScheduled {
			s.metrics.Update(func(m *IngestMetrics) { m.NotificationsScheduled++ })
		}
	}

	if result.StateChanged && s.publisher != nil {
		event := events.NewEvent(result.Device, result.Kind.String(), result.FirstSeen)
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Warn("Failed to publish status event", zap.Error(err))
		}
	}

	s.metrics.RecordProcessed(time.Since(started))
	metrics.ObserveStatusReport(source, metrics.ResultSuccess, time.Since(started))
	return outcome, nil
}

func (s *Service) applyLocked(ctx context.Context, report tracker.Report, now int64) (*tracker.Result, bool, error) {
	key := report.Key()
	log := logger.WithDevice(key.Type, key.DeviceID)

	result, err := s.tracker.Apply(ctx, report, now)
	if err != nil {
		return nil, false, err
	}

	if result.FirstSeen {
		log.Info("Device registered", zap.String("event", "device_created"), zap.String("campus", result.Device.Campus))
	}
	if result.Kind != tracker.TransitionNone {
		metrics.ObserveTransition(result.Kind.String())
	}
	if !result.StateChanged {
		log.Debug("Status check recorded", zap.Int64("checked_at", now))
	}

	switch result.Kind {
	case tracker.TransitionEnteringOutage:
		s.metrics.Update(func(m *IngestMetrics) { m.OutagesOpened++ })
		log.Info("Outage opened",
			zap.String("event", "outage_opened"),
			zap.String("interval_id", result.Opened.ID),
			zap.Int64("start", now),
		)
		return result, true, nil

	case tracker.TransitionLeavingOutage:
		s.metrics.Update(func(m *IngestMetrics) { m.OutagesClosed += int64(result.Closed) })
		if result.Closed != 1 {
			log.Warn("Unexpected number of open outage intervals closed", zap.Int("closed", result.Closed))
		}
		log.Info("Outage closed", zap.String("event", "outage_closed"), zap.Int64("end", now))
	}

	return result, false, nil
}
