package uptime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/observability/metrics"

	"go.uber.org/zap"
)

// RunResult summarises one aggregation run.
type RunResult struct {
	Period    string
	Window    Window
	Succeeded int
	Failed    int
	Skipped   bool
	Classes   map[domainDevice.Classification]int
}

// Aggregator recomputes the current month's uptime for every device.
type Aggregator struct {
	devices  domainDevice.StateRepository
	outages  domainDevice.OutageRepository
	uptime   domainDevice.UptimeRepository
	loc      *time.Location
	now      func() time.Time
	running  atomic.Bool
	inflight sync.WaitGroup
}

// AggregatorOption configures the aggregator.
type AggregatorOption func(*Aggregator)

// WithLocation sets the zone whose calendar defines month boundaries.
func WithLocation(loc *time.Location) AggregatorOption {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAggregator(devices domainDevice.StateRepository, outages domainDevice.OutageRepository, uptime domainDevice.UptimeRepository, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		devices: devices,
		outages: outages,
		uptime:  uptime,
		loc:     time.Local,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run aggregates the calendar month containing the current time.
func (a *Aggregator) Run(ctx context.Context) (*RunResult, error) {
	now := a.now()
	return a.RunWindow(ctx, MonthWindow(now, a.loc), Period(now, a.loc))
}

// Trigger starts a run in the background and returns immediately.
func (a *Aggregator) Trigger(source string) {
	logger.Info("Uptime aggregation triggered", zap.String("source", source))
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		if _, err := a.Run(context.Background()); err != nil {
			logger.Error("Uptime aggregation failed", zap.String("source", source), zap.Error(err))
		}
	}()
}

// Wait blocks until triggered runs have finished.
func (a *Aggregator) Wait() {
	a.inflight.Wait()
}

// RunWindow aggregates an explicit window under the given period key. A run that starts
// while another is in progress is skipped. A failing device is logged and the run moves on.
func (a *Aggregator) RunWindow(ctx context.Context, w Window, period string) (*RunResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		logger.Warn("Uptime aggregation already running, skipping trigger")
		return &RunResult{Period: period, Window: w, Skipped: true}, nil
	}
	defer a.running.Store(false)

	started := time.Now()
	result := &RunResult{
		Period:  period,
		Window:  w,
		Classes: make(map[domainDevice.Classification]int),
	}

	devices, err := a.devices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	for _, device := range devices {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Classes[domainDevice.Classify(device)]++

		if err := a.aggregateDevice(ctx, device.Key(), w, period); err != nil {
			result.Failed++
			logger.Error("Failed to aggregate device uptime",
				zap.String("type", device.Type),
				zap.String("device_id", device.DeviceID),
				zap.Error(err),
			)
			continue
		}
		result.Succeeded++
	}

	classes := make(map[string]int, len(result.Classes))
	for class, n := range result.Classes {
		classes[string(class)] = n
	}
	metrics.SetDeviceClasses(classes)
	metrics.ObserveAggregation(result.Succeeded, result.Failed, time.Since(started))

	logger.Info("Uptime aggregation completed",
		zap.String("event", "uptime_aggregated"),
		zap.String("period", period),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(started)),
	)

	if result.Failed > 0 && result.Succeeded == 0 {
		return result, errors.New("uptime aggregation failed for every device")
	}
	return result, nil
}

func (a *Aggregator) aggregateDevice(ctx context.Context, key domainDevice.Key, w Window, period string) error {
	intervals, err := a.outages.List(ctx, key)
	if err != nil {
		return err
	}

	summary := Compute(intervals, w)

	if err := a.devices.UpdateUptime(ctx, key, summary); err != nil {
		return err
	}
	return a.uptime.Save(ctx, &domainDevice.UptimeSnapshot{
		Type:         key.Type,
		DeviceID:     key.DeviceID,
		Period:       period,
		Summary:      summary,
		CalculatedAt: w.End,
	})
}
