package uptime

import (
	"context"
	"errors"
	"testing"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/infrastructure/memory"
)

type failingOutages struct {
	domainDevice.OutageRepository
	failFor string
}

func (f failingOutages) List(ctx context.Context, key domainDevice.Key) ([]*domainDevice.OutageInterval, error) {
	if key.DeviceID == f.failFor {
		return nil, errors.New("read timeout")
	}
	return f.OutageRepository.List(ctx, key)
}

func seedDevice(t *testing.T, store *memory.Store, key domainDevice.Key, power bool) {
	t.Helper()
	err := store.Devices().Apply(context.Background(), key, func(*domainDevice.Device) (*domainDevice.Device, error) {
		return &domainDevice.Device{Type: key.Type, DeviceID: key.DeviceID, Power: power, Monitored: true}, nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestAggregatorRunWindowWritesSnapshots(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	key := domainDevice.Key{Type: "elevator", DeviceID: "E1"}

	seedDevice(t, store, key, true)
	if _, err := store.Outages().Open(ctx, key, 1000); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Outages().CloseOpen(ctx, key, 2000); err != nil {
		t.Fatalf("close: %v", err)
	}

	agg := NewAggregator(store.Devices(), store.Outages(), store.Uptime())
	result, err := agg.RunWindow(ctx, Window{Start: 0, End: 5000}, "1970-01")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	device, _ := store.Devices().Get(ctx, key)
	if device.CurrentMonthUptime == nil || device.CurrentMonthUptime.UptimePercentage != 80 {
		t.Fatalf("expected 80%% uptime on device, got %+v", device.CurrentMonthUptime)
	}

	snapshots, _ := store.Uptime().List(ctx, key)
	if len(snapshots) != 1 || snapshots[0].Period != "1970-01" || snapshots[0].CalculatedAt != 5000 {
		t.Fatalf("unexpected snapshots %+v", snapshots)
	}

	// A later run in the same month overwrites the snapshot.
	if _, err := agg.RunWindow(ctx, Window{Start: 0, End: 10000}, "1970-01"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	snapshots, _ = store.Uptime().List(ctx, key)
	if len(snapshots) != 1 || snapshots[0].Summary.UptimePercentage != 90 {
		t.Fatalf("expected single refreshed snapshot at 90%%, got %+v", snapshots)
	}
}

func TestAggregatorContinuesAfterDeviceFailure(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	seedDevice(t, store, domainDevice.Key{Type: "elevator", DeviceID: "E1"}, true)
	seedDevice(t, store, domainDevice.Key{Type: "elevator", DeviceID: "E2"}, false)

	agg := NewAggregator(store.Devices(), failingOutages{OutageRepository: store.Outages(), failFor: "E1"}, store.Uptime())
	result, err := agg.RunWindow(ctx, Window{Start: 0, End: 3600}, "1970-01")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("expected one success and one failure, got %+v", result)
	}
	if result.Classes[domainDevice.ClassOnline] != 1 || result.Classes[domainDevice.ClassOffline] != 1 {
		t.Fatalf("unexpected classification counts %v", result.Classes)
	}
}

func TestAggregatorSkipsOverlappingRun(t *testing.T) {
	store := memory.NewStore()
	agg := NewAggregator(store.Devices(), store.Outages(), store.Uptime())
	agg.running.Store(true)

	result, err := agg.RunWindow(context.Background(), Window{Start: 0, End: 1}, "1970-01")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected overlapping run to be skipped")
	}
}

func TestAggregatorRunUsesClockAndLocation(t *testing.T) {
	store := memory.NewStore()
	key := domainDevice.Key{Type: "escalator", DeviceID: "S1"}
	seedDevice(t, store, key, true)

	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	agg := NewAggregator(store.Devices(), store.Outages(), store.Uptime(),
		WithLocation(time.UTC),
		WithClock(func() time.Time { return now }),
	)

	result, err := agg.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Period != "2026-07" {
		t.Fatalf("expected period 2026-07, got %s", result.Period)
	}
	if result.Window.Start != time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).Unix() {
		t.Fatalf("unexpected window start %d", result.Window.Start)
	}

	device, _ := store.Devices().Get(context.Background(), key)
	if device.CurrentMonthUptime.UptimePercentage != 100 || device.CurrentMonthUptime.TotalHours != 348 {
		t.Fatalf("unexpected uptime %+v", device.CurrentMonthUptime)
	}
}
