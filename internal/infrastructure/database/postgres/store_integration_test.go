package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/tracker"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := Open(dsn, "test")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func uniqueKey(t *testing.T) domainDevice.Key {
	return domainDevice.Key{Type: "elevator", DeviceID: fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())}
}

func TestDeviceRepositoryApplyCreatesThenUpdates(t *testing.T) {
	db := openTestDB(t)
	repo := NewDeviceRepository(db)
	ctx := context.Background()
	key := uniqueKey(t)

	err := repo.Apply(ctx, key, func(current *domainDevice.Device) (*domainDevice.Device, error) {
		if current != nil {
			t.Fatalf("expected no stored device, got %+v", current)
		}
		return &domainDevice.Device{
			Type: key.Type, DeviceID: key.DeviceID, Monitored: true,
			LastStatusCheckAt: 1000, LastStatusChangeAt: 1000,
		}, nil
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = repo.Apply(ctx, key, func(current *domainDevice.Device) (*domainDevice.Device, error) {
		if current == nil {
			t.Fatal("expected stored device on second apply")
		}
		next := *current
		next.Power = true
		next.LastStatusCheckAt = 2000
		next.LastStatusChangeAt = 2000
		return &next, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Power || got.LastStatusChangeAt != 2000 || !got.Monitored {
		t.Fatalf("unexpected device after update: %+v", got)
	}
}

func TestOutageRepositoryCloseOpenClosesAll(t *testing.T) {
	db := openTestDB(t)
	repo := NewOutageRepository(db)
	ctx := context.Background()
	key := uniqueKey(t)

	for _, start := range []int64{100, 200} {
		if _, err := repo.Open(ctx, key, start); err != nil {
			t.Fatalf("open: %v", err)
		}
	}

	closed, err := repo.CloseOpen(ctx, key, 300)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed != 2 {
		t.Fatalf("expected 2 closed intervals, got %d", closed)
	}

	recent, err := repo.ListRecent(ctx, key, 1)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Start != 200 || recent[0].End == nil || *recent[0].End != 300 {
		t.Fatalf("unexpected recent intervals: %+v", recent)
	}
}

func TestEmailLogRepositoryOverwrites(t *testing.T) {
	db := openTestDB(t)
	repo := NewEmailLogRepository(db)
	ctx := context.Background()
	key := uniqueKey(t)

	if _, ok, err := repo.LastSent(ctx, key); err != nil || ok {
		t.Fatalf("expected no log entry, ok=%v err=%v", ok, err)
	}
	for _, ts := range []int64{10, 20} {
		if err := repo.SetLastSent(ctx, key, ts); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	ts, ok, err := repo.LastSent(ctx, key)
	if err != nil || !ok || ts != 20 {
		t.Fatalf("expected last sent 20, got %d ok=%v err=%v", ts, ok, err)
	}
}

// Reports from several instances share no in-process lock; only the row lock and
// the create retry keep the interval log consistent.
func TestConcurrentFirstReportsOpenOneInterval(t *testing.T) {
	db := openTestDB(t)
	devices := NewDeviceRepository(db)
	outages := NewOutageRepository(db)
	ctx := context.Background()
	key := uniqueKey(t)

	const instances = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		entered int
		errs    []error
	)
	for i := 0; i < instances; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tracker.New(devices).Apply(ctx, tracker.Report{Type: key.Type, DeviceID: key.DeviceID}, 1000)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.Kind == tracker.TransitionEnteringOutage {
				entered++
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("apply errors: %v", errs)
	}
	if entered != 1 {
		t.Fatalf("expected exactly one outage entry, got %d", entered)
	}
	intervals, err := outages.List(ctx, key)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(intervals) != 1 || intervals[0].End != nil {
		t.Fatalf("expected one open interval, got %+v", intervals)
	}
}

func TestApplyWithOutagesRollsBackIntervalOnError(t *testing.T) {
	db := openTestDB(t)
	devices := NewDeviceRepository(db)
	outages := NewOutageRepository(db)
	ctx := context.Background()
	key := uniqueKey(t)
	boom := errors.New("boom")

	err := devices.ApplyWithOutages(ctx, key, func(_ *domainDevice.Device, w domainDevice.OutageWriter) (*domainDevice.Device, error) {
		if _, err := w.Open(ctx, key, 1000); err != nil {
			return nil, err
		}
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	intervals, err := outages.List(ctx, key)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(intervals) != 0 {
		t.Fatalf("expected interval to roll back with the device write, got %+v", intervals)
	}
}
