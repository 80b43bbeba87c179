package memory

import (
	"context"
	"sort"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

type DeviceRepository struct {
	s *Store
}

var _ domainDevice.StateRepository = (*DeviceRepository)(nil)

// Apply runs fn and the write under the store's write lock.
func (r *DeviceRepository) Apply(ctx context.Context, key domainDevice.Key, fn domainDevice.ApplyFunc) error {
	return r.ApplyWithOutages(ctx, key, func(current *domainDevice.Device, _ domainDevice.OutageWriter) (*domainDevice.Device, error) {
		return fn(current)
	})
}

// ApplyWithOutages runs fn, its interval writes and the device write under the
// store's write lock. Interval writes made before fn fails are not undone.
func (r *DeviceRepository) ApplyWithOutages(_ context.Context, key domainDevice.Key, fn domainDevice.ApplyOutagesFunc) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, exists := r.s.devices[key]
	var current *domainDevice.Device
	if exists {
		current = copyDevice(stored)
	}

	next, err := fn(current, lockedOutages{s: r.s})
	if err != nil || next == nil {
		return err
	}

	now := time.Now()
	write := copyDevice(next)
	write.UpdatedAt = now
	if exists {
		write.CreatedAt = stored.CreatedAt
		write.CurrentMonthUptime = stored.CurrentMonthUptime
	} else {
		write.CreatedAt = now
	}
	r.s.devices[key] = write
	return nil
}

func (r *DeviceRepository) Get(_ context.Context, key domainDevice.Key) (*domainDevice.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.devices[key]
	if !ok {
		return nil, domainDevice.ErrDeviceNotFound
	}
	return copyDevice(d), nil
}

func (r *DeviceRepository) List(_ context.Context) ([]*domainDevice.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domainDevice.Device, 0, len(r.s.devices))
	for _, d := range r.s.devices {
		out = append(out, copyDevice(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out, nil
}

func (r *DeviceRepository) UpdateUptime(_ context.Context, key domainDevice.Key, summary domainDevice.UptimeSummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.devices[key]
	if !ok {
		return domainDevice.ErrDeviceNotFound
	}
	d.CurrentMonthUptime = &summary
	return nil
}

func (r *DeviceRepository) SetMonitored(_ context.Context, key domainDevice.Key, monitored bool) (*domainDevice.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.devices[key]
	if !ok {
		return nil, domainDevice.ErrDeviceNotFound
	}
	d.Monitored = monitored
	d.UpdatedAt = time.Now()
	return copyDevice(d), nil
}
