package memory

import (
	"context"
	"sort"

	domainDevice "facility-uptime-monitor/internal/domain/device"

	"github.com/google/uuid"
)

type OutageRepository struct {
	s *Store
}

var _ domainDevice.OutageRepository = (*OutageRepository)(nil)

func (r *OutageRepository) Open(ctx context.Context, key domainDevice.Key, start int64) (*domainDevice.OutageInterval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return lockedOutages{s: r.s}.Open(ctx, key, start)
}

func (r *OutageRepository) CloseOpen(ctx context.Context, key domainDevice.Key, end int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return lockedOutages{s: r.s}.CloseOpen(ctx, key, end)
}

// lockedOutages writes intervals with the store's write lock already held.
type lockedOutages struct {
	s *Store
}

func (o lockedOutages) Open(_ context.Context, key domainDevice.Key, start int64) (*domainDevice.OutageInterval, error) {
	interval := &domainDevice.OutageInterval{
		ID:       uuid.NewString(),
		Type:     key.Type,
		DeviceID: key.DeviceID,
		Start:    start,
	}
	o.s.intervals[key] = append(o.s.intervals[key], interval)
	return copyInterval(interval), nil
}

func (o lockedOutages) CloseOpen(_ context.Context, key domainDevice.Key, end int64) (int, error) {
	closed := 0
	for _, interval := range o.s.intervals[key] {
		if interval.End == nil {
			e := end
			interval.End = &e
			closed++
		}
	}
	return closed, nil
}

func (r *OutageRepository) List(_ context.Context, key domainDevice.Key) ([]*domainDevice.OutageInterval, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return copyIntervals(r.s.intervals[key]), nil
}

func (r *OutageRepository) ListRecent(_ context.Context, key domainDevice.Key, limit int) ([]*domainDevice.OutageInterval, error) {
	r.s.mu.RLock()
	out := copyIntervals(r.s.intervals[key])
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start > out[j].Start })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyIntervals(in []*domainDevice.OutageInterval) []*domainDevice.OutageInterval {
	out := make([]*domainDevice.OutageInterval, len(in))
	for i, interval := range in {
		out[i] = copyInterval(interval)
	}
	return out
}
