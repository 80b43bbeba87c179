package memory

import (
	"context"
	"sort"
	"strings"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

type EmailLogRepository struct {
	s *Store
}

var _ domainDevice.EmailLogRepository = (*EmailLogRepository)(nil)

func (r *EmailLogRepository) LastSent(_ context.Context, key domainDevice.Key) (int64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ts, ok := r.s.emailLog[key]
	return ts, ok, nil
}

func (r *EmailLogRepository) SetLastSent(_ context.Context, key domainDevice.Key, ts int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.emailLog[key] = ts
	return nil
}

type UptimeRepository struct {
	s *Store
}

var _ domainDevice.UptimeRepository = (*UptimeRepository)(nil)

func (r *UptimeRepository) Save(_ context.Context, snapshot *domainDevice.UptimeSnapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := domainDevice.Key{Type: snapshot.Type, DeviceID: snapshot.DeviceID}
	periods, ok := r.s.snapshots[key]
	if !ok {
		periods = make(map[string]*domainDevice.UptimeSnapshot)
		r.s.snapshots[key] = periods
	}
	c := *snapshot
	periods[snapshot.Period] = &c
	return nil
}

// List returns snapshots newest period first.
func (r *UptimeRepository) List(_ context.Context, key domainDevice.Key) ([]*domainDevice.UptimeSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domainDevice.UptimeSnapshot, 0, len(r.s.snapshots[key]))
	for _, snapshot := range r.s.snapshots[key] {
		c := *snapshot
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

type RecipientRepository struct {
	s *Store
}

var _ domainDevice.RecipientRepository = (*RecipientRepository)(nil)

func (r *RecipientRepository) ListAddresses(_ context.Context, campus string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return append([]string(nil), r.s.recipients[campus]...), nil
}

func (r *RecipientRepository) AddAddress(_ context.Context, campus, address string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.recipients[campus] {
		if strings.EqualFold(existing, address) {
			return nil
		}
	}
	r.s.recipients[campus] = append(r.s.recipients[campus], address)
	sort.Strings(r.s.recipients[campus])
	return nil
}
