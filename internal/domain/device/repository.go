package device

import "context"

// ApplyFunc receives the stored device, or nil when none exists, and returns the
// record to write. Returning a nil device skips the write.
type ApplyFunc func(current *Device) (*Device, error)

// ApplyOutagesFunc is an ApplyFunc that may also change the device's interval log.
// The outage writes and the device write commit or roll back together.
type ApplyOutagesFunc func(current *Device, outages OutageWriter) (*Device, error)

// StateRepository persists device records. Apply must run fn and the write as one
// atomic unit per key. fn may be called more than once when a concurrent create
// forces a retry, so it must not keep state between calls.
type StateRepository interface {
	Apply(ctx context.Context, key Key, fn ApplyFunc) error
	ApplyWithOutages(ctx context.Context, key Key, fn ApplyOutagesFunc) error
	Get(ctx context.Context, key Key) (*Device, error)
	List(ctx context.Context) ([]*Device, error)
	UpdateUptime(ctx context.Context, key Key, summary UptimeSummary) error
	SetMonitored(ctx context.Context, key Key, monitored bool) (*Device, error)
}

// OutageWriter opens and closes intervals.
type OutageWriter interface {
	Open(ctx context.Context, key Key, start int64) (*OutageInterval, error)
	// CloseOpen sets end on every open interval of the device and returns how many it closed.
	CloseOpen(ctx context.Context, key Key, end int64) (int, error)
}

// OutageRepository is the append-only interval log.
type OutageRepository interface {
	OutageWriter
	List(ctx context.Context, key Key) ([]*OutageInterval, error)
	// ListRecent returns up to limit intervals, newest start first.
	ListRecent(ctx context.Context, key Key, limit int) ([]*OutageInterval, error)
}

type EmailLogRepository interface {
	LastSent(ctx context.Context, key Key) (int64, bool, error)
	SetLastSent(ctx context.Context, key Key, ts int64) error
}

type UptimeRepository interface {
	Save(ctx context.Context, snapshot *UptimeSnapshot) error
	List(ctx context.Context, key Key) ([]*UptimeSnapshot, error)
}

// RecipientRepository resolves alert addresses for a campus.
type RecipientRepository interface {
	ListAddresses(ctx context.Context, campus string) ([]string, error)
	AddAddress(ctx context.Context, campus, address string) error
}
