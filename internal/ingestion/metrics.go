package ingestion

import (
	"sync"
	"time"
)

// IngestMetrics tracks ingestion counters since process start.
type IngestMetrics struct {
	ReportsReceived        int64         `json:"reports_received"`
	ReportsProcessed       int64         `json:"reports_processed"`
	ReportsRejected        int64         `json:"reports_rejected"`
	ReportsFailed          int64         `json:"reports_failed"`
	ReportsDropped         int64         `json:"reports_dropped"`
	OutagesOpened          int64         `json:"outages_opened"`
	OutagesClosed          int64         `json:"outages_closed"`
	NotificationsScheduled int64         `json:"notifications_scheduled"`
	LastProcessedAt        time.Time     `json:"last_processed_at"`
	AverageProcessingTime  time.Duration `json:"average_processing_time"`
	QueueDepth             int           `json:"queue_depth"`
}

// MetricsTracker provides a goroutine-safe wrapper around IngestMetrics.
type MetricsTracker struct {
	mu        sync.RWMutex
	metrics   IngestMetrics
	listeners []func(IngestMetrics)
}

func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{}
}

// Update applies a mutation in a thread-safe way.
func (t *MetricsTracker) Update(fn func(*IngestMetrics)) {
	if t == nil || fn == nil {
		return
	}

	t.mu.Lock()
	fn(&t.metrics)
	snapshot := t.metrics
	listeners := append(([]func(IngestMetrics))(nil), t.listeners...)
	t.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

// RecordProcessed folds one successful report into the running average.
func (t *MetricsTracker) RecordProcessed(elapsed time.Duration) {
	t.Update(func(m *IngestMetrics) {
		m.ReportsProcessed++
		m.LastProcessedAt = time.Now()
		if m.ReportsProcessed == 1 {
			m.AverageProcessingTime = elapsed
			return
		}
		m.AverageProcessingTime += (elapsed - m.AverageProcessingTime) / time.Duration(m.ReportsProcessed)
	})
}

// Snapshot returns a copy of the current metrics.
func (t *MetricsTracker) Snapshot() IngestMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}

func (t *MetricsTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = IngestMetrics{}
}

// OnChange registers a callback invoked whenever metrics are updated.
func (t *MetricsTracker) OnChange(listener func(IngestMetrics)) {
	if listener == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}
