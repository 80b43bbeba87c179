package metrics

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "uptime_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	statusReports  *prometheus.CounterVec
	statusLatency  *prometheus.HistogramVec
	transitions    *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	pendingAlerts  prometheus.Gauge
	aggregationRun *prometheus.CounterVec
	aggregationDur prometheus.Histogram
	devicesByClass *prometheus.GaugeVec
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		statusReports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "status_reports_total",
				Help: "Total status reports by source and result",
			},
			[]string{"source", "result"},
		)
		statusLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "status_report_latency_seconds",
				Help:    "Status report handling latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		transitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transitions_total",
				Help: "Total outage transitions by kind",
			},
			[]string{"kind"},
		)
		notifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total outage notification decisions and deliveries by outcome",
			},
			[]string{"outcome"},
		)
		pendingAlerts = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "notifications_pending",
				Help: "Notifications scheduled but not yet delivered",
			},
		)
		aggregationRun = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "aggregation_devices_total",
				Help: "Total devices processed by aggregation runs by result",
			},
			[]string{"result"},
		)
		aggregationDur = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "aggregation_duration_seconds",
				Help:    "Aggregation run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		devicesByClass = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "devices",
				Help: "Devices by classification at the last full scan",
			},
			[]string{"class"},
		)

		prometheus.MustRegister(
			statusReports,
			statusLatency,
			transitions,
			notifications,
			pendingAlerts,
			aggregationRun,
			aggregationDur,
			devicesByClass,
		)
	})
}

// Handler exposes the default registry for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func ObserveStatusReport(source, result string, duration time.Duration) {
	if statusReports == nil {
		return
	}
	statusReports.WithLabelValues(source, result).Inc()
	statusLatency.WithLabelValues(result).Observe(duration.Seconds())
}

func ObserveTransition(kind string) {
	if transitions == nil {
		return
	}
	transitions.WithLabelValues(kind).Inc()
}

func ObserveNotification(outcome string) {
	if notifications == nil {
		return
	}
	notifications.WithLabelValues(outcome).Inc()
}

func SetPendingNotifications(n int) {
	if pendingAlerts == nil {
		return
	}
	pendingAlerts.Set(float64(n))
}

func ObserveAggregation(succeeded, failed int, duration time.Duration) {
	if aggregationRun == nil {
		return
	}
	aggregationRun.WithLabelValues(ResultSuccess).Add(float64(succeeded))
	aggregationRun.WithLabelValues(ResultError).Add(float64(failed))
	aggregationDur.Observe(duration.Seconds())
}

func SetDeviceClasses(counts map[string]int) {
	if devicesByClass == nil {
		return
	}
	devicesByClass.Reset()
	for class, n := range counts {
		devicesByClass.WithLabelValues(class).Set(float64(n))
	}
}
