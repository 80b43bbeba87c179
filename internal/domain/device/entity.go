package device

import (
	"strings"
	"time"
)

// Key identifies a device. Device ids are only unique within their type.
type Key struct {
	Type     string
	DeviceID string
}

func (k Key) String() string {
	return k.Type + "/" + k.DeviceID
}

// Device is the last known state of a facility device.
type Device struct {
	Type               string
	DeviceID           string
	DeviceName         string
	Campus             string
	Power              bool
	Alarm              bool
	Monitored          bool
	LastStatusCheckAt  int64
	LastStatusChangeAt int64
	CurrentMonthUptime *UptimeSummary
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (d *Device) Key() Key {
	return Key{Type: d.Type, DeviceID: d.DeviceID}
}

// InOutage reports the accounting state, which ignores the monitored flag.
func (d *Device) InOutage() bool {
	return IsOutage(d.Power, d.Alarm)
}

func IsOutage(power, alarm bool) bool {
	return !power || alarm
}

// Classification is the display state of a device.
type Classification string

const (
	ClassOnline      Classification = "online"
	ClassOffline     Classification = "offline"
	ClassUnmonitored Classification = "unmonitored"
)

// Classify derives the display state. Unmonitored devices are never online.
func Classify(d *Device) Classification {
	switch {
	case !d.Monitored:
		return ClassUnmonitored
	case d.Power && !d.Alarm:
		return ClassOnline
	default:
		return ClassOffline
	}
}

// NormalizeType folds "Elevators" and "elevator" to the same group name.
func NormalizeType(deviceType string) string {
	t := strings.ToLower(strings.TrimSpace(deviceType))
	if len(t) > 1 && strings.HasSuffix(t, "s") {
		t = strings.TrimSuffix(t, "s")
	}
	return t
}

// UptimeSummary is the uptime of one device over a window, rounded to 2 decimals.
type UptimeSummary struct {
	TotalHours        float64 `json:"total_hours"`
	TotalOfflineHours float64 `json:"total_offline_hours"`
	UptimeHours       float64 `json:"uptime_hours"`
	UptimePercentage  float64 `json:"uptime_percentage"`
}

// OutageInterval is a span in outage. End is nil while the outage is ongoing.
type OutageInterval struct {
	ID       string
	Type     string
	DeviceID string
	Start    int64
	End      *int64
}

func (o *OutageInterval) IsOpen() bool {
	return o.End == nil
}

// UptimeSnapshot is the archived result of one aggregation run for a month.
type UptimeSnapshot struct {
	Type         string
	DeviceID     string
	Period       string
	Summary      UptimeSummary
	CalculatedAt int64
}
