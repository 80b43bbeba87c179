// Package tracker keeps the last known power/alarm state per device and detects outage transitions.
package tracker

import (
	"context"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionEnteringOutage
	TransitionLeavingOutage
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionEnteringOutage:
		return "entering_outage"
	case TransitionLeavingOutage:
		return "leaving_outage"
	default:
		return "none"
	}
}

// Report is one validated status observation.
type Report struct {
	Type       string
	DeviceID   string
	DeviceName string
	Campus     string
	Power      bool
	Alarm      bool
}

func (r Report) Key() domainDevice.Key {
	return domainDevice.Key{Type: r.Type, DeviceID: r.DeviceID}
}

// Result describes what a report did to the stored device.
type Result struct {
	Kind      TransitionKind
	FirstSeen bool
	// StateChanged is true when power or alarm differ from the stored values,
	// even if the outage classification stayed the same.
	StateChanged bool
	Device       *domainDevice.Device
	// Opened is the interval started by an outage entry.
	Opened *domainDevice.OutageInterval
	// Closed counts the intervals ended by an outage exit. Anything but 1 means the log drifted.
	Closed int
}

type Tracker struct {
	devices domainDevice.StateRepository
}

func New(devices domainDevice.StateRepository) *Tracker {
	return &Tracker{devices: devices}
}

// Apply folds the report into the stored device and opens or closes the outage
// interval in the same atomic unit, then reports the transition.
// A first report in outage counts as entering an outage.
func (t *Tracker) Apply(ctx context.Context, report Report, now int64) (*Result, error) {
	key := report.Key()
	var result Result

	err := t.devices.ApplyWithOutages(ctx, key, func(current *domainDevice.Device, outages domainDevice.OutageWriter) (*domainDevice.Device, error) {
		// A retried attempt sees the row the other writer committed; judge it from scratch.
		attempt := Result{}
		next := evaluate(current, report, now, &attempt)
		attempt.Device = next

		switch attempt.Kind {
		case TransitionEnteringOutage:
			interval, err := outages.Open(ctx, key, now)
			if err != nil {
				return nil, err
			}
			attempt.Opened = interval
		case TransitionLeavingOutage:
			closed, err := outages.CloseOpen(ctx, key, now)
			if err != nil {
				return nil, err
			}
			attempt.Closed = closed
		}

		result = attempt
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func evaluate(current *domainDevice.Device, report Report, now int64, result *Result) *domainDevice.Device {
	isOutage := domainDevice.IsOutage(report.Power, report.Alarm)

	if current == nil {
		result.FirstSeen = true
		result.StateChanged = true
		if isOutage {
			result.Kind = TransitionEnteringOutage
		}
		return &domainDevice.Device{
			Type:               report.Type,
			DeviceID:           report.DeviceID,
			DeviceName:         report.DeviceName,
			Campus:             report.Campus,
			Power:              report.Power,
			Alarm:              report.Alarm,
			Monitored:          true,
			LastStatusCheckAt:  now,
			LastStatusChangeAt: now,
		}
	}

	next := *current
	next.LastStatusCheckAt = now
	if report.DeviceName != "" {
		next.DeviceName = report.DeviceName
	}
	if report.Campus != "" {
		next.Campus = report.Campus
	}

	if current.Power == report.Power && current.Alarm == report.Alarm {
		return &next
	}

	result.StateChanged = true
	next.Power = report.Power
	next.Alarm = report.Alarm
	next.LastStatusChangeAt = now

	// power off -> alarm on is a change of state but not a new outage.
	wasOutage := current.InOutage()
	switch {
	case isOutage && !wasOutage:
		result.Kind = TransitionEnteringOutage
	case !isOutage && wasOutage:
		result.Kind = TransitionLeavingOutage
	}

	return &next
}
