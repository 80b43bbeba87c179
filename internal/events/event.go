// Package events fans device status changes out to live subscribers and Kafka.
package events

import (
	"context"
	"errors"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

// Event is a device status change as seen by dashboards and downstream consumers.
type Event struct {
	Type           string                      `json:"type"`
	DeviceID       string                      `json:"deviceID"`
	DeviceName     string                      `json:"device_name,omitempty"`
	Campus         string                      `json:"campus,omitempty"`
	Power          bool                        `json:"power"`
	Alarm          bool                        `json:"alarm"`
	Classification domainDevice.Classification `json:"classification"`
	Transition     string                      `json:"transition"`
	FirstSeen      bool                        `json:"first_seen"`
	Timestamp      int64                       `json:"timestamp"`
}

func (e Event) Key() string {
	return e.Type + "/" + e.DeviceID
}

// NewEvent builds the event for the stored device after a report.
func NewEvent(d *domainDevice.Device, transition string, firstSeen bool) Event {
	return Event{
		Type:           d.Type,
		DeviceID:       d.DeviceID,
		DeviceName:     d.DeviceName,
		Campus:         d.Campus,
		Power:          d.Power,
		Alarm:          d.Alarm,
		Classification: domainDevice.Classify(d),
		Transition:     transition,
		FirstSeen:      firstSeen,
		Timestamp:      d.LastStatusChangeAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MultiPublisher forwards events to every publisher and joins their errors.
type MultiPublisher struct {
	publishers []Publisher
}

func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (m *MultiPublisher) Publish(ctx context.Context, event Event) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, publisher := range m.publishers {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
