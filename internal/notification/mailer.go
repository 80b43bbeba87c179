// Package notification decides when an outage alert goes out and delivers it by email.
package notification

import (
	"context"
	"fmt"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

//go:generate mockgen -destination=mocks/mock_notification.go -package=mocks facility-uptime-monitor/internal/notification Mailer,Notifier

// Message is one email to a list of recipients.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer delivers a message. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Alert is an outage that passed the gate.
type Alert struct {
	Type       string
	DeviceID   string
	DeviceName string
	Campus     string
	Timestamp  int64
}

func (a Alert) Key() domainDevice.Key {
	return domainDevice.Key{Type: a.Type, DeviceID: a.DeviceID}
}

// Notifier turns an alert into a delivered message.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifyError is a delivery failure. It is logged, never returned to ingestion.
type NotifyError struct {
	Campus string
	Err    error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify campus %q: %v", e.Campus, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}
