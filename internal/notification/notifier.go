package notification

import (
	"context"
	"errors"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/pkg/utils"

	"go.uber.org/zap"
)

// EmailNotifier resolves the campus recipients and sends one email per alert.
type EmailNotifier struct {
	recipients    domainDevice.RecipientRepository
	mailer        Mailer
	template      *Template
	from          string
	defaultCampus string
}

// EmailOption configures the email notifier.
type EmailOption func(*EmailNotifier)

func WithTemplate(tpl *Template) EmailOption {
	return func(n *EmailNotifier) {
		if tpl != nil {
			n.template = tpl
		}
	}
}

func WithFrom(from string) EmailOption {
	return func(n *EmailNotifier) {
		if from != "" {
			n.from = from
		}
	}
}

// WithDefaultCampus sets the campus used for alerts that carry none.
func WithDefaultCampus(campus string) EmailOption {
	return func(n *EmailNotifier) {
		n.defaultCampus = campus
	}
}

func NewEmailNotifier(recipients domainDevice.RecipientRepository, mailer Mailer, opts ...EmailOption) (*EmailNotifier, error) {
	if recipients == nil {
		return nil, errors.New("email notifier: nil recipient repository")
	}
	if mailer == nil {
		return nil, errors.New("email notifier: nil mailer")
	}

	n := &EmailNotifier{
		recipients: recipients,
		mailer:     mailer,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.template == nil {
		tpl, err := NewTemplate("", "", nil)
		if err != nil {
			return nil, err
		}
		n.template = tpl
	}
	return n, nil
}

// Notify sends the alert. An empty recipient list is not an error.
func (n *EmailNotifier) Notify(ctx context.Context, alert Alert) error {
	campus := alert.Campus
	if campus == "" {
		campus = n.defaultCampus
	}

	addresses, err := n.recipients.ListAddresses(ctx, campus)
	if err != nil {
		return &NotifyError{Campus: campus, Err: err}
	}

	to := make([]string, 0, len(addresses))
	for _, address := range addresses {
		clean, err := utils.ValidateAndSanitizeEmail(address)
		if err != nil {
			logger.Warn("Skipping invalid alert recipient",
				zap.String("campus", campus),
				zap.String("address", address),
			)
			continue
		}
		to = append(to, clean)
	}

	if len(to) == 0 {
		logger.Info("No alert recipients configured",
			zap.String("event", "notification_skipped"),
			zap.String("campus", campus),
			zap.String("type", alert.Type),
			zap.String("device_id", alert.DeviceID),
		)
		return nil
	}

	subject, body, err := n.template.Render(alert)
	if err != nil {
		return &NotifyError{Campus: campus, Err: err}
	}

	if err := n.mailer.Send(ctx, Message{From: n.from, To: to, Subject: subject, Body: body}); err != nil {
		return &NotifyError{Campus: campus, Err: err}
	}

	logger.Info("Outage notification sent",
		zap.String("event", "notification_sent"),
		zap.String("campus", campus),
		zap.String("type", alert.Type),
		zap.String("device_id", alert.DeviceID),
		zap.Int("recipients", len(to)),
	)
	return nil
}
