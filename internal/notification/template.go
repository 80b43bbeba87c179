package notification

import (
	"bytes"
	"errors"
	"strings"
	"text/template"
	"time"
	"unicode"
)

const (
	DefaultSubjectTemplate = `{{.TypeTitle}} Outage ({{.DeviceID}})`
	DefaultBodyTemplate    = `{{.DeviceID}} was reported as being offline on {{.Time}}.`

	// Long US date with zone abbreviation, e.g. "October 14, 1983 at 1:30 PM EDT".
	timeLayout = "January 2, 2006 at 3:04 PM MST"
)

// TemplateData provides fields for rendering alert emails.
type TemplateData struct {
	Type       string
	TypeTitle  string
	DeviceID   string
	DeviceName string
	Campus     string
	Time       string
}

// Template renders the subject and body of an alert email.
type Template struct {
	subject *template.Template
	body    *template.Template
	loc     *time.Location
}

// NewTemplate parses the templates, falling back to the defaults for empty strings.
func NewTemplate(subject, body string, loc *time.Location) (*Template, error) {
	if subject == "" {
		subject = DefaultSubjectTemplate
	}
	if body == "" {
		body = DefaultBodyTemplate
	}
	if loc == nil {
		loc = time.UTC
	}

	subjectTpl, err := template.New("alert-subject").Parse(subject)
	if err != nil {
		return nil, err
	}
	bodyTpl, err := template.New("alert-body").Parse(body)
	if err != nil {
		return nil, err
	}

	return &Template{subject: subjectTpl, body: bodyTpl, loc: loc}, nil
}

func (t *Template) Data(alert Alert) TemplateData {
	return TemplateData{
		Type:       alert.Type,
		TypeTitle:  capitalize(alert.Type),
		DeviceID:   alert.DeviceID,
		DeviceName: alert.DeviceName,
		Campus:     alert.Campus,
		Time:       time.Unix(alert.Timestamp, 0).In(t.loc).Format(timeLayout),
	}
}

// Render returns subject and body for the alert.
func (t *Template) Render(alert Alert) (string, string, error) {
	if t == nil || t.subject == nil || t.body == nil {
		return "", "", errors.New("alert template: nil")
	}

	data := t.Data(alert)

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&body, data); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
