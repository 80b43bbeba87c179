package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestPostmarkMailerPayload(t *testing.T) {
	payloadCh := make(chan postmarkPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Postmark-Server-Token") != "token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload postmarkPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mailer, err := NewPostmarkMailer("token-1", WithPostmarkURL(server.URL))
	if err != nil {
		t.Fatalf("new postmark mailer: %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		From:    "Uptime <uptime@example.com>",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Elevator Outage (E1)",
		Body:    "E1 was reported as being offline.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	payload := <-payloadCh
	if payload.To != "a@example.com,b@example.com" {
		t.Fatalf("unexpected recipients %q", payload.To)
	}
	if payload.Subject != "Elevator Outage (E1)" || payload.MessageStream != "outbound" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPostmarkMailerReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	defer server.Close()

	mailer, _ := NewPostmarkMailer("token-1", WithPostmarkURL(server.URL))
	err := mailer.Send(context.Background(), Message{From: "a@example.com", To: []string{"b@example.com"}})
	if err == nil || !strings.Contains(err.Error(), "Invalid email request") {
		t.Fatalf("expected API error message, got %v", err)
	}
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	mailer, err := NewSMTPMailer("smtp.example.com", 587, "", "")
	if err != nil {
		t.Fatalf("new smtp mailer: %v", err)
	}

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	mailer.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err = mailer.Send(context.Background(), Message{
		From:    "Uptime <uptime@example.com>",
		To:      []string{"ops@example.com"},
		Subject: "Escalator Outage (S1)",
		Body:    "S1 was reported as being offline.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAddr != "smtp.example.com:587" || gotFrom != "uptime@example.com" || len(gotTo) != 1 {
		t.Fatalf("unexpected envelope addr=%s from=%s to=%v", gotAddr, gotFrom, gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Escalator Outage (S1)\r\n") {
		t.Fatalf("subject header missing from message:\n%s", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "S1 was reported as being offline.\r\n") {
		t.Fatalf("unexpected body:\n%s", gotMsg)
	}
}

func TestTemplateCapitalizesType(t *testing.T) {
	tpl, err := NewTemplate("", "", nil)
	if err != nil {
		t.Fatalf("new template: %v", err)
	}
	subject, body, err := tpl.Render(Alert{Type: "moving_walkway", DeviceID: "W7", Timestamp: 0})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Moving_walkway Outage (W7)" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if body != "W7 was reported as being offline on January 1, 1970 at 12:00 AM UTC." {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestTemplateRendersLongDateInZone(t *testing.T) {
	tpl, err := NewTemplate("", "", time.FixedZone("EDT", -4*3600))
	if err != nil {
		t.Fatalf("new template: %v", err)
	}
	_, body, err := tpl.Render(Alert{Type: "elevator", DeviceID: "E1", Timestamp: 435000600})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if body != "E1 was reported as being offline on October 14, 1983 at 1:30 PM EDT." {
		t.Fatalf("unexpected body %q", body)
	}
}
