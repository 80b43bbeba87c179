package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultPostmarkURL = "https://api.postmarkapp.com/email"

type postmarkPayload struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// PostmarkMailer sends mail through the Postmark HTTP API.
type PostmarkMailer struct {
	url    string
	token  string
	client *http.Client
}

// PostmarkOption configures the Postmark mailer.
type PostmarkOption func(*PostmarkMailer)

func WithPostmarkURL(url string) PostmarkOption {
	return func(m *PostmarkMailer) {
		if url != "" {
			m.url = url
		}
	}
}

func WithPostmarkClient(client *http.Client) PostmarkOption {
	return func(m *PostmarkMailer) {
		if client != nil {
			m.client = client
		}
	}
}

func NewPostmarkMailer(token string, opts ...PostmarkOption) (*PostmarkMailer, error) {
	if token == "" {
		return nil, errors.New("postmark mailer: empty server token")
	}
	m := &PostmarkMailer{
		url:    defaultPostmarkURL,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *PostmarkMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(postmarkPayload{
		From:          msg.From,
		To:            strings.Join(msg.To, ","),
		Subject:       msg.Subject,
		TextBody:      msg.Body,
		MessageStream: "outbound",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", m.token)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("postmark mailer: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pr postmarkResponse
		if json.Unmarshal(respBody, &pr) == nil && pr.Message != "" {
			return fmt.Errorf("postmark mailer: status %d: code %d: %s", resp.StatusCode, pr.ErrorCode, pr.Message)
		}
		return fmt.Errorf("postmark mailer: status %d", resp.StatusCode)
	}
	return nil
}
