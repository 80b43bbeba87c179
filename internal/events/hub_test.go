package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	b := hub.Subscribe()

	device := &domainDevice.Device{Type: "elevator", DeviceID: "E1", Monitored: true, LastStatusChangeAt: 1000}
	if err := hub.Publish(context.Background(), NewEvent(device, "entering_outage", true)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, ch := range []chan []byte{a, b} {
		var got Event
		if err := json.Unmarshal(<-ch, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Key() != "elevator/E1" || got.Classification != domainDevice.ClassOffline || got.Timestamp != 1000 {
			t.Fatalf("unexpected event %+v", got)
		}
	}

	hub.Unsubscribe(a)
	if hub.Clients() != 1 {
		t.Fatalf("expected 1 client after unsubscribe, got %d", hub.Clients())
	}

	hub.Close()
	if _, ok := <-b; ok {
		t.Fatal("expected channel closed after hub close")
	}
	if hub.Subscribe() != nil {
		t.Fatal("expected nil subscription on closed hub")
	}
}

func TestHubDropsForSlowClient(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	device := &domainDevice.Device{Type: "escalator", DeviceID: "S1"}

	for i := 0; i < 32; i++ {
		_ = hub.Publish(context.Background(), NewEvent(device, "none", false))
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected buffer to be full, got %d/%d", len(ch), cap(ch))
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("down") }

func TestMultiPublisherJoinsErrors(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	multi := NewMultiPublisher(hub, nil, failingPublisher{})

	err := multi.Publish(context.Background(), Event{Type: "elevator", DeviceID: "E1"})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ch) != 1 {
		t.Fatal("expected hub to receive the event despite the failing publisher")
	}
}
