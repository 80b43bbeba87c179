package ingestion

import (
	"context"
	"errors"
	"testing"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	pkgmqtt "facility-uptime-monitor/pkg/mqtt"
)

func TestProcessorAppliesReportsInOrder(t *testing.T) {
	svc, store, clk := newTestService(t, &fakeGate{})
	clk.set(500)

	p := NewProcessor(svc, 3, 64)
	payloads := []string{
		`{"deviceID":"E1","type":"elevator","power":false,"alarm":false}`,
		`{"deviceID":"E1","type":"elevator","power":true,"alarm":false}`,
		`{"deviceID":"E1","type":"elevator","power":false,"alarm":false}`,
	}
	for _, payload := range payloads {
		if !p.Submit(SourceMQTT, []byte(payload)) {
			t.Fatalf("submit rejected %s", payload)
		}
	}
	p.Start()
	p.Stop()

	d, err := store.Devices().Get(context.Background(), domainDevice.Key{Type: "elevator", DeviceID: "E1"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Power {
		t.Fatal("expected the last report to win")
	}
	intervals, _ := store.Outages().List(context.Background(), d.Key())
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	if got := p.GetMetrics().ReportsProcessed; got != 3 {
		t.Fatalf("expected 3 processed, got %d", got)
	}
}

func TestProcessorDropsWhenFull(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGate{})
	p := NewProcessor(svc, 1, 1)

	payload := []byte(`{"deviceID":"E1","type":"elevator","power":true,"alarm":false}`)
	if !p.Submit(SourceMQTT, payload) {
		t.Fatal("first submit should fit")
	}
	if p.Submit(SourceMQTT, payload) {
		t.Fatal("second submit should be dropped")
	}
	if got := p.GetMetrics().ReportsDropped; got != 1 {
		t.Fatalf("expected 1 dropped report, got %d", got)
	}
	p.Start()
	p.Stop()

	if p.Submit(SourceMQTT, payload) {
		t.Fatal("submit after stop should be refused")
	}
}

func TestProcessorRejectsInvalidPayload(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeGate{})
	p := NewProcessor(svc, 1, 4)

	if p.Submit(SourceMQTT, []byte(`not json`)) {
		t.Fatal("invalid payload should be rejected")
	}
	p.Start()
	p.Stop()

	devices, _ := store.Devices().List(context.Background())
	if len(devices) != 0 {
		t.Fatalf("expected no devices, got %d", len(devices))
	}
}

type fakeSubscriber struct {
	connectErr error
	handlers   map[string]pkgmqtt.MessageHandler
	unsubbed   []string
	closed     bool
}

func (f *fakeSubscriber) Connect() error { return f.connectErr }

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler pkgmqtt.MessageHandler) error {
	if f.handlers == nil {
		f.handlers = make(map[string]pkgmqtt.MessageHandler)
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.unsubbed = append(f.unsubbed, topics...)
	return nil
}

func (f *fakeSubscriber) Disconnect() { f.closed = true }

func (f *fakeSubscriber) IsConnected() bool { return f.connectErr == nil && !f.closed }

type countingTrigger struct {
	sources []string
}

func (c *countingTrigger) Trigger(source string) {
	c.sources = append(c.sources, source)
}

func TestMQTTClientRoutesTopics(t *testing.T) {
	svc, store, clk := newTestService(t, &fakeGate{})
	clk.set(42)
	p := NewProcessor(svc, 1, 8)
	sub := &fakeSubscriber{}
	trigger := &countingTrigger{}

	client, err := newMQTTIngestionClient(&MQTTIngestionConfig{
		StatusTopic:  "facility/+/status",
		TriggerTopic: "facility/calculate-uptime",
		QoS:          1,
	}, sub, p, trigger)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !client.Connected() {
		t.Fatal("expected client to report connected")
	}

	sub.handlers["facility/+/status"]("facility/north/status",
		[]byte(`{"deviceID":"E1","type":"elevator","power":true,"alarm":false}`))
	sub.handlers["facility/calculate-uptime"]("facility/calculate-uptime", nil)

	p.Start()
	p.Stop()
	client.Stop()
	if client.Connected() {
		t.Fatal("expected client to report disconnected after stop")
	}

	if len(trigger.sources) != 1 || trigger.sources[0] != SourceMQTT {
		t.Fatalf("expected one mqtt trigger, got %v", trigger.sources)
	}
	if _, err := store.Devices().Get(context.Background(), domainDevice.Key{Type: "elevator", DeviceID: "E1"}); err != nil {
		t.Fatalf("expected device to be stored: %v", err)
	}
	if !sub.closed || len(sub.unsubbed) != 2 {
		t.Fatalf("expected unsubscribe and disconnect, got %v closed=%v", sub.unsubbed, sub.closed)
	}
}

func TestMQTTClientConnectFailure(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGate{})
	sub := &fakeSubscriber{connectErr: errors.New("refused")}

	client, err := newMQTTIngestionClient(&MQTTIngestionConfig{StatusTopic: "s"}, sub, NewProcessor(svc, 1, 1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Start(); err == nil {
		t.Fatal("expected connect failure")
	}
	if client.Connected() {
		t.Fatal("failed client must not report connected")
	}

	_, err = newMQTTIngestionClient(&MQTTIngestionConfig{}, sub, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil processor")
	}
}
