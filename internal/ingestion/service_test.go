package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/events"
	"facility-uptime-monitor/internal/infrastructure/memory"
	"facility-uptime-monitor/internal/notification"
	"facility-uptime-monitor/internal/notification/mocks"
	"facility-uptime-monitor/internal/tracker"
	appErrors "facility-uptime-monitor/pkg/errors"

	"go.uber.org/mock/gomock"
)

type fakeGate struct {
	mu       sync.Mutex
	alerts   []notification.Alert
	decision notification.Decision
	err      error
}

func (g *fakeGate) MaybeNotify(_ context.Context, alert notification.Alert) (notification.Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.alerts = append(g.alerts, alert)
	return g.decision, g.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now int64
}

func (c *clock) set(ts int64) {
	c.mu.Lock()
	c.now = ts
	c.mu.Unlock()
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0)
}

func newTestService(t *testing.T, gate NotificationGate, opts ...ServiceOption) (*Service, *memory.Store, *clock) {
	t.Helper()
	store := memory.NewStore()
	clk := &clock{}
	opts = append([]ServiceOption{WithClock(clk.Now)}, opts...)
	svc, err := NewService(tracker.New(store.Devices()), gate, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store, clk
}

func report(power, alarm bool) tracker.Report {
	return tracker.Report{Type: "elevator", DeviceID: "E1", Power: power, Alarm: alarm}
}

func TestIngestOpensAndClosesOutage(t *testing.T) {
	gate := &fakeGate{}
	svc, store, clk := newTestService(t, gate)
	ctx := context.Background()
	key := domainDevice.Key{Type: "elevator", DeviceID: "E1"}

	clk.set(1000)
	out, err := svc.Ingest(ctx, "http", report(false, false))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !out.FirstSeen || out.Transition != "entering_outage" {
		t.Fatalf("unexpected outcome %+v", out)
	}

	clk.set(1500)
	if _, err := svc.Ingest(ctx, "http", report(true, false)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	intervals, err := store.Outages().List(ctx, key)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	if intervals[0].Start != 1000 || intervals[0].End == nil || *intervals[0].End != 1500 {
		t.Fatalf("unexpected interval %+v", intervals[0])
	}
	if len(gate.alerts) != 1 || gate.alerts[0].Timestamp != 1000 {
		t.Fatalf("expected one alert at 1000, got %+v", gate.alerts)
	}
}

func TestIngestOutageToOutageKeepsSingleInterval(t *testing.T) {
	gate := &fakeGate{}
	svc, store, clk := newTestService(t, gate)
	ctx := context.Background()

	clk.set(100)
	if _, err := svc.Ingest(ctx, "http", report(false, false)); err != nil {
		t.Fatal(err)
	}
	clk.set(200)
	out, err := svc.Ingest(ctx, "http", report(true, true))
	if err != nil {
		t.Fatal(err)
	}
	if out.Transition != "none" {
		t.Fatalf("power off to alarm on should not be a transition, got %s", out.Transition)
	}

	intervals, _ := store.Outages().List(ctx, domainDevice.Key{Type: "elevator", DeviceID: "E1"})
	if len(intervals) != 1 || !intervals[0].IsOpen() {
		t.Fatalf("expected one open interval, got %+v", intervals)
	}
	if len(gate.alerts) != 1 {
		t.Fatalf("expected a single alert, got %d", len(gate.alerts))
	}
}

func TestIngestConcurrentDuplicateReportsOpenOneInterval(t *testing.T) {
	gate := &fakeGate{}
	publisher := &recordingPublisher{}
	svc, store, clk := newTestService(t, gate, WithPublisher(publisher))
	ctx := context.Background()
	clk.set(1000)

	const reports = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, reports)
	)
	for i := 0; i < reports; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := svc.Ingest(ctx, SourceHTTP, report(false, false)); err != nil {
				errs <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("ingest: %v", err)
	}

	intervals, err := store.Outages().List(ctx, domainDevice.Key{Type: "elevator", DeviceID: "E1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(intervals) != 1 || !intervals[0].IsOpen() || intervals[0].Start != 1000 {
		t.Fatalf("expected one open interval at 1000, got %+v", intervals)
	}

	gate.mu.Lock()
	alerts := len(gate.alerts)
	gate.mu.Unlock()
	if alerts != 1 {
		t.Fatalf("expected one alert, got %d", alerts)
	}

	publisher.mu.Lock()
	published := len(publisher.events)
	publisher.mu.Unlock()
	if published != 1 {
		t.Fatalf("expected one status event, got %d", published)
	}
	if got := svc.Metrics().Snapshot().OutagesOpened; got != 1 {
		t.Fatalf("expected one opened outage in metrics, got %d", got)
	}
}

func TestIngestRepeatedStatusOnlyTouchesCheckTime(t *testing.T) {
	publisher := &recordingPublisher{}
	svc, store, clk := newTestService(t, &fakeGate{}, WithPublisher(publisher))
	ctx := context.Background()

	clk.set(10)
	if _, err := svc.Ingest(ctx, "http", report(true, false)); err != nil {
		t.Fatal(err)
	}
	clk.set(20)
	if _, err := svc.Ingest(ctx, "http", report(true, false)); err != nil {
		t.Fatal(err)
	}

	d, err := store.Devices().Get(ctx, domainDevice.Key{Type: "elevator", DeviceID: "E1"})
	if err != nil {
		t.Fatal(err)
	}
	if d.LastStatusCheckAt != 20 || d.LastStatusChangeAt != 10 {
		t.Fatalf("unexpected timestamps check=%d change=%d", d.LastStatusCheckAt, d.LastStatusChangeAt)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one event for the first report only, got %d", len(publisher.events))
	}
}

func TestHandlePayloadRejectsWrongTypeBeforeStoreWrite(t *testing.T) {
	svc, store, _ := newTestService(t, &fakeGate{})

	_, err := svc.HandlePayload(context.Background(), "http",
		[]byte(`{"deviceID":"E1","type":"elevator","power":"false","alarm":false}`), "")

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "power" {
		t.Fatalf("expected validation error on power, got %v", err)
	}
	devices, _ := store.Devices().List(context.Background())
	if len(devices) != 0 {
		t.Fatalf("expected no device to be written, got %d", len(devices))
	}
	if got := svc.Metrics().Snapshot().ReportsRejected; got != 1 {
		t.Fatalf("expected 1 rejected report, got %d", got)
	}
}

func TestHandlePayloadMissingFields(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGate{})

	cases := map[string]string{
		"alarm":    `{"deviceID":"E1","type":"elevator","power":true}`,
		"deviceID": `{"type":"elevator","power":true,"alarm":false}`,
		"type":     `{"deviceID":"E1","power":true,"alarm":false}`,
		"body":     `{"deviceID":`,
	}
	for field, payload := range cases {
		_, err := svc.HandlePayload(context.Background(), "http", []byte(payload), "")
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) || validationErr.Field != field {
			t.Errorf("%s: expected validation error, got %v", field, err)
		}
	}
}

func TestHandlePayloadAPIKey(t *testing.T) {
	guard := NewAPIKeyGuard(map[string]string{"k1": "north"}, "default", false)
	svc, store, _ := newTestService(t, &fakeGate{}, WithGuard(guard))
	ctx := context.Background()

	_, err := svc.HandlePayload(ctx, "http", []byte(`{"deviceID":"E1","type":"elevator","power":true,"alarm":false}`), "")
	if !errors.Is(err, appErrors.ErrMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}

	_, err = svc.HandlePayload(ctx, "http", []byte(`{"deviceID":"E1","type":"elevator","power":true,"alarm":false,"api_key":"bad"}`), "")
	if !errors.Is(err, appErrors.ErrInvalidAPIKey) {
		t.Fatalf("expected invalid key error, got %v", err)
	}

	if _, err := svc.HandlePayload(ctx, "http", []byte(`{"deviceID":"E1","type":"elevator","power":true,"alarm":false}`), "k1"); err != nil {
		t.Fatalf("header key should be accepted: %v", err)
	}
	d, err := store.Devices().Get(ctx, domainDevice.Key{Type: "elevator", DeviceID: "E1"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Campus != "north" {
		t.Fatalf("expected campus north, got %q", d.Campus)
	}
}

func TestIngestGateErrorIsReturned(t *testing.T) {
	gate := &fakeGate{err: appErrors.NewStoreError("last_sent", errors.New("boom"))}
	svc, _, _ := newTestService(t, gate)

	_, err := svc.Ingest(context.Background(), "http", report(false, false))
	if !errors.Is(err, appErrors.ErrStoreFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}
}

// Device E1 goes offline, an email goes out after the delay, it recovers, and a
// second outage inside the cooldown sends nothing.
func TestElevatorOutageScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)

	store := memory.NewStore()
	dispatcher := notification.NewDispatcher()
	gate, err := notification.NewGate(store.EmailLog(), notifier, dispatcher)
	if err != nil {
		t.Fatal(err)
	}
	clk := &clock{}
	svc, err := NewService(tracker.New(store.Devices()), gate, WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, alert notification.Alert) error {
			if alert.DeviceID != "E1" || alert.Type != "elevator" || alert.Timestamp != 1000 {
				t.Errorf("unexpected alert %+v", alert)
			}
			return nil
		}).
		Times(1)

	clk.set(1000)
	out, err := svc.Ingest(ctx, "http", report(false, false))
	if err != nil {
		t.Fatal(err)
	}
	if out.Notification != notification.DecisionScheduled.String() {
		t.Fatalf("expected scheduled notification, got %q", out.Notification)
	}

	clk.set(1010)
	if _, err := svc.Ingest(ctx, "http", report(true, false)); err != nil {
		t.Fatal(err)
	}

	// Delivers the pending alert inline since the dispatcher was never started.
	if err := dispatcher.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	key := domainDevice.Key{Type: "elevator", DeviceID: "E1"}
	lastSent, found, err := store.EmailLog().LastSent(ctx, key)
	if err != nil || !found || lastSent != 1000 {
		t.Fatalf("expected last sent 1000, got %d found=%v err=%v", lastSent, found, err)
	}

	clk.set(1000 + 3600)
	out, err = svc.Ingest(ctx, "http", report(false, false))
	if err != nil {
		t.Fatal(err)
	}
	if out.Notification != notification.DecisionCooldown.String() {
		t.Fatalf("expected cooldown, got %q", out.Notification)
	}

	intervals, _ := store.Outages().List(ctx, key)
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
}
