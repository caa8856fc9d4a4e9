package monitoring

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due callbacks in deadline order on
// the calling goroutine
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type sentMessage struct {
	recipient string
	alertID   string
	status    AlertStatus
	kind      NotificationKind
	step      int
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (t *recordingTransport) Send(ctx context.Context, recipient string, alert *Alert, _ AlertAction) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return "", t.err
	}
	kind, step := DeliveryFromContext(ctx)
	t.sent = append(t.sent, sentMessage{recipient: recipient, alertID: alert.ID, status: alert.Status, kind: kind, step: step})
	return "ok", nil
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *recordingTransport) recipients() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.sent))
	for _, m := range t.sent {
		out = append(out, m.recipient)
	}
	return out
}

type staticSource struct {
	mu     sync.Mutex
	values map[string]float64
	err    error
}

func newStaticSource() *staticSource {
	return &staticSource{values: make(map[string]float64)}
}

func (s *staticSource) set(metric string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[metric] = v
}

func (s *staticSource) clear(metric string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, metric)
}

func (s *staticSource) GetLatestValue(_ context.Context, metric, _ string, _ time.Duration) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.values[metric]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *capturePublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errTransportDown = errors.New("transport down")

type testHarness struct {
	manager   *AlertManager
	clock     *fakeClock
	store     *MemoryStore
	chat      *recordingTransport
	source    *staticSource
	publisher *capturePublisher
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func chatAction(channel string, severities ...AlertSeverity) AlertAction {
	return AlertAction{
		Type:       ActionChat,
		Conditions: ActionConditions{Severities: severities},
		Chat:       &ChatAction{Channel: channel},
	}
}

func newHarness(mutate func(cfg *AlertingConfig)) *testHarness {
	clock := newFakeClock()
	logger := quietLogger()

	store := NewMemoryStore()
	store.SetClock(clock)

	chat := &recordingTransport{}
	router := NewNotificationRouter(store, logger)
	router.Register(ActionChat, chat)

	cfg := DefaultAlertingConfig()
	cfg.DefaultActions = []AlertAction{chatAction("#ops")}
	if mutate != nil {
		mutate(cfg)
	}

	source := newStaticSource()
	publisher := &capturePublisher{}
	manager := NewAlertManager(cfg, Dependencies{
		Source:    source,
		Router:    router,
		Store:     store,
		Clock:     clock,
		Publisher: publisher,
		Logger:    logger,
	})

	return &testHarness{
		manager:   manager,
		clock:     clock,
		store:     store,
		chat:      chat,
		source:    source,
		publisher: publisher,
	}
}

func fireReq(component, metric string, severity AlertSeverity, value float64) FireRequest {
	v := value
	return FireRequest{
		Source:       SourceThreshold,
		Component:    component,
		Title:        component + " alert",
		Message:      metric,
		Severity:     severity,
		Metric:       metric,
		CurrentValue: &v,
	}
}

func (t *recordingTransport) kinds() []NotificationKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]NotificationKind, 0, len(t.sent))
	for _, m := range t.sent {
		out = append(out, m.kind)
	}
	return out
}
