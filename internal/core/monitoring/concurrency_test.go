package monitoring

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedStore holds the first SaveAlert until release is closed
type gatedStore struct {
	*MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) SaveAlert(ctx context.Context, alert *Alert) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.MemoryStore.SaveAlert(ctx, alert)
}

func TestAcknowledge_PersistsAfterSlowSave(t *testing.T) {
	clock := newFakeClock()
	store := &gatedStore{
		MemoryStore: NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	store.SetClock(clock)
	manager := NewAlertManager(DefaultAlertingConfig(), Dependencies{
		Store:  store,
		Clock:  clock,
		Logger: quietLogger(),
	})
	ctx := context.Background()

	req := fireReq("api", "latency", SeverityHigh, 800)
	id := Fingerprint(req.Component, req.Metric, req.Tags)

	fired := make(chan error, 1)
	go func() {
		_, err := manager.FireAlert(ctx, req)
		fired <- err
	}()
	<-store.entered

	acked := make(chan error, 1)
	go func() {
		_, err := manager.AcknowledgeAlert(ctx, id, "alice")
		acked <- err
	}()

	// the acknowledgement holds the manager lock while it waits its turn to write
	require.Eventually(t, func() bool {
		if manager.mu.TryLock() {
			manager.mu.Unlock()
			return false
		}
		return true
	}, time.Second, time.Millisecond)

	close(store.release)
	require.NoError(t, <-fired)
	require.NoError(t, <-acked)

	active := manager.GetActiveAlerts("")
	require.Len(t, active, 1)
	assert.Equal(t, StatusAcknowledged, active[0].Status)

	persisted, err := store.LoadActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, StatusAcknowledged, persisted[0].Status)
	assert.Equal(t, "alice", persisted[0].AcknowledgedBy)
}

func TestAlertManager_ConcurrentLifecycle(t *testing.T) {
	h := newHarness(func(cfg *AlertingConfig) {
		cfg.DefaultEscalation = &EscalationPolicy{Steps: []EscalationStep{
			{Delay: "1m", Actions: []AlertAction{chatAction("#oncall")}},
		}}
	})
	ctx := context.Background()

	reqs := []FireRequest{
		fireReq("api", "latency", SeverityHigh, 800),
		fireReq("api", "errors", SeverityCritical, 0.2),
	}
	ids := make([]string, len(reqs))
	for i, req := range reqs {
		ids[i] = Fingerprint(req.Component, req.Metric, req.Tags)
	}

	const workers = 16
	const iterations = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < iterations; i++ {
				n := rng.Intn(len(reqs))
				switch rng.Intn(4) {
				case 0, 1:
					_, err := h.manager.FireAlert(ctx, reqs[n])
					assert.NoError(t, err)
				case 2:
					_, err := h.manager.AcknowledgeAlert(ctx, ids[n], "alice")
					if err != nil {
						assert.ErrorIs(t, err, ErrNotFoundOrInvalidState)
					}
				case 3:
					_, err := h.manager.ResolveAlert(ctx, ids[n], "bob", "")
					if err != nil {
						assert.ErrorIs(t, err, ErrNotFoundOrInvalidState)
					}
				}
			}
		}(int64(w))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			h.clock.Advance(30 * time.Second)
			_ = h.manager.GetActiveAlerts("")
			_ = h.manager.GetIncidents("")
		}
	}()
	wg.Wait()

	active := h.manager.GetActiveAlerts("")
	assert.LessOrEqual(t, len(active), len(reqs))

	persisted, err := h.store.LoadActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, len(active), "store and memory agree on active alerts")

	byID := make(map[string]*Alert, len(persisted))
	for _, a := range persisted {
		_, dup := byID[a.ID]
		require.False(t, dup, "one active record per fingerprint")
		byID[a.ID] = a
	}
	for _, a := range active {
		stored, ok := byID[a.ID]
		require.True(t, ok, a.ID)
		assert.Equal(t, a.Status, stored.Status)
		assert.Equal(t, a.CreatedAt, stored.CreatedAt)
		assert.True(t, a.Status == StatusOpen || a.Status == StatusAcknowledged)
		if a.Status == StatusAcknowledged {
			assert.NotNil(t, stored.AcknowledgedAt)
		}
	}

	for _, incident := range h.manager.GetIncidents("") {
		stored, ok := h.store.Incident(incident.ID)
		require.True(t, ok)
		assert.Equal(t, incident.Status, stored.Status)
		assert.ElementsMatch(t, incident.AlertIDs, stored.AlertIDs)
	}
}
