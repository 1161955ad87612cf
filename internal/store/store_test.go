package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chargeweave/ocpihub/internal/events"
)

// eventCollector records delivered events in arrival order.
type eventCollector struct {
	mu     sync.Mutex
	events []*events.Event
}

func (c *eventCollector) collect(ev *events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *eventCollector) snapshot() []*events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*events.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *eventCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTestNotifier(t *testing.T) *events.Notifier {
	t.Helper()
	n := events.NewNotifier(zaptest.NewLogger(t), 0)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func newTariffStore(t *testing.T) *Store[*Tariff] {
	t.Helper()
	return New[*Tariff](events.KindTariff, newTestNotifier(t), false, zaptest.NewLogger(t))
}

func tariff(id string, updated time.Time) *Tariff {
	return &Tariff{
		ID:          id,
		CountryCode: "NL",
		PartyID:     "TNM",
		Currency:    "EUR",
		LastUpdated: updated,
	}
}

func TestStore_Add(t *testing.T) {
	s := newTariffStore(t)
	now := time.Now().UTC()

	_, err := s.Add(tariff("T1", now))
	require.NoError(t, err)

	_, err = s.Add(tariff("T1", now.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, s.Len())
}

func TestStore_AddIfNotExists(t *testing.T) {
	s := newTariffStore(t)
	now := time.Now().UTC()

	first := tariff("T1", now)
	got := s.AddIfNotExists(first)
	assert.Same(t, first, got)

	// Second call returns the stored value, not the argument.
	second := tariff("T1", now.Add(time.Hour))
	got = s.AddIfNotExists(second)
	assert.Same(t, first, got)
	assert.Equal(t, 1, s.Len())
}

func TestStore_AddOrUpdate(t *testing.T) {
	now := time.Now().UTC()
	allow := true

	tests := []struct {
		name            string
		updateTimestamp time.Time
		allowDowngrades *bool
		wantErr         error
	}{
		{
			name:            "newer timestamp accepted",
			updateTimestamp: now.Add(time.Minute),
		},
		{
			name:            "equal timestamp rejected",
			updateTimestamp: now,
			wantErr:         ErrDowngrade,
		},
		{
			name:            "older timestamp rejected",
			updateTimestamp: now.Add(-time.Minute),
			wantErr:         ErrDowngrade,
		},
		{
			name:            "older timestamp accepted with downgrade override",
			updateTimestamp: now.Add(-time.Minute),
			allowDowngrades: &allow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTariffStore(t)

			_, created, err := s.AddOrUpdate(tariff("T1", now), nil)
			require.NoError(t, err)
			assert.True(t, created)

			update := tariff("T1", tt.updateTimestamp)
			update.Currency = "SEK"
			got, created, err := s.AddOrUpdate(update, tt.allowDowngrades)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				// Stale update must not disturb the stored value.
				stored, err := s.Get("T1")
				require.NoError(t, err)
				assert.Equal(t, "EUR", stored.Currency)
				return
			}

			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, "SEK", got.Currency)
		})
	}
}

func TestStore_AddOrUpdate_CreatesWhenAbsent(t *testing.T) {
	s := newTariffStore(t)

	got, created, err := s.AddOrUpdate(tariff("T1", time.Now().UTC()), nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "T1", got.ID)
}

func TestStore_Patch(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	tests := []struct {
		name    string
		id      string
		patch   map[string]interface{}
		wantErr error
		verify  func(t *testing.T, got *Tariff)
	}{
		{
			name:  "single field overwrites",
			id:    "T1",
			patch: map[string]interface{}{"currency": "SEK"},
			verify: func(t *testing.T, got *Tariff) {
				assert.Equal(t, "SEK", got.Currency)
				assert.Equal(t, "NL", got.CountryCode)
			},
		},
		{
			name: "arrays replaced wholesale",
			id:   "T1",
			patch: map[string]interface{}{
				"elements": []interface{}{map[string]interface{}{"type": "FLAT"}},
			},
			verify: func(t *testing.T, got *Tariff) {
				require.Len(t, got.Elements, 1)
				assert.Equal(t, "FLAT", got.Elements[0]["type"])
			},
		},
		{
			name:    "empty patch rejected",
			id:      "T1",
			patch:   map[string]interface{}{},
			wantErr: ErrEmptyPatch,
		},
		{
			name:    "unknown id rejected",
			id:      "missing",
			patch:   map[string]interface{}{"currency": "SEK"},
			wantErr: ErrNotFound,
		},
		{
			name: "stale last_updated rejected",
			id:   "T1",
			patch: map[string]interface{}{
				"currency":     "SEK",
				"last_updated": now.Add(-time.Hour).Format(time.RFC3339),
			},
			wantErr: ErrDowngrade,
		},
		{
			name: "newer last_updated accepted",
			id:   "T1",
			patch: map[string]interface{}{
				"last_updated": now.Add(time.Hour).Format(time.RFC3339),
			},
			verify: func(t *testing.T, got *Tariff) {
				assert.True(t, got.LastUpdated.After(now))
			},
		},
		{
			name:    "patch breaking the entity shape rejected",
			id:      "T1",
			patch:   map[string]interface{}{"elements": "not-a-list"},
			wantErr: nil, // error is wrapped, checked below
			verify:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTariffStore(t)
			seed := tariff("T1", now)
			seed.Elements = []map[string]interface{}{{"type": "TIME"}}
			_, err := s.Add(seed)
			require.NoError(t, err)

			got, err := s.Patch(tt.id, tt.patch, nil)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.verify == nil {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			tt.verify(t, got)
		})
	}
}

func TestStore_Patch_UntouchedTimestampSkipsDowngradeCheck(t *testing.T) {
	s := newTariffStore(t)
	now := time.Now().UTC()
	_, err := s.Add(tariff("T1", now))
	require.NoError(t, err)

	// A patch that does not carry last_updated is never a downgrade.
	got, err := s.Patch("T1", map[string]interface{}{"currency": "NOK"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "NOK", got.Currency)
}

func TestStore_GetByOwner(t *testing.T) {
	s := newTariffStore(t)
	now := time.Now().UTC()

	_, err := s.Add(tariff("T1", now))
	require.NoError(t, err)

	other := tariff("T2", now)
	other.PartyID = "OTH"
	_, err = s.Add(other)
	require.NoError(t, err)

	owned := s.GetByOwner("NL", "TNM")
	require.Len(t, owned, 1)
	assert.Equal(t, "T1", owned[0].ID)

	assert.Empty(t, s.GetByOwner("DE", "TNM"))
}

func TestStore_Remove(t *testing.T) {
	s := newTariffStore(t)
	_, err := s.Add(tariff("T1", time.Now().UTC()))
	require.NoError(t, err)

	removed, err := s.Remove("T1")
	require.NoError(t, err)
	assert.Equal(t, "T1", removed.ID)

	_, err = s.Remove("T1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RemoveAllByOwner(t *testing.T) {
	s := newTariffStore(t)
	now := time.Now().UTC()

	_, err := s.Add(tariff("T1", now))
	require.NoError(t, err)
	_, err = s.Add(tariff("T2", now))
	require.NoError(t, err)

	other := tariff("T3", now)
	other.CountryCode = "DE"
	_, err = s.Add(other)
	require.NoError(t, err)

	assert.Equal(t, 2, s.RemoveAllByOwner("NL", "TNM"))
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConcurrentAddOrUpdate_AtMostOneCommit(t *testing.T) {
	s := newTariffStore(t)
	now := time.Now().UTC()
	_, err := s.Add(tariff("T1", now))
	require.NoError(t, err)

	// Many writers race the same timestamp. Monotonicity admits at most one.
	const writers = 32
	ts := now.Add(time.Second)

	var wg sync.WaitGroup
	var committed sync.Map
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := s.AddOrUpdate(tariff("T1", ts), nil); err == nil {
				committed.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	committed.Range(func(_, _ interface{}) bool {
		wins++
		return true
	})
	assert.Equal(t, 1, wins)

	stored, err := s.Get("T1")
	require.NoError(t, err)
	assert.True(t, stored.LastUpdated.Equal(ts))
}

func TestStore_EventsDeliveredInCommitOrder(t *testing.T) {
	notifier := newTestNotifier(t)
	s := New[*Tariff](events.KindTariff, notifier, false, zaptest.NewLogger(t))

	collector := &eventCollector{}
	notifier.Subscribe(events.KindTariff, collector.collect)

	now := time.Now().UTC()
	_, err := s.Add(tariff("T1", now))
	require.NoError(t, err)
	_, _, err = s.AddOrUpdate(tariff("T1", now.Add(time.Second)), nil)
	require.NoError(t, err)
	_, err = s.Remove("T1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return collector.count() == 3
	}, time.Second, 10*time.Millisecond)

	got := collector.snapshot()
	assert.Equal(t, events.ActionAdded, got[0].Action)
	assert.Equal(t, events.ActionChanged, got[1].Action)
	assert.Equal(t, events.ActionRemoved, got[2].Action)
	assert.Equal(t, "T1", got[0].EntityID)
	assert.Nil(t, got[2].Entity)
}

func TestStore_PanickingSubscriberDoesNotStopDelivery(t *testing.T) {
	notifier := newTestNotifier(t)
	s := New[*Tariff](events.KindTariff, notifier, false, zaptest.NewLogger(t))

	collector := &eventCollector{}
	notifier.Subscribe(events.KindTariff, func(*events.Event) { panic("boom") })
	notifier.Subscribe(events.KindTariff, collector.collect)

	_, err := s.Add(tariff("T1", time.Now().UTC()))
	require.NoError(t, err)
	_, err = s.Add(tariff("T2", time.Now().UTC()))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return collector.count() == 2
	}, time.Second, 10*time.Millisecond)
}
