// Package store is the in-memory system of record for OCPI entities:
// Locations (with nested EVSEs and Connectors), Tariffs, Sessions, Tokens and
// CDRs. Each entity kind lives in its own Store guarded by a single mutex,
// enforcing last-writer-wins with strict LastUpdated monotonicity. Committed
// mutations are published through an events.Notifier; delivery happens off the
// mutation path, in commit order.
package store

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chargeweave/ocpihub/internal/events"
)

// Sentinel errors for store operations. Conflicts are expected outcomes of
// concurrent synchronization and are returned, never panicked.
var (
	// ErrAlreadyExists is returned by Add when the id is already present.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrNotFound is returned when the id does not resolve to an entity.
	ErrNotFound = errors.New("entity not found")

	// ErrDowngrade is returned when an update's LastUpdated does not strictly
	// advance past the stored value's and downgrades are disallowed.
	ErrDowngrade = errors.New("update is older than stored entity")

	// ErrEmptyPatch is returned when a patch document carries no fields.
	ErrEmptyPatch = errors.New("patch carries no fields")
)

// Entity is the contract every stored value satisfies.
type Entity interface {
	// Key returns the entity's unique identifier within its kind.
	Key() string

	// Owner returns the owning party's country code and party id.
	Owner() (countryCode, partyID string)

	// Updated returns the entity's last_updated timestamp.
	Updated() time.Time
}

// Store is a keyed collection of one entity kind. All operations execute
// under the store's single mutex: operations on the same kind are linearized,
// operations on different kinds are fully concurrent.
type Store[V Entity] struct {
	mu    sync.Mutex
	items map[string]V

	kind            events.Kind
	notifier        *events.Notifier
	allowDowngrades bool
	logger          *zap.Logger
}

// New creates a Store for one entity kind. allowDowngrades sets the store's
// default downgrade policy, overridable per call.
func New[V Entity](kind events.Kind, notifier *events.Notifier, allowDowngrades bool, logger *zap.Logger) *Store[V] {
	if notifier == nil {
		panic("notifier cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	return &Store[V]{
		items:           make(map[string]V),
		kind:            kind,
		notifier:        notifier,
		allowDowngrades: allowDowngrades,
		logger:          logger.With(zap.String("store", kind.String())),
	}
}

// Kind returns the entity kind this store holds.
func (s *Store[V]) Kind() events.Kind {
	return s.kind
}

// resolveAllow resolves the effective downgrade policy: the explicit argument
// when given, else the store default.
func (s *Store[V]) resolveAllow(allow *bool) bool {
	if allow != nil {
		return *allow
	}
	return s.allowDowngrades
}

// Add inserts v and publishes an added event.
// Returns ErrAlreadyExists if the id is present.
func (s *Store[V]) Add(v V) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	if _, ok := s.items[v.Key()]; ok {
		return zero, ErrAlreadyExists
	}

	s.items[v.Key()] = v
	s.publish(events.ActionAdded, v)

	return v, nil
}

// AddIfNotExists inserts v, or silently returns the stored value when the id
// is already present. Idempotent creation: it never returns ErrAlreadyExists.
func (s *Store[V]) AddIfNotExists(v V) V {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[v.Key()]; ok {
		return existing
	}

	s.items[v.Key()] = v
	s.publish(events.ActionAdded, v)

	return v
}

// AddOrUpdate inserts v when absent, or replaces the stored value when
// v.Updated() strictly advances past it (or downgrades are allowed).
// allowDowngrades overrides the store default when non-nil.
// Returns the final value and whether it was newly created.
// Returns ErrDowngrade and leaves the store untouched on a stale update.
func (s *Store[V]) AddOrUpdate(v V, allowDowngrades *bool) (V, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addOrUpdateLocked(v, s.resolveAllow(allowDowngrades))
}

// addOrUpdateLocked is AddOrUpdate without the lock acquisition, shared with
// the location cascade which spans multiple levels in one critical section.
func (s *Store[V]) addOrUpdateLocked(v V, allow bool) (V, bool, error) {
	var zero V

	existing, ok := s.items[v.Key()]
	if !ok {
		s.items[v.Key()] = v
		s.publish(events.ActionAdded, v)
		return v, true, nil
	}

	if !allow && !v.Updated().After(existing.Updated()) {
		return zero, false, ErrDowngrade
	}

	s.items[v.Key()] = v
	s.publish(events.ActionChanged, v)

	return v, false, nil
}

// Update replaces the stored value only if the id is present; absent ids are
// a no-op. Reports whether a replacement happened.
func (s *Store[V]) Update(v V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[v.Key()]; !ok {
		return false
	}

	s.items[v.Key()] = v
	s.publish(events.ActionChanged, v)

	return true
}

// Patch merges a shallow JSON-merge patch onto the stored value: fields
// present in the patch overwrite, nested objects merge recursively, arrays
// are replaced wholesale. A patch that sets last_updated is subject to the
// downgrade check. On success the merged value replaces the stored one
// atomically and a changed event is published.
func (s *Store[V]) Patch(id string, patch map[string]interface{}, allowDowngrades *bool) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.patchLocked(id, patch, s.resolveAllow(allowDowngrades))
}

// patchLocked is Patch without the lock acquisition, shared with the cascade.
func (s *Store[V]) patchLocked(id string, patch map[string]interface{}, allow bool) (V, error) {
	var zero V

	if len(patch) == 0 {
		return zero, ErrEmptyPatch
	}

	existing, ok := s.items[id]
	if !ok {
		return zero, ErrNotFound
	}

	merged, err := mergePatch(existing, patch)
	if err != nil {
		return zero, err
	}

	if _, touched := patch["last_updated"]; touched && !allow {
		if !merged.Updated().After(existing.Updated()) {
			return zero, ErrDowngrade
		}
	}

	s.items[id] = merged
	s.publish(events.ActionChanged, merged)

	return merged, nil
}

// Exists reports whether the id resolves to an entity.
func (s *Store[V]) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[id]
	return ok
}

// Get returns the entity for id, or ErrNotFound.
func (s *Store[V]) Get(id string) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[id]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}

	return v, nil
}

// GetAll returns every entity matching the predicate, or all entities when
// the predicate is nil. Order is unspecified.
func (s *Store[V]) GetAll(predicate func(V) bool) []V {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]V, 0, len(s.items))
	for _, v := range s.items {
		if predicate == nil || predicate(v) {
			out = append(out, v)
		}
	}

	return out
}

// GetByOwner returns every entity owned by (countryCode, partyID).
func (s *Store[V]) GetByOwner(countryCode, partyID string) []V {
	return s.GetAll(func(v V) bool {
		cc, pid := v.Owner()
		return cc == countryCode && pid == partyID
	})
}

// Remove deletes the entity for id and publishes a removed event.
// Returns ErrNotFound when absent.
func (s *Store[V]) Remove(id string) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[id]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}

	delete(s.items, id)
	s.publishRemoved(v)

	return v, nil
}

// RemoveAll deletes every entity matching the predicate (all entities when
// nil) and returns the number removed.
func (s *Store[V]) RemoveAll(predicate func(V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, v := range s.items {
		if predicate == nil || predicate(v) {
			delete(s.items, id)
			s.publishRemoved(v)
			removed++
		}
	}

	return removed
}

// RemoveAllByOwner deletes every entity owned by (countryCode, partyID).
func (s *Store[V]) RemoveAllByOwner(countryCode, partyID string) int {
	return s.RemoveAll(func(v V) bool {
		cc, pid := v.Owner()
		return cc == countryCode && pid == partyID
	})
}

// Len returns the number of stored entities.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// publish enqueues a mutation event while holding the store lock. Enqueueing
// under the lock fixes the event order to the commit order; delivery to
// subscribers happens on the notifier's dispatch goroutine, after this
// operation has released the lock.
func (s *Store[V]) publish(action events.Action, v V) {
	cc, pid := v.Owner()
	s.notifier.Publish(&events.Event{
		Kind:        s.kind,
		Action:      action,
		EntityID:    v.Key(),
		CountryCode: cc,
		PartyID:     pid,
		Entity:      v,
	})
}

// publishRemoved enqueues a removed event without the entity payload.
func (s *Store[V]) publishRemoved(v V) {
	cc, pid := v.Owner()
	s.notifier.Publish(&events.Event{
		Kind:        s.kind,
		Action:      events.ActionRemoved,
		EntityID:    v.Key(),
		CountryCode: cc,
		PartyID:     pid,
	})
}
