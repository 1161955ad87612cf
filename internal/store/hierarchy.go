package store

import (
	"time"

	"go.uber.org/zap"

	"github.com/chargeweave/ocpihub/internal/events"
)

// KeepRemovedEvsePredicate decides whether an EVSE whose status transitioned
// to REMOVED is retained on its Location (with status REMOVED, for audit) or
// pruned from the EVSE set.
type KeepRemovedEvsePredicate func(loc *Location, evse *Evse) bool

// KeepAllRemovedEvses retains every removed EVSE.
func KeepAllRemovedEvses(*Location, *Evse) bool { return true }

// PruneAllRemovedEvses prunes every removed EVSE.
func PruneAllRemovedEvses(*Location, *Evse) bool { return false }

// LocationStore layers the Location/EVSE/Connector cascade on top of the
// generic store. Mutating a Connector bumps its EVSE and Location timestamps,
// mutating an EVSE bumps its Location: after any successful child mutation
// Location.LastUpdated >= EVSE.LastUpdated >= Connector.LastUpdated holds.
//
// Every cascade runs as one critical section on the Location store's lock, so
// concurrent mutations of two children of the same Location serialize and are
// never interleaved mid-cascade. Stored locations are immutable: cascades
// clone, modify the clone, and swap it in.
type LocationStore struct {
	*Store[*Location]
	keepRemoved KeepRemovedEvsePredicate
}

// NewLocationStore creates the Location store with cascade semantics.
// keepRemoved governs REMOVED-status EVSE retention; nil keeps them all.
func NewLocationStore(notifier *events.Notifier, allowDowngrades bool, keepRemoved KeepRemovedEvsePredicate, logger *zap.Logger) *LocationStore {
	if keepRemoved == nil {
		keepRemoved = KeepAllRemovedEvses
	}

	return &LocationStore{
		Store:       New[*Location](events.KindLocation, notifier, allowDowngrades, logger),
		keepRemoved: keepRemoved,
	}
}

// AddOrUpdateEvse installs an EVSE into the Location and cascades the
// Location's LastUpdated. The EVSE is downgrade-checked against its prior
// version; the Location bump is a side effect, never independently gated.
// The caller must ensure the Location exists: an unknown locationID returns
// ErrNotFound.
func (s *LocationStore) AddOrUpdateEvse(locationID string, evse *Evse, allowDowngrades *bool) error {
	allow := s.resolveAllow(allowDowngrades)

	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.items[locationID]
	if !ok {
		return ErrNotFound
	}

	prior := loc.Evse(evse.UID)
	if prior != nil && !allow && !evse.LastUpdated.After(prior.LastUpdated) {
		return ErrDowngrade
	}

	next := loc.Clone()
	installed := evse.Clone()
	installEvse(next, installed)
	bumpLocation(next, installed.LastUpdated)

	pruned := false
	if prior != nil && installed.Status == EvseStatusRemoved && !s.keepRemoved(next, installed) {
		removeEvse(next, installed.UID)
		pruned = true
	}

	s.items[locationID] = next
	s.publish(events.ActionChanged, next)
	s.publishEvse(next, installed, prior, pruned)

	return nil
}

// AddOrUpdateConnector installs a Connector into its EVSE and cascades the
// EVSE's and Location's LastUpdated, publishing one Location changed event at
// the top. The Connector is downgrade-checked against its prior version.
func (s *LocationStore) AddOrUpdateConnector(locationID, evseUID string, connector *Connector, allowDowngrades *bool) error {
	allow := s.resolveAllow(allowDowngrades)

	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.items[locationID]
	if !ok {
		return ErrNotFound
	}

	evse := loc.Evse(evseUID)
	if evse == nil {
		return ErrNotFound
	}

	prior := evse.Connector(connector.ID)
	if prior != nil && !allow && !connector.LastUpdated.After(prior.LastUpdated) {
		return ErrDowngrade
	}

	next := loc.Clone()
	nextEvse := next.Evse(evseUID)
	installed := connector.Clone()
	installConnector(nextEvse, installed)
	if installed.LastUpdated.After(nextEvse.LastUpdated) {
		nextEvse.LastUpdated = installed.LastUpdated
	}
	bumpLocation(next, nextEvse.LastUpdated)

	s.items[locationID] = next
	s.publish(events.ActionChanged, next)

	action := events.ActionChanged
	if prior == nil {
		action = events.ActionAdded
	}
	s.publishChild(events.KindConnector, action, next, installed.ID, installed, "", "")

	return nil
}

// PatchEvse merge-patches an EVSE and cascades upward. A patch touching only
// status and last_updated is classified as a status update: it emits a single
// status-changed event instead of the generic changed events, to avoid
// notification storms from status polling.
func (s *LocationStore) PatchEvse(locationID, evseUID string, patch map[string]interface{}, allowDowngrades *bool) (*Evse, error) {
	if len(patch) == 0 {
		return nil, ErrEmptyPatch
	}
	allow := s.resolveAllow(allowDowngrades)

	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.items[locationID]
	if !ok {
		return nil, ErrNotFound
	}

	prior := loc.Evse(evseUID)
	if prior == nil {
		return nil, ErrNotFound
	}

	merged, err := mergePatch(prior, patch)
	if err != nil {
		return nil, err
	}
	if _, touched := patch["last_updated"]; touched && !allow {
		if !merged.LastUpdated.After(prior.LastUpdated) {
			return nil, ErrDowngrade
		}
	}

	next := loc.Clone()
	installEvse(next, merged)
	bumpLocation(next, merged.LastUpdated)

	pruned := false
	if merged.Status == EvseStatusRemoved && !s.keepRemoved(next, merged) {
		removeEvse(next, merged.UID)
		pruned = true
	}

	s.items[locationID] = next

	if statusOnlyPatch(patch) && !pruned {
		s.publishChild(events.KindEvse, events.ActionStatusChanged, next, merged.UID, merged,
			string(prior.Status), string(merged.Status))
		return merged, nil
	}

	s.publish(events.ActionChanged, next)
	s.publishEvse(next, merged, prior, pruned)

	return merged, nil
}

// PatchConnector merge-patches a Connector and cascades upward, publishing
// one Location changed event at the top.
func (s *LocationStore) PatchConnector(locationID, evseUID, connectorID string, patch map[string]interface{}, allowDowngrades *bool) (*Connector, error) {
	if len(patch) == 0 {
		return nil, ErrEmptyPatch
	}
	allow := s.resolveAllow(allowDowngrades)

	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.items[locationID]
	if !ok {
		return nil, ErrNotFound
	}
	evse := loc.Evse(evseUID)
	if evse == nil {
		return nil, ErrNotFound
	}
	prior := evse.Connector(connectorID)
	if prior == nil {
		return nil, ErrNotFound
	}

	merged, err := mergePatch(prior, patch)
	if err != nil {
		return nil, err
	}
	if _, touched := patch["last_updated"]; touched && !allow {
		if !merged.LastUpdated.After(prior.LastUpdated) {
			return nil, ErrDowngrade
		}
	}

	next := loc.Clone()
	nextEvse := next.Evse(evseUID)
	installConnector(nextEvse, merged)
	if merged.LastUpdated.After(nextEvse.LastUpdated) {
		nextEvse.LastUpdated = merged.LastUpdated
	}
	bumpLocation(next, nextEvse.LastUpdated)

	s.items[locationID] = next
	s.publish(events.ActionChanged, next)
	s.publishChild(events.KindConnector, events.ActionChanged, next, merged.ID, merged, "", "")

	return merged, nil
}

// publishEvse emits the EVSE-level events for an upsert or non-status patch:
// added for a new EVSE; changed (plus status-changed when the status value
// differs) for an existing one; removed when the status is REMOVED.
func (s *LocationStore) publishEvse(loc *Location, evse, prior *Evse, pruned bool) {
	switch {
	case prior == nil:
		s.publishChild(events.KindEvse, events.ActionAdded, loc, evse.UID, evse, "", "")
	case evse.Status == EvseStatusRemoved:
		var payload interface{}
		if !pruned {
			payload = evse
		}
		s.publishChild(events.KindEvse, events.ActionRemoved, loc, evse.UID, payload, "", "")
	default:
		s.publishChild(events.KindEvse, events.ActionChanged, loc, evse.UID, evse, "", "")
		if prior.Status != evse.Status {
			s.publishChild(events.KindEvse, events.ActionStatusChanged, loc, evse.UID, evse,
				string(prior.Status), string(evse.Status))
		}
	}
}

// publishChild enqueues an event for a nested entity, attributed to the
// owning Location's party.
func (s *LocationStore) publishChild(kind events.Kind, action events.Action, loc *Location, entityID string, payload interface{}, oldStatus, newStatus string) {
	s.notifier.Publish(&events.Event{
		Kind:        kind,
		Action:      action,
		EntityID:    entityID,
		CountryCode: loc.CountryCode,
		PartyID:     loc.PartyID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Entity:      payload,
	})
}

// installEvse replaces or appends the EVSE in the location's set.
func installEvse(loc *Location, evse *Evse) {
	for i, e := range loc.Evses {
		if e.UID == evse.UID {
			loc.Evses[i] = evse
			return
		}
	}
	loc.Evses = append(loc.Evses, evse)
}

// removeEvse deletes the EVSE from the location's set, preserving order.
func removeEvse(loc *Location, uid string) {
	for i, e := range loc.Evses {
		if e.UID == uid {
			loc.Evses = append(loc.Evses[:i], loc.Evses[i+1:]...)
			return
		}
	}
}

// installConnector replaces or appends the connector in the EVSE's set.
func installConnector(evse *Evse, c *Connector) {
	for i, existing := range evse.Connectors {
		if existing.ID == c.ID {
			evse.Connectors[i] = c
			return
		}
	}
	evse.Connectors = append(evse.Connectors, c)
}

// bumpLocation advances the location timestamp to at least ts. The bump is a
// cascade side effect: it never runs its own downgrade gate.
func bumpLocation(loc *Location, ts time.Time) {
	if ts.After(loc.LastUpdated) {
		loc.LastUpdated = ts
	}
}
