package store

import "time"

// EvseStatus is the OCPI status of an EVSE.
type EvseStatus string

const (
	// EvseStatusAvailable means the EVSE can start a new charging session.
	EvseStatusAvailable EvseStatus = "AVAILABLE"

	// EvseStatusBlocked means the EVSE is physically blocked.
	EvseStatusBlocked EvseStatus = "BLOCKED"

	// EvseStatusCharging means a session is in progress.
	EvseStatusCharging EvseStatus = "CHARGING"

	// EvseStatusInoperative means the EVSE is out of order.
	EvseStatusInoperative EvseStatus = "INOPERATIVE"

	// EvseStatusOutOfOrder means the EVSE reported a fault.
	EvseStatusOutOfOrder EvseStatus = "OUTOFORDER"

	// EvseStatusPlanned means the EVSE is planned but not yet installed.
	EvseStatusPlanned EvseStatus = "PLANNED"

	// EvseStatusRemoved means the EVSE was removed from the Location.
	// Upserting an EVSE into this status may prune it, governed by the
	// hierarchy's keep-removed predicate.
	EvseStatusRemoved EvseStatus = "REMOVED"

	// EvseStatusReserved means the EVSE is reserved for a driver.
	EvseStatusReserved EvseStatus = "RESERVED"

	// EvseStatusUnknown means no recent status information is available.
	EvseStatusUnknown EvseStatus = "UNKNOWN"
)

// GeoLocation is a WGS84 coordinate pair, serialized as strings per OCPI.
type GeoLocation struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// Connector is a physical socket or cable on an EVSE.
type Connector struct {
	ID          string    `json:"id"`
	Standard    string    `json:"standard,omitempty"`
	Format      string    `json:"format,omitempty"`
	PowerType   string    `json:"power_type,omitempty"`
	MaxVoltage  int       `json:"max_voltage,omitempty"`
	MaxAmperage int       `json:"max_amperage,omitempty"`
	TariffIDs   []string  `json:"tariff_ids,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Clone returns a deep copy of the connector.
func (c *Connector) Clone() *Connector {
	if c == nil {
		return nil
	}
	out := *c
	out.TariffIDs = append([]string(nil), c.TariffIDs...)
	return &out
}

// Evse is one charging position within a Location. UID is the internal
// identity unique within the Location; EvseID is the separate public id.
type Evse struct {
	UID         string       `json:"uid"`
	EvseID      string       `json:"evse_id,omitempty"`
	Status      EvseStatus   `json:"status"`
	Connectors  []*Connector `json:"connectors,omitempty"`
	FloorLevel  string       `json:"floor_level,omitempty"`
	Coordinates *GeoLocation `json:"coordinates,omitempty"`
	LastUpdated time.Time    `json:"last_updated"`
}

// Clone returns a deep copy of the EVSE including its connectors.
func (e *Evse) Clone() *Evse {
	if e == nil {
		return nil
	}
	out := *e
	if e.Coordinates != nil {
		coords := *e.Coordinates
		out.Coordinates = &coords
	}
	out.Connectors = make([]*Connector, len(e.Connectors))
	for i, c := range e.Connectors {
		out.Connectors[i] = c.Clone()
	}
	return &out
}

// Connector returns the connector with the given id, or nil.
func (e *Evse) Connector(id string) *Connector {
	for _, c := range e.Connectors {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// MaxConnectorUpdated returns the greatest LastUpdated among connectors.
func (e *Evse) MaxConnectorUpdated() time.Time {
	var max time.Time
	for _, c := range e.Connectors {
		if c.LastUpdated.After(max) {
			max = c.LastUpdated
		}
	}
	return max
}

// Location is a charging site owned by a CPO, containing an ordered set of
// EVSEs. Values stored in the location store are treated as immutable: every
// mutation builds a clone and swaps it in under the store lock.
type Location struct {
	ID          string       `json:"id"`
	CountryCode string       `json:"country_code"`
	PartyID     string       `json:"party_id"`
	Name        string       `json:"name,omitempty"`
	Address     string       `json:"address,omitempty"`
	City        string       `json:"city,omitempty"`
	PostalCode  string       `json:"postal_code,omitempty"`
	Country     string       `json:"country,omitempty"`
	Coordinates *GeoLocation `json:"coordinates,omitempty"`
	Evses       []*Evse      `json:"evses,omitempty"`
	TimeZone    string       `json:"time_zone,omitempty"`
	LastUpdated time.Time    `json:"last_updated"`
}

// Key returns the location id.
func (l *Location) Key() string {
	return l.ID
}

// Owner returns the owning party.
func (l *Location) Owner() (string, string) {
	return l.CountryCode, l.PartyID
}

// Updated returns the location's last_updated timestamp.
func (l *Location) Updated() time.Time {
	return l.LastUpdated
}

// Clone returns a deep copy of the location including its EVSE tree.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	out := *l
	if l.Coordinates != nil {
		coords := *l.Coordinates
		out.Coordinates = &coords
	}
	out.Evses = make([]*Evse, len(l.Evses))
	for i, e := range l.Evses {
		out.Evses[i] = e.Clone()
	}
	return &out
}

// Evse returns the EVSE with the given uid, or nil.
func (l *Location) Evse(uid string) *Evse {
	for _, e := range l.Evses {
		if e.UID == uid {
			return e
		}
	}
	return nil
}

// MaxEvseUpdated returns the greatest LastUpdated among EVSEs.
func (l *Location) MaxEvseUpdated() time.Time {
	var max time.Time
	for _, e := range l.Evses {
		if e.LastUpdated.After(max) {
			max = e.LastUpdated
		}
	}
	return max
}
