package store

import "time"

// Tariff is a pricing definition owned by a CPO. Price components are
// carried opaquely: the gateway stores and relays them, it does not price.
type Tariff struct {
	ID          string                   `json:"id"`
	CountryCode string                   `json:"country_code"`
	PartyID     string                   `json:"party_id"`
	Currency    string                   `json:"currency,omitempty"`
	Elements    []map[string]interface{} `json:"elements,omitempty"`
	LastUpdated time.Time                `json:"last_updated"`
}

// Key returns the tariff id.
func (t *Tariff) Key() string { return t.ID }

// Owner returns the owning party.
func (t *Tariff) Owner() (string, string) { return t.CountryCode, t.PartyID }

// Updated returns the tariff's last_updated timestamp.
func (t *Tariff) Updated() time.Time { return t.LastUpdated }

// Session is a charging session reported by a CPO to an EMSP.
type Session struct {
	ID          string    `json:"id"`
	CountryCode string    `json:"country_code"`
	PartyID     string    `json:"party_id"`
	StartDate   time.Time `json:"start_date_time,omitempty"`
	EndDate     time.Time `json:"end_date_time,omitempty"`
	KWH         float64   `json:"kwh,omitempty"`
	LocationID  string    `json:"location_id,omitempty"`
	EvseUID     string    `json:"evse_uid,omitempty"`
	ConnectorID string    `json:"connector_id,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Status      string    `json:"status,omitempty"`
	AuthID      string    `json:"auth_id,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Key returns the session id.
func (s *Session) Key() string { return s.ID }

// Owner returns the owning party.
func (s *Session) Owner() (string, string) { return s.CountryCode, s.PartyID }

// Updated returns the session's last_updated timestamp.
func (s *Session) Updated() time.Time { return s.LastUpdated }

// AllowedType is the result of a token whitelist check.
type AllowedType string

const (
	// AllowedTypeAllowed means the token may charge.
	AllowedTypeAllowed AllowedType = "ALLOWED"

	// AllowedTypeBlocked means the token is blocked.
	AllowedTypeBlocked AllowedType = "BLOCKED"

	// AllowedTypeExpired means the token has expired.
	AllowedTypeExpired AllowedType = "EXPIRED"

	// AllowedTypeNoCredit means the token holder has no credit.
	AllowedTypeNoCredit AllowedType = "NO_CREDIT"

	// AllowedTypeNotAllowed means the token may not charge here.
	AllowedTypeNotAllowed AllowedType = "NOT_ALLOWED"
)

// Token is a driver authorization token owned by an EMSP.
type Token struct {
	UID          string      `json:"uid"`
	CountryCode  string      `json:"country_code"`
	PartyID      string      `json:"party_id"`
	Type         string      `json:"type,omitempty"`
	ContractID   string      `json:"contract_id,omitempty"`
	VisualNumber string      `json:"visual_number,omitempty"`
	Issuer       string      `json:"issuer,omitempty"`
	Valid        bool        `json:"valid"`
	Whitelist    AllowedType `json:"whitelist,omitempty"`
	Language     string      `json:"language,omitempty"`
	LastUpdated  time.Time   `json:"last_updated"`
}

// Key returns the token uid.
func (t *Token) Key() string { return t.UID }

// Owner returns the owning party.
func (t *Token) Owner() (string, string) { return t.CountryCode, t.PartyID }

// Updated returns the token's last_updated timestamp.
func (t *Token) Updated() time.Time { return t.LastUpdated }

// CDR is a charge detail record: the final, immutable bill of one session.
type CDR struct {
	ID              string                   `json:"id"`
	CountryCode     string                   `json:"country_code"`
	PartyID         string                   `json:"party_id"`
	StartDate       time.Time                `json:"start_date_time,omitempty"`
	EndDate         time.Time                `json:"end_date_time,omitempty"`
	SessionID       string                   `json:"session_id,omitempty"`
	TotalCost       float64                  `json:"total_cost,omitempty"`
	TotalEnergy     float64                  `json:"total_energy,omitempty"`
	TotalTime       float64                  `json:"total_time,omitempty"`
	Currency        string                   `json:"currency,omitempty"`
	ChargingPeriods []map[string]interface{} `json:"charging_periods,omitempty"`
	LastUpdated     time.Time                `json:"last_updated"`
}

// Key returns the CDR id.
func (c *CDR) Key() string { return c.ID }

// Owner returns the owning party.
func (c *CDR) Owner() (string, string) { return c.CountryCode, c.PartyID }

// Updated returns the CDR's last_updated timestamp.
func (c *CDR) Updated() time.Time { return c.LastUpdated }
