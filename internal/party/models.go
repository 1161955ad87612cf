// Package party is the registry of remote OCPI platforms this gateway talks
// to. Each party carries the inbound access tokens it may call us with and the
// outbound access info we use to call it. The directory is the source of
// truth for request authentication.
package party

import (
	"time"

	"github.com/chargeweave/ocpihub/internal/ocpi"
)

// Status is the administrative state of a registered party.
type Status string

const (
	// StatusEnabled means the party may exchange data.
	StatusEnabled Status = "ENABLED"

	// StatusDisabled means the party is administratively suspended.
	StatusDisabled Status = "DISABLED"
)

// AccessStatus is the state of one inbound access token.
type AccessStatus string

const (
	// AccessStatusAllowed means requests bearing the token are accepted.
	AccessStatusAllowed AccessStatus = "ALLOWED"

	// AccessStatusBlocked means requests bearing the token are rejected.
	AccessStatusBlocked AccessStatus = "BLOCKED"

	// AccessStatusUnknown means the token has not completed registration.
	AccessStatusUnknown AccessStatus = "UNKNOWN"
)

// ConnectionStatus is the last observed reachability of a remote platform.
type ConnectionStatus string

const (
	// ConnectionOnline means the last outbound exchange succeeded.
	ConnectionOnline ConnectionStatus = "ONLINE"

	// ConnectionOffline means the last outbound exchange failed.
	ConnectionOffline ConnectionStatus = "OFFLINE"

	// ConnectionUnknown means no outbound exchange has happened yet.
	ConnectionUnknown ConnectionStatus = "UNKNOWN"
)

// ID identifies a party entry: OCPI party identity plus the role it plays
// towards us. The same platform may register once per role.
type ID struct {
	CountryCode string
	PartyID     string
	Role        ocpi.Role
}

// String renders the id for logs.
func (id ID) String() string {
	return id.CountryCode + "*" + id.PartyID + "/" + string(id.Role)
}

// AccessInfo is one inbound token the party may authenticate with.
type AccessInfo struct {
	Token  string       `json:"token"`
	Status AccessStatus `json:"status"`
}

// RemoteAccessInfo is the outbound side: the token we present to the remote
// platform and what version discovery against it yielded.
type RemoteAccessInfo struct {
	Token           string               `json:"token"`
	VersionsURL     string               `json:"versions_url"`
	VersionIDs      []ocpi.VersionNumber `json:"version_ids,omitempty"`
	SelectedVersion ocpi.VersionNumber   `json:"selected_version,omitempty"`
	Endpoints       []ocpi.Endpoint      `json:"endpoints,omitempty"`
	Status          ConnectionStatus     `json:"status"`
	LastExchangeAt  time.Time            `json:"last_exchange_at,omitempty"`
}

// RemoteParty is one registered remote platform. Values held by the directory
// are immutable: mutations build a replacement and swap it in.
type RemoteParty struct {
	CountryCode     string                `json:"country_code"`
	PartyID         string                `json:"party_id"`
	Role            ocpi.Role             `json:"role"`
	BusinessDetails *ocpi.BusinessDetails `json:"business_details,omitempty"`
	Status          Status                `json:"status"`

	AccessInfos       []AccessInfo       `json:"access_infos"`
	RemoteAccessInfos []RemoteAccessInfo `json:"remote_access_infos,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// PartyKey returns the directory id of the party.
func (p *RemoteParty) PartyKey() ID {
	return ID{CountryCode: p.CountryCode, PartyID: p.PartyID, Role: p.Role}
}

// Clone returns a deep copy of the party.
func (p *RemoteParty) Clone() *RemoteParty {
	if p == nil {
		return nil
	}
	out := *p
	if p.BusinessDetails != nil {
		bd := *p.BusinessDetails
		out.BusinessDetails = &bd
	}
	out.AccessInfos = append([]AccessInfo(nil), p.AccessInfos...)
	out.RemoteAccessInfos = make([]RemoteAccessInfo, len(p.RemoteAccessInfos))
	for i, rai := range p.RemoteAccessInfos {
		out.RemoteAccessInfos[i] = rai
		out.RemoteAccessInfos[i].VersionIDs = append([]ocpi.VersionNumber(nil), rai.VersionIDs...)
		out.RemoteAccessInfos[i].Endpoints = append([]ocpi.Endpoint(nil), rai.Endpoints...)
	}
	return &out
}

// HasToken reports whether the party holds the inbound token.
func (p *RemoteParty) HasToken(token string) bool {
	for _, ai := range p.AccessInfos {
		if ai.Token == token {
			return true
		}
	}
	return false
}
