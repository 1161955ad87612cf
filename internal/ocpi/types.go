// Package ocpi defines the wire-level types shared by every OCPI module:
// party roles, module identifiers, the response envelope, and the
// Credentials object exchanged during registration.
package ocpi

import "time"

// VersionNumber identifies an OCPI protocol version.
type VersionNumber string

// ImplementedVersion is the single OCPI version this gateway speaks.
const ImplementedVersion VersionNumber = "2.2"

// String returns the string representation of the VersionNumber.
func (v VersionNumber) String() string {
	return string(v)
}

// Role identifies the business role of a party on the OCPI network.
type Role string

const (
	// RoleCPO is a Charge Point Operator, owner of physical Locations and EVSEs.
	RoleCPO Role = "CPO"

	// RoleEMSP is an e-Mobility Service Provider, owner of driver Tokens and Sessions.
	RoleEMSP Role = "EMSP"
)

// Valid reports whether the role is one of the supported values.
func (r Role) Valid() bool {
	return r == RoleCPO || r == RoleEMSP
}

// InterfaceRole is the side of a module interface an endpoint implements.
// A CPO exposes its modules under "cpo/", an EMSP under "emsp/".
type InterfaceRole string

const (
	// InterfaceRoleCPO marks endpoints we expose acting as a CPO.
	InterfaceRoleCPO InterfaceRole = "cpo"

	// InterfaceRoleEMSP marks endpoints we expose acting as an EMSP.
	InterfaceRoleEMSP InterfaceRole = "emsp"
)

// ModuleID identifies an OCPI functional module.
type ModuleID string

const (
	// ModuleCredentials is the registration/credentials module.
	ModuleCredentials ModuleID = "credentials"

	// ModuleLocations is the locations module.
	ModuleLocations ModuleID = "locations"

	// ModuleTariffs is the tariffs module.
	ModuleTariffs ModuleID = "tariffs"

	// ModuleSessions is the sessions module.
	ModuleSessions ModuleID = "sessions"

	// ModuleCDRs is the charge-detail-records module.
	ModuleCDRs ModuleID = "cdrs"

	// ModuleCommands is the commands module.
	ModuleCommands ModuleID = "commands"

	// ModuleTokens is the tokens module.
	ModuleTokens ModuleID = "tokens"
)

// OCPI status codes carried in the response envelope.
// 1xxx = success, 2xxx = client error, 3xxx = server error.
const (
	// StatusSuccess indicates the request was handled successfully.
	StatusSuccess = 1000

	// StatusClientError is the generic client error.
	StatusClientError = 2000

	// StatusInvalidParameters indicates missing or unparsable parameters.
	StatusInvalidParameters = 2001

	// StatusServerError is the generic server error.
	StatusServerError = 3000

	// StatusUnsupportedVersion indicates no mutually supported protocol version.
	StatusUnsupportedVersion = 3002

	// StatusNotSupported indicates a module or operation this party does not implement.
	StatusNotSupported = 3001
)

// Envelope is the uniform OCPI response wrapper. Every response, success or
// failure, is serialized as an Envelope.
type Envelope struct {
	Data          interface{} `json:"data,omitempty"`
	StatusCode    int         `json:"status_code"`
	StatusMessage string      `json:"status_message,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewEnvelope wraps data in a success envelope.
func NewEnvelope(data interface{}) *Envelope {
	return &Envelope{
		Data:          data,
		StatusCode:    StatusSuccess,
		StatusMessage: "Success",
		Timestamp:     time.Now().UTC(),
	}
}

// NewErrorEnvelope builds a failure envelope with the given OCPI status code.
func NewErrorEnvelope(code int, message string) *Envelope {
	return &Envelope{
		StatusCode:    code,
		StatusMessage: message,
		Timestamp:     time.Now().UTC(),
	}
}

// BusinessDetails describes a party's public identity.
type BusinessDetails struct {
	Name    string `json:"name" binding:"required"`
	Website string `json:"website,omitempty"`
}

// Credentials is the object exchanged by the credentials module. The token is
// the one the receiving party must use on subsequent requests to the sender.
type Credentials struct {
	Token           string          `json:"token" binding:"required"`
	URL             string          `json:"url" binding:"required"`
	BusinessDetails BusinessDetails `json:"business_details"`
	CountryCode     string          `json:"country_code" binding:"required"`
	PartyID         string          `json:"party_id" binding:"required"`
}

// Version is one entry of the version list returned by GET /versions.
type Version struct {
	Version VersionNumber `json:"version"`
	URL     string        `json:"url"`
}

// Endpoint is one advertised module endpoint of a version.
type Endpoint struct {
	Identifier ModuleID      `json:"identifier"`
	Role       InterfaceRole `json:"role,omitempty"`
	URL        string        `json:"url"`
}

// VersionDetails is the response of GET /versions/{id}.
type VersionDetails struct {
	Version   VersionNumber `json:"version"`
	Endpoints []Endpoint    `json:"endpoints"`
}
