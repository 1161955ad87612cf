// Package versions builds the version list and per-version endpoint lists the
// gateway advertises, tailored to the authenticated caller's role.
package versions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chargeweave/ocpihub/internal/ocpi"
)

// ErrUnknownVersion is returned for version ids the gateway does not speak.
var ErrUnknownVersion = errors.New("unknown version")

// dataModules are the module endpoints offered alongside credentials once a
// caller's role is known.
var dataModules = []ocpi.ModuleID{
	ocpi.ModuleLocations,
	ocpi.ModuleTariffs,
	ocpi.ModuleSessions,
	ocpi.ModuleCDRs,
	ocpi.ModuleCommands,
	ocpi.ModuleTokens,
}

// Negotiator renders version discovery responses. baseURL is the externally
// reachable URL the gateway is mounted at, including the path prefix.
type Negotiator struct {
	baseURL         string
	ownRole         ocpi.Role
	locationsAsOpen bool
}

// NewNegotiator creates a Negotiator. locationsAsOpenData additionally offers
// the locations endpoint to anonymous callers when our role is CPO.
func NewNegotiator(baseURL string, ownRole ocpi.Role, locationsAsOpenData bool) *Negotiator {
	return &Negotiator{
		baseURL:         strings.TrimRight(baseURL, "/"),
		ownRole:         ownRole,
		locationsAsOpen: locationsAsOpenData,
	}
}

// Versions returns the advertised version list. The gateway speaks exactly
// one version.
func (n *Negotiator) Versions() []ocpi.Version {
	return []ocpi.Version{{
		Version: ocpi.ImplementedVersion,
		URL:     fmt.Sprintf("%s/versions/%s", n.baseURL, ocpi.ImplementedVersion),
	}}
}

// Details returns the endpoint list of one version for the given caller role.
// callerRole is empty for anonymous callers. Unknown version ids yield
// ErrUnknownVersion.
func (n *Negotiator) Details(version ocpi.VersionNumber, callerRole ocpi.Role) (*ocpi.VersionDetails, error) {
	if version != ocpi.ImplementedVersion {
		return nil, ErrUnknownVersion
	}

	endpoints := []ocpi.Endpoint{{
		Identifier: ocpi.ModuleCredentials,
		URL:        n.moduleURL(version, "", ocpi.ModuleCredentials),
	}}

	switch {
	case callerRole == ocpi.RoleCPO:
		// A CPO pushes its data to our EMSP-side interface.
		endpoints = append(endpoints, n.moduleEndpoints(version, ocpi.InterfaceRoleEMSP)...)
	case callerRole == ocpi.RoleEMSP:
		// An EMSP reads and pushes through our CPO-side interface.
		endpoints = append(endpoints, n.moduleEndpoints(version, ocpi.InterfaceRoleCPO)...)
	case n.locationsAsOpen && n.ownRole == ocpi.RoleCPO:
		endpoints = append(endpoints, ocpi.Endpoint{
			Identifier: ocpi.ModuleLocations,
			Role:       ocpi.InterfaceRoleCPO,
			URL:        n.moduleURL(version, ocpi.InterfaceRoleCPO, ocpi.ModuleLocations),
		})
	}

	return &ocpi.VersionDetails{Version: version, Endpoints: endpoints}, nil
}

func (n *Negotiator) moduleEndpoints(version ocpi.VersionNumber, side ocpi.InterfaceRole) []ocpi.Endpoint {
	out := make([]ocpi.Endpoint, 0, len(dataModules))
	for _, m := range dataModules {
		out = append(out, ocpi.Endpoint{
			Identifier: m,
			Role:       side,
			URL:        n.moduleURL(version, side, m),
		})
	}
	return out
}

func (n *Negotiator) moduleURL(version ocpi.VersionNumber, side ocpi.InterfaceRole, module ocpi.ModuleID) string {
	if side == "" {
		return fmt.Sprintf("%s/%s/%s", n.baseURL, version, module)
	}
	return fmt.Sprintf("%s/%s/%s/%s", n.baseURL, version, side, module)
}
