package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chargeweave/ocpihub/internal/ocpi"
)

const baseURL = "https://hub.example.com/ocpi"

func endpointIdentifiers(eps []ocpi.Endpoint) []string {
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		out = append(out, string(ep.Identifier))
	}
	return out
}

func TestNegotiator_Versions(t *testing.T) {
	n := NewNegotiator(baseURL+"/", ocpi.RoleCPO, false)

	got := n.Versions()
	require.Len(t, got, 1)
	assert.Equal(t, ocpi.ImplementedVersion, got[0].Version)
	assert.Equal(t, baseURL+"/versions/2.2", got[0].URL)
}

func TestNegotiator_Details(t *testing.T) {
	tests := []struct {
		name            string
		callerRole      ocpi.Role
		ownRole         ocpi.Role
		openData        bool
		wantSide        ocpi.InterfaceRole
		wantIdentifiers []string
	}{
		{
			name:       "cpo caller gets emsp side modules",
			callerRole: ocpi.RoleCPO,
			ownRole:    ocpi.RoleEMSP,
			wantSide:   ocpi.InterfaceRoleEMSP,
			wantIdentifiers: []string{
				"credentials", "locations", "tariffs", "sessions", "cdrs", "commands", "tokens",
			},
		},
		{
			name:       "emsp caller gets cpo side modules",
			callerRole: ocpi.RoleEMSP,
			ownRole:    ocpi.RoleCPO,
			wantSide:   ocpi.InterfaceRoleCPO,
			wantIdentifiers: []string{
				"credentials", "locations", "tariffs", "sessions", "cdrs", "commands", "tokens",
			},
		},
		{
			name:            "anonymous caller gets credentials only",
			callerRole:      "",
			ownRole:         ocpi.RoleCPO,
			wantIdentifiers: []string{"credentials"},
		},
		{
			name:            "anonymous caller with open data gets locations",
			callerRole:      "",
			ownRole:         ocpi.RoleCPO,
			openData:        true,
			wantSide:        ocpi.InterfaceRoleCPO,
			wantIdentifiers: []string{"credentials", "locations"},
		},
		{
			name:            "open data does not apply to emsp gateways",
			callerRole:      "",
			ownRole:         ocpi.RoleEMSP,
			openData:        true,
			wantIdentifiers: []string{"credentials"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNegotiator(baseURL, tt.ownRole, tt.openData)

			got, err := n.Details(ocpi.ImplementedVersion, tt.callerRole)
			require.NoError(t, err)
			assert.Equal(t, ocpi.ImplementedVersion, got.Version)
			assert.Equal(t, tt.wantIdentifiers, endpointIdentifiers(got.Endpoints))

			for _, ep := range got.Endpoints {
				if ep.Identifier == ocpi.ModuleCredentials {
					assert.Empty(t, ep.Role)
					assert.Equal(t, baseURL+"/2.2/credentials", ep.URL)
					continue
				}
				assert.Equal(t, tt.wantSide, ep.Role)
				assert.Contains(t, ep.URL, baseURL+"/2.2/"+string(tt.wantSide)+"/")
			}
		})
	}
}

func TestNegotiator_Details_UnknownVersion(t *testing.T) {
	n := NewNegotiator(baseURL, ocpi.RoleCPO, false)

	_, err := n.Details(ocpi.VersionNumber("2.1.1"), ocpi.RoleCPO)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}
