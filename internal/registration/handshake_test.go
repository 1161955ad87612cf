package registration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chargeweave/ocpihub/internal/audit"
	"github.com/chargeweave/ocpihub/internal/events"
	"github.com/chargeweave/ocpihub/internal/ocpi"
	"github.com/chargeweave/ocpihub/internal/party"
)

// mockPeer serves a peer platform's version discovery endpoints and counts
// the requests it receives.
type mockPeer struct {
	server   *httptest.Server
	requests atomic.Int64

	versions      []ocpi.VersionNumber
	expectedToken string
}

func newMockPeer(t *testing.T, versions ...ocpi.VersionNumber) *mockPeer {
	t.Helper()
	p := &mockPeer{versions: versions, expectedToken: "token-b"}

	mux := http.NewServeMux()
	mux.HandleFunc("/ocpi/versions", func(w http.ResponseWriter, r *http.Request) {
		p.requests.Add(1)
		if r.Header.Get("Authorization") != "Token "+p.expectedToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		list := make([]ocpi.Version, 0, len(p.versions))
		for _, v := range p.versions {
			list = append(list, ocpi.Version{Version: v, URL: p.server.URL + "/ocpi/" + string(v)})
		}
		writeEnvelope(w, list)
	})
	mux.HandleFunc("/ocpi/2.2", func(w http.ResponseWriter, r *http.Request) {
		p.requests.Add(1)
		writeEnvelope(w, ocpi.VersionDetails{
			Version: ocpi.ImplementedVersion,
			Endpoints: []ocpi.Endpoint{{
				Identifier: ocpi.ModuleCredentials,
				URL:        p.server.URL + "/ocpi/2.2/credentials",
			}},
		})
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *mockPeer) versionsURL() string { return p.server.URL + "/ocpi/versions" }

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ocpi.NewEnvelope(data))
}

type handshakeFixture struct {
	handshake *Handshake
	directory *party.Directory
}

func newFixture(t *testing.T) *handshakeFixture {
	t.Helper()
	n := events.NewNotifier(zaptest.NewLogger(t), 0)
	t.Cleanup(func() { _ = n.Close() })

	log := audit.NewLog(audit.NopSink{}, zaptest.NewLogger(t))
	dir := party.NewDirectory(n, log, zaptest.NewLogger(t))

	identity := Identity{
		CountryCode:     "NL",
		PartyID:         "HUB",
		Role:            ocpi.RoleEMSP,
		BusinessDetails: ocpi.BusinessDetails{Name: "ChargeWeave Hub"},
		VersionsURL:     "https://hub.example.com/ocpi/versions",
	}
	client := NewVersionsClient(2*time.Second, zaptest.NewLogger(t))

	return &handshakeFixture{
		handshake: NewHandshake(identity, dir, client, log, zaptest.NewLogger(t)),
		directory: dir,
	}
}

// provision creates the pending party that holds the out-of-band token A.
func (f *handshakeFixture) provision(t *testing.T, tokenA string) *party.RemoteParty {
	t.Helper()
	p, err := f.directory.Add(context.Background(), party.Options{
		CountryCode: "DE",
		PartyID:     "CPO",
		Role:        ocpi.RoleCPO,
		AccessInfos: []party.AccessInfo{{Token: tokenA, Status: party.AccessStatusAllowed}},
	})
	require.NoError(t, err)
	return p
}

func peerCredentials(peer *mockPeer) *ocpi.Credentials {
	return &ocpi.Credentials{
		Token:           "token-b",
		URL:             peer.versionsURL(),
		BusinessDetails: ocpi.BusinessDetails{Name: "Example CPO"},
		CountryCode:     "DE",
		PartyID:         "CPO",
	}
}

func TestHandshake_Register(t *testing.T) {
	f := newFixture(t)
	peer := newMockPeer(t, ocpi.ImplementedVersion)
	caller := f.provision(t, "token-a")

	got, err := f.handshake.Register(context.Background(), caller, "token-a", peerCredentials(peer))
	require.NoError(t, err)

	// The response carries our identity and a freshly minted token.
	assert.Equal(t, "NL", got.CountryCode)
	assert.Equal(t, "HUB", got.PartyID)
	assert.NotEmpty(t, got.Token)
	assert.NotEqual(t, "token-a", got.Token)
	assert.Equal(t, "https://hub.example.com/ocpi/versions", got.URL)

	// Token A is withdrawn, the new token resolves to the registered party.
	_, ok := f.directory.GetByToken("token-a")
	assert.False(t, ok)

	registered, ok := f.directory.GetByToken(got.Token)
	require.True(t, ok)
	assert.Equal(t, StateRegistered, f.handshake.StateOf(registered))
	assert.Equal(t, ocpi.RoleCPO, registered.Role)
	require.Len(t, registered.RemoteAccessInfos, 1)

	remote := registered.RemoteAccessInfos[0]
	assert.Equal(t, "token-b", remote.Token)
	assert.Equal(t, peer.versionsURL(), remote.VersionsURL)
	assert.Equal(t, ocpi.ImplementedVersion, remote.SelectedVersion)
	assert.Equal(t, party.ConnectionOnline, remote.Status)
}

func TestHandshake_Register_DoublePostRejectedBeforeOutboundCall(t *testing.T) {
	f := newFixture(t)
	peer := newMockPeer(t, ocpi.ImplementedVersion)
	caller := f.provision(t, "token-a")

	got, err := f.handshake.Register(context.Background(), caller, "token-a", peerCredentials(peer))
	require.NoError(t, err)
	requestsAfterFirst := peer.requests.Load()

	registered, ok := f.directory.GetByToken(got.Token)
	require.True(t, ok)

	_, err = f.handshake.Register(context.Background(), registered, got.Token, peerCredentials(peer))
	require.ErrorIs(t, err, ErrNotAllowed)

	// The rejection happened before any outbound discovery.
	assert.Equal(t, requestsAfterFirst, peer.requests.Load())
}

func TestHandshake_Register_UnsupportedVersion(t *testing.T) {
	f := newFixture(t)
	peer := newMockPeer(t, ocpi.VersionNumber("2.1.1"))
	caller := f.provision(t, "token-a")

	_, err := f.handshake.Register(context.Background(), caller, "token-a", peerCredentials(peer))
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	// All-or-nothing: the pending party and its token survive untouched.
	p, ok := f.directory.GetByToken("token-a")
	require.True(t, ok)
	assert.Equal(t, StatePending, f.handshake.StateOf(p))
}

func TestHandshake_Register_UpstreamUnavailable(t *testing.T) {
	f := newFixture(t)
	caller := f.provision(t, "token-a")

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)

	creds := &ocpi.Credentials{
		Token:           "token-b",
		URL:             failing.URL + "/ocpi/versions",
		BusinessDetails: ocpi.BusinessDetails{Name: "Example CPO"},
		CountryCode:     "DE",
		PartyID:         "CPO",
	}
	_, err := f.handshake.Register(context.Background(), caller, "token-a", creds)
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	_, ok := f.directory.GetByToken("token-a")
	assert.True(t, ok)
}

func TestHandshake_Rotate(t *testing.T) {
	f := newFixture(t)
	peer := newMockPeer(t, ocpi.ImplementedVersion)
	caller := f.provision(t, "token-a")

	first, err := f.handshake.Register(context.Background(), caller, "token-a", peerCredentials(peer))
	require.NoError(t, err)

	registered, ok := f.directory.GetByToken(first.Token)
	require.True(t, ok)

	second, err := f.handshake.Rotate(context.Background(), registered, first.Token, peerCredentials(peer))
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, ok = f.directory.GetByToken(first.Token)
	assert.False(t, ok)
	_, ok = f.directory.GetByToken(second.Token)
	assert.True(t, ok)
}

func TestHandshake_Rotate_RequiresRegistered(t *testing.T) {
	f := newFixture(t)
	peer := newMockPeer(t, ocpi.ImplementedVersion)
	caller := f.provision(t, "token-a")

	_, err := f.handshake.Rotate(context.Background(), caller, "token-a", peerCredentials(peer))
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Zero(t, peer.requests.Load())
}

func TestHandshake_Unregister(t *testing.T) {
	f := newFixture(t)
	peer := newMockPeer(t, ocpi.ImplementedVersion)
	caller := f.provision(t, "token-a")

	got, err := f.handshake.Register(context.Background(), caller, "token-a", peerCredentials(peer))
	require.NoError(t, err)

	registered, ok := f.directory.GetByToken(got.Token)
	require.True(t, ok)

	require.NoError(t, f.handshake.Unregister(context.Background(), registered, got.Token))

	// The party held a single token, so it is gone entirely.
	assert.Equal(t, 0, f.directory.Len())

	err = f.handshake.Unregister(context.Background(), caller, "token-a")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestHandshake_StateOf(t *testing.T) {
	f := newFixture(t)
	caller := f.provision(t, "token-a")

	assert.Equal(t, StateUnregistered, f.handshake.StateOf(nil))
	assert.Equal(t, StatePending, f.handshake.StateOf(caller))
}

func TestHandshake_Credentials_Placeholder(t *testing.T) {
	f := newFixture(t)

	got := f.handshake.Credentials("")
	assert.Equal(t, placeholderToken, got.Token)

	got = f.handshake.Credentials("token-c")
	assert.Equal(t, "token-c", got.Token)
}
