// Package registration implements the OCPI credentials handshake: the token
// exchange through which two platforms establish mutual authenticated access.
// The gateway provisions a token A out of band; the peer POSTs its
// credentials (token B) here; the gateway discovers the peer's versions,
// mints a token C for the peer's future requests, and withdraws token A.
package registration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chargeweave/ocpihub/internal/audit"
	"github.com/chargeweave/ocpihub/internal/ocpi"
	"github.com/chargeweave/ocpihub/internal/party"
)

// ErrNotAllowed is returned for a credentials operation issued in the wrong
// handshake state, e.g. a second POST with an already registered token.
var ErrNotAllowed = errors.New("operation not allowed in current registration state")

// State is the registration state of one access token.
type State string

const (
	// StateUnregistered means the token resolves to no party.
	StateUnregistered State = "UNREGISTERED"

	// StatePending means the token was provisioned but the handshake has not
	// completed: the party has no remote access info yet.
	StatePending State = "PENDING"

	// StateRegistered means the handshake completed.
	StateRegistered State = "REGISTERED"
)

// placeholderToken is returned by credential reads when the caller has no
// token on file. It never authenticates.
const placeholderToken = "to-be-generated"

// Identity is this gateway's own OCPI identity, advertised in every
// credentials response.
type Identity struct {
	CountryCode     string
	PartyID         string
	Role            ocpi.Role
	BusinessDetails ocpi.BusinessDetails
	VersionsURL     string
}

// Handshake drives the credentials state machine against the party directory.
type Handshake struct {
	identity  Identity
	directory *party.Directory
	client    *VersionsClient
	auditLog  *audit.Log
	logger    *zap.Logger
}

// NewHandshake creates the handshake service.
func NewHandshake(identity Identity, directory *party.Directory, client *VersionsClient, auditLog *audit.Log, logger *zap.Logger) *Handshake {
	if directory == nil {
		panic("directory cannot be nil")
	}
	if client == nil {
		panic("versions client cannot be nil")
	}
	if auditLog == nil {
		panic("audit log cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	return &Handshake{
		identity:  identity,
		directory: directory,
		client:    client,
		auditLog:  auditLog,
		logger:    logger,
	}
}

// StateOf classifies a caller's registration state.
func (h *Handshake) StateOf(p *party.RemoteParty) State {
	switch {
	case p == nil:
		return StateUnregistered
	case len(p.RemoteAccessInfos) == 0:
		return StatePending
	default:
		return StateRegistered
	}
}

// Credentials renders this gateway's credentials object carrying the given
// token. An empty token yields a placeholder: the read never invents a real
// token.
func (h *Handshake) Credentials(token string) *ocpi.Credentials {
	if token == "" {
		token = placeholderToken
	}
	return &ocpi.Credentials{
		Token:           token,
		URL:             h.identity.VersionsURL,
		BusinessDetails: h.identity.BusinessDetails,
		CountryCode:     h.identity.CountryCode,
		PartyID:         h.identity.PartyID,
	}
}

// Register completes a fresh handshake (POST). The caller must be in Pending:
// a registered token must DELETE or PUT instead, and the state check runs
// before any outbound call. On success the caller's provisioned token is
// withdrawn and replaced by a newly minted one, returned inside our
// credentials. The registration is all-or-nothing: a discovery failure leaves
// the directory untouched.
func (h *Handshake) Register(ctx context.Context, caller *party.RemoteParty, callerToken string, peer *ocpi.Credentials) (*ocpi.Credentials, error) {
	if h.StateOf(caller) != StatePending {
		RecordHandshake("register", "rejected")
		return nil, ErrNotAllowed
	}

	return h.exchange(ctx, caller, callerToken, peer, "register")
}

// Rotate re-runs the handshake for a registered caller (PUT): fresh version
// discovery, fresh token, old token withdrawn.
func (h *Handshake) Rotate(ctx context.Context, caller *party.RemoteParty, callerToken string, peer *ocpi.Credentials) (*ocpi.Credentials, error) {
	if h.StateOf(caller) != StateRegistered {
		RecordHandshake("rotate", "rejected")
		return nil, ErrNotAllowed
	}

	return h.exchange(ctx, caller, callerToken, peer, "rotate")
}

// Unregister tears the registration down (DELETE). The caller's token is
// withdrawn; when it was the party's last token the party is removed.
func (h *Handshake) Unregister(ctx context.Context, caller *party.RemoteParty, callerToken string) error {
	if h.StateOf(caller) != StateRegistered {
		RecordHandshake("unregister", "rejected")
		return ErrNotAllowed
	}

	if _, err := h.directory.RemoveAccessToken(ctx, callerToken); err != nil {
		RecordHandshake("unregister", "error")
		return err
	}

	RecordHandshake("unregister", "success")
	h.auditLog.Record(ctx, &audit.Entry{
		Category:    audit.CategoryRegistration,
		Action:      "unregistered",
		CountryCode: caller.CountryCode,
		PartyID:     caller.PartyID,
		Role:        string(caller.Role),
	})
	h.logger.Info("party unregistered",
		zap.String("country_code", caller.CountryCode),
		zap.String("party_id", caller.PartyID),
	)

	return nil
}

// exchange runs the outbound discovery and the directory swap shared by
// Register and Rotate.
func (h *Handshake) exchange(ctx context.Context, caller *party.RemoteParty, callerToken string, peer *ocpi.Credentials, operation string) (*ocpi.Credentials, error) {
	remote, err := h.discover(ctx, peer)
	if err != nil {
		RecordHandshake(operation, "discovery_failed")
		h.auditLog.Record(ctx, &audit.Entry{
			Category:    audit.CategoryRegistration,
			Action:      operation + "_failed",
			CountryCode: peer.CountryCode,
			PartyID:     peer.PartyID,
			Outcome:     "failure",
			Details:     map[string]string{"error": err.Error()},
		})
		return nil, err
	}

	tokenC := uuid.New().String()
	business := peer.BusinessDetails

	_, err = h.directory.AddOrUpdate(ctx, party.Options{
		CountryCode:       peer.CountryCode,
		PartyID:           peer.PartyID,
		Role:              caller.Role,
		BusinessDetails:   &business,
		Status:            party.StatusEnabled,
		AccessInfos:       []party.AccessInfo{{Token: tokenC, Status: party.AccessStatusAllowed}},
		RemoteAccessInfos: []party.RemoteAccessInfo{*remote},
	})
	if err != nil {
		RecordHandshake(operation, "error")
		return nil, err
	}

	// The provisioned token dies with the handshake. When the directory swap
	// already replaced its entry the token is gone, which is fine.
	if _, err := h.directory.RemoveAccessToken(ctx, callerToken); err != nil && !errors.Is(err, party.ErrPartyNotFound) {
		h.logger.Warn("failed to withdraw provisioned token", zap.Error(err))
	}

	RecordHandshake(operation, "success")
	h.auditLog.Record(ctx, &audit.Entry{
		Category:    audit.CategoryRegistration,
		Action:      operation + "_completed",
		CountryCode: peer.CountryCode,
		PartyID:     peer.PartyID,
		Role:        string(caller.Role),
	})
	h.logger.Info("credentials handshake completed",
		zap.String("operation", operation),
		zap.String("country_code", peer.CountryCode),
		zap.String("party_id", peer.PartyID),
	)

	return h.Credentials(tokenC), nil
}

// discover fetches the peer's version list, requires our version in it, and
// fetches that version's endpoint list.
func (h *Handshake) discover(ctx context.Context, peer *ocpi.Credentials) (*party.RemoteAccessInfo, error) {
	versions, err := h.client.GetVersions(ctx, peer.URL, peer.Token)
	if err != nil {
		return nil, err
	}

	ids := make([]ocpi.VersionNumber, 0, len(versions))
	detailsURL := ""
	for _, v := range versions {
		ids = append(ids, v.Version)
		if v.Version == ocpi.ImplementedVersion {
			detailsURL = v.URL
		}
	}
	if detailsURL == "" {
		return nil, ErrUnsupportedVersion
	}

	details, err := h.client.GetVersionDetails(ctx, detailsURL, peer.Token)
	if err != nil {
		return nil, err
	}

	return &party.RemoteAccessInfo{
		Token:           peer.Token,
		VersionsURL:     peer.URL,
		VersionIDs:      ids,
		SelectedVersion: ocpi.ImplementedVersion,
		Endpoints:       details.Endpoints,
		Status:          party.ConnectionOnline,
		LastExchangeAt:  time.Now().UTC(),
	}, nil
}
