package party

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chargeweave/ocpihub/internal/audit"
	"github.com/chargeweave/ocpihub/internal/events"
	"github.com/chargeweave/ocpihub/internal/ocpi"
)

// Sentinel errors for directory operations.
var (
	// ErrPartyExists is returned by Add when the id is already registered.
	ErrPartyExists = errors.New("party already registered")

	// ErrPartyNotFound is returned when no party matches.
	ErrPartyNotFound = errors.New("party not found")

	// ErrTokenInUse is returned when an inbound token is already held by a
	// different party. Tokens identify exactly one party.
	ErrTokenInUse = errors.New("access token already in use by another party")

	// ErrInvalidParty is returned when the options describe no usable party.
	ErrInvalidParty = errors.New("invalid party definition")
)

// Options describes a party to create or replace. A single options struct
// keeps the surface stable as fields accrete.
type Options struct {
	CountryCode     string
	PartyID         string
	Role            ocpi.Role
	BusinessDetails *ocpi.BusinessDetails
	Status          Status

	AccessInfos       []AccessInfo
	RemoteAccessInfos []RemoteAccessInfo
}

// Directory holds every registered remote party under a single mutex.
// Stored values are immutable snapshots: readers get the stored pointer and
// must not mutate it, writers clone-and-swap.
type Directory struct {
	mu      sync.Mutex
	parties map[ID]*RemoteParty

	notifier *events.Notifier
	auditLog *audit.Log
	logger   *zap.Logger
}

// NewDirectory creates an empty party directory.
func NewDirectory(notifier *events.Notifier, auditLog *audit.Log, logger *zap.Logger) *Directory {
	if notifier == nil {
		panic("notifier cannot be nil")
	}
	if auditLog == nil {
		panic("audit log cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	return &Directory{
		parties:  make(map[ID]*RemoteParty),
		notifier: notifier,
		auditLog: auditLog,
		logger:   logger,
	}
}

// Add registers a new party. The id must be free and every inbound token must
// be unused directory-wide.
func (d *Directory) Add(ctx context.Context, opts Options) (*RemoteParty, error) {
	p, err := buildParty(opts)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := p.PartyKey()
	if _, ok := d.parties[id]; ok {
		return nil, ErrPartyExists
	}
	if err := d.checkTokensFreeLocked(p, nil); err != nil {
		return nil, err
	}

	d.parties[id] = p
	d.publishLocked(events.ActionAdded, p)
	d.recordLocked(ctx, p, "party_added", "success")

	return p, nil
}

// AddOrUpdate replaces the party wholesale, or creates it when absent.
// Replacement is destroy-then-recreate under one lock hold and covers the
// whole platform identity: every entry matching (CountryCode, PartyID) is
// deleted regardless of role, so a re-registration under a different role
// cannot leave a stale old-role entry and its tokens alive. No interleaved
// reader ever sees a half-replaced party. An empty opts.Role reuses the role
// of an existing entry with the same identity.
func (d *Directory) AddOrUpdate(ctx context.Context, opts Options) (*RemoteParty, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if opts.Role == "" {
		for id := range d.parties {
			if id.CountryCode == opts.CountryCode && id.PartyID == opts.PartyID {
				opts.Role = id.Role
				break
			}
		}
	}

	p, err := buildParty(opts)
	if err != nil {
		return nil, err
	}

	sameIdentity := func(id ID) bool {
		return id.CountryCode == p.CountryCode && id.PartyID == p.PartyID
	}
	if err := d.checkTokensFreeLocked(p, sameIdentity); err != nil {
		return nil, err
	}

	existed := false
	for id := range d.parties {
		if sameIdentity(id) {
			delete(d.parties, id)
			existed = true
		}
	}
	d.parties[p.PartyKey()] = p

	action := events.ActionAdded
	auditAction := "party_added"
	if existed {
		action = events.ActionChanged
		auditAction = "party_replaced"
	}
	d.publishLocked(action, p)
	d.recordLocked(ctx, p, auditAction, "success")

	return p, nil
}

// Remove deletes the party. Returns ErrPartyNotFound when absent.
func (d *Directory) Remove(ctx context.Context, id ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.parties[id]
	if !ok {
		return ErrPartyNotFound
	}

	delete(d.parties, id)
	d.publishLocked(events.ActionRemoved, p)
	d.recordLocked(ctx, p, "party_removed", "success")

	return nil
}

// RemoveAccessToken withdraws one inbound token. When it was the party's last
// token the whole party is removed: a party nobody can authenticate as is
// unreachable and therefore gone.
func (d *Directory) RemoveAccessToken(ctx context.Context, token string) (partyRemoved bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, p := range d.parties {
		if !p.HasToken(token) {
			continue
		}

		if len(p.AccessInfos) == 1 {
			delete(d.parties, id)
			d.publishLocked(events.ActionRemoved, p)
			d.recordLocked(ctx, p, "party_removed_last_token", "success")
			return true, nil
		}

		next := p.Clone()
		kept := next.AccessInfos[:0]
		for _, ai := range next.AccessInfos {
			if ai.Token != token {
				kept = append(kept, ai)
			}
		}
		next.AccessInfos = kept
		next.LastUpdated = time.Now().UTC()

		d.parties[id] = next
		d.publishLocked(events.ActionChanged, next)
		d.recordLocked(ctx, next, "access_token_removed", "success")
		return false, nil
	}

	return false, ErrPartyNotFound
}

// UpdateRemoteAccess replaces the party's outbound access info, typically
// after a registration handshake or token rotation.
func (d *Directory) UpdateRemoteAccess(ctx context.Context, id ID, infos []RemoteAccessInfo) (*RemoteParty, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.parties[id]
	if !ok {
		return nil, ErrPartyNotFound
	}

	next := p.Clone()
	next.RemoteAccessInfos = make([]RemoteAccessInfo, len(infos))
	copy(next.RemoteAccessInfos, infos)
	next.LastUpdated = time.Now().UTC()

	d.parties[id] = next
	d.publishLocked(events.ActionChanged, next)
	d.recordLocked(ctx, next, "remote_access_updated", "success")

	return next, nil
}

// SetAccessStatus sets the status of one inbound token on the party.
func (d *Directory) SetAccessStatus(ctx context.Context, id ID, token string, status AccessStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.parties[id]
	if !ok {
		return ErrPartyNotFound
	}

	next := p.Clone()
	found := false
	for i, ai := range next.AccessInfos {
		if ai.Token == token {
			next.AccessInfos[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return ErrPartyNotFound
	}
	next.LastUpdated = time.Now().UTC()

	d.parties[id] = next
	d.publishLocked(events.ActionChanged, next)
	d.recordLocked(ctx, next, "access_status_changed", "success")

	return nil
}

// Get returns the party for the full id.
func (d *Directory) Get(id ID) (*RemoteParty, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.parties[id]
	return p, ok
}

// GetByIdentity returns every role entry for the platform identity.
func (d *Directory) GetByIdentity(countryCode, partyID string) []*RemoteParty {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*RemoteParty
	for id, p := range d.parties {
		if id.CountryCode == countryCode && id.PartyID == partyID {
			out = append(out, p)
		}
	}
	return out
}

// GetByRole returns every party playing the role.
func (d *Directory) GetByRole(role ocpi.Role) []*RemoteParty {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*RemoteParty
	for id, p := range d.parties {
		if id.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// GetAll returns a snapshot of every registered party.
func (d *Directory) GetAll() []*RemoteParty {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*RemoteParty, 0, len(d.parties))
	for _, p := range d.parties {
		out = append(out, p)
	}
	return out
}

// GetByToken resolves an inbound token to its party, regardless of status.
func (d *Directory) GetByToken(token string) (*RemoteParty, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.byTokenLocked(token)
}

// TryGetAccessInfo resolves an inbound token to its access info and party.
// Callers authenticating requests check the returned status themselves:
// a BLOCKED token resolves, it just must not be admitted.
func (d *Directory) TryGetAccessInfo(token string) (AccessInfo, *RemoteParty, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byTokenLocked(token)
	if !ok {
		return AccessInfo{}, nil, false
	}
	for _, ai := range p.AccessInfos {
		if ai.Token == token {
			return ai, p, true
		}
	}
	return AccessInfo{}, nil, false
}

// Len returns the number of registered parties.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.parties)
}

func (d *Directory) byTokenLocked(token string) (*RemoteParty, bool) {
	if token == "" {
		return nil, false
	}
	for _, p := range d.parties {
		if p.HasToken(token) {
			return p, true
		}
	}
	return nil, false
}

// checkTokensFreeLocked enforces directory-wide token uniqueness: every
// inbound token of p must be unused, except by entries the caller is about to
// replace (exempt may be nil when nothing is being replaced).
func (d *Directory) checkTokensFreeLocked(p *RemoteParty, exempt func(ID) bool) error {
	for _, ai := range p.AccessInfos {
		for id, existing := range d.parties {
			if exempt != nil && exempt(id) {
				continue
			}
			if existing.HasToken(ai.Token) {
				return ErrTokenInUse
			}
		}
	}
	return nil
}

// publishLocked enqueues a party event while holding the directory lock.
func (d *Directory) publishLocked(action events.Action, p *RemoteParty) {
	d.notifier.Publish(&events.Event{
		Kind:        events.KindParty,
		Action:      action,
		EntityID:    p.PartyKey().String(),
		CountryCode: p.CountryCode,
		PartyID:     p.PartyID,
		Entity:      p,
	})
}

// recordLocked appends an audit entry before the mutation returns. Append is
// best-effort and cannot fail the mutation.
func (d *Directory) recordLocked(ctx context.Context, p *RemoteParty, action, outcome string) {
	d.auditLog.Record(ctx, &audit.Entry{
		Category:    audit.CategoryParty,
		Action:      action,
		CountryCode: p.CountryCode,
		PartyID:     p.PartyID,
		Role:        string(p.Role),
		Outcome:     outcome,
	})
}

// buildParty validates options and materializes the stored value.
func buildParty(opts Options) (*RemoteParty, error) {
	if opts.CountryCode == "" || opts.PartyID == "" {
		return nil, ErrInvalidParty
	}
	if !opts.Role.Valid() {
		return nil, ErrInvalidParty
	}
	if len(opts.AccessInfos) == 0 {
		return nil, ErrInvalidParty
	}
	for _, ai := range opts.AccessInfos {
		if ai.Token == "" {
			return nil, ErrInvalidParty
		}
	}

	status := opts.Status
	if status == "" {
		status = StatusEnabled
	}

	now := time.Now().UTC()
	p := &RemoteParty{
		CountryCode:     opts.CountryCode,
		PartyID:         opts.PartyID,
		Role:            opts.Role,
		BusinessDetails: opts.BusinessDetails,
		Status:          status,
		CreatedAt:       now,
		LastUpdated:     now,
	}
	p.AccessInfos = make([]AccessInfo, len(opts.AccessInfos))
	for i, ai := range opts.AccessInfos {
		if ai.Status == "" {
			ai.Status = AccessStatusAllowed
		}
		p.AccessInfos[i] = ai
	}
	p.RemoteAccessInfos = make([]RemoteAccessInfo, len(opts.RemoteAccessInfos))
	for i, rai := range opts.RemoteAccessInfos {
		if rai.Status == "" {
			rai.Status = ConnectionUnknown
		}
		p.RemoteAccessInfos[i] = rai
	}

	return p, nil
}
