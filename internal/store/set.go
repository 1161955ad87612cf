package store

import (
	"go.uber.org/zap"

	"github.com/chargeweave/ocpihub/internal/events"
)

// Set bundles one store per entity kind, all publishing to the same notifier.
type Set struct {
	Locations *LocationStore
	Tariffs   *Store[*Tariff]
	Sessions  *Store[*Session]
	Tokens    *Store[*Token]
	CDRs      *Store[*CDR]
}

// NewSet creates the full store set with a shared downgrade policy.
func NewSet(notifier *events.Notifier, allowDowngrades bool, keepRemoved KeepRemovedEvsePredicate, logger *zap.Logger) *Set {
	return &Set{
		Locations: NewLocationStore(notifier, allowDowngrades, keepRemoved, logger),
		Tariffs:   New[*Tariff](events.KindTariff, notifier, allowDowngrades, logger),
		Sessions:  New[*Session](events.KindSession, notifier, allowDowngrades, logger),
		Tokens:    New[*Token](events.KindToken, notifier, allowDowngrades, logger),
		CDRs:      New[*CDR](events.KindCDR, notifier, allowDowngrades, logger),
	}
}
