package catalog

import (
	"context"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

// EligibleForNeutral reports whether f may draw from the neutral faction's
// catalog. The neutral faction is always eligible.
func EligibleForNeutral(f *models.Faction) bool {
	if f == nil {
		return false
	}
	if f.Neutral {
		return true
	}
	return f.CanUseNeutral
}

// Scope is the set of factions whose units and attachments f may use.
type Scope struct {
	Faction *models.Faction
	Neutral *models.Faction
}

// FactionIDs is f and, when present and distinct, the neutral faction.
func (s Scope) FactionIDs() []int64 {
	ids := []int64{s.Faction.ID}
	if s.Neutral != nil && s.Neutral.ID != s.Faction.ID {
		ids = append(ids, s.Neutral.ID)
	}
	return ids
}

// ResolveScope looks up the neutral faction when f is eligible. A dataset
// without a neutral faction scopes to f alone.
func ResolveScope(ctx context.Context, tx store.CatalogStore, f *models.Faction) (Scope, error) {
	scope := Scope{Faction: f}
	if !EligibleForNeutral(f) {
		return scope, nil
	}
	neutral, err := tx.GetNeutralFaction(ctx)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return scope, nil
		}
		return scope, err
	}
	scope.Neutral = neutral
	return scope, nil
}
