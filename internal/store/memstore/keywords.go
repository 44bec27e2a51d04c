package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

func (t *tx) ListKeywordTypes(context.Context) ([]models.KeywordType, error) {
	return sortedByID(t.st.kwTypes, nil), nil
}

func (t *tx) GetKeywordType(_ context.Context, id int64) (*models.KeywordType, error) {
	return get(t.st.kwTypes, id, "keyword type")
}

func (t *tx) SaveKeywordType(_ context.Context, k *models.KeywordType) error {
	for id, cur := range t.st.kwTypes {
		if id != k.ID && strings.EqualFold(cur.Name, k.Name) {
			return apperr.Conflict("keyword type %q already exists", k.Name)
		}
	}
	return save(t, "keyword_types", t.st.kwTypes, &k.ID, k, "keyword type")
}

func (t *tx) DeleteKeywordType(_ context.Context, id int64) error {
	return remove(t.st.kwTypes, id, "keyword type")
}

func (t *tx) ListKeywordPairs(context.Context) ([]models.KeywordPair, error) {
	out := sortedByID(t.st.kwPairs, nil)
	sortBy(out, func(k models.KeywordPair) string { return strings.ToLower(k.Keyword) })
	return out, nil
}

func (t *tx) GetKeywordPair(_ context.Context, id int64) (*models.KeywordPair, error) {
	return get(t.st.kwPairs, id, "keyword pair")
}

func (t *tx) SaveKeywordPair(_ context.Context, k *models.KeywordPair) error {
	for id, cur := range t.st.kwPairs {
		if id != k.ID && strings.EqualFold(cur.Keyword, k.Keyword) {
			return apperr.Conflict("keyword %q already exists", k.Keyword)
		}
	}
	return save(t, "keyword_pairs", t.st.kwPairs, &k.ID, k, "keyword pair")
}

func (t *tx) DeleteKeywordPair(_ context.Context, id int64) error {
	return remove(t.st.kwPairs, id, "keyword pair")
}

// countWhere counts the rows of m that match.
func countWhere[K comparable, V any](m map[K]V, match func(V) bool) int {
	n := 0
	for _, v := range m {
		if match(v) {
			n++
		}
	}
	return n
}

func pointsAt(p *int64, id int64) bool { return p != nil && *p == id }

func (t *tx) CatalogReferences(_ context.Context, kind store.CatalogKind, id int64) (int, error) {
	st := t.st
	switch kind {
	case store.CatalogFaction:
		return countWhere(st.lists, func(l models.List) bool { return l.FactionID == id }) +
			countWhere(st.games, func(g models.Game) bool { return g.FactionID == id }) +
			countWhere(st.commanders, func(c models.Commander) bool { return c.FactionID == id }) +
			countWhere(st.units, func(u models.Unit) bool { return u.FactionID == id }) +
			countWhere(st.attachments, func(a models.Attachment) bool { return a.FactionID == id }) +
			countWhere(st.ncus, func(n models.NCU) bool { return n.FactionID == id }) +
			countWhere(st.templates, func(c models.CardTemplate) bool { return pointsAt(c.FactionID, id) }), nil
	case store.CatalogCommander:
		return countWhere(st.lists, func(l models.List) bool { return l.CommanderID == id }) +
			countWhere(st.listUnits, func(lu models.ListUnit) bool { return pointsAt(lu.CommanderID, id) }) +
			countWhere(st.games, func(g models.Game) bool { return g.CommanderID == id }) +
			countWhere(st.units, func(u models.Unit) bool { return pointsAt(u.AttachedCommanderID, id) }) +
			countWhere(st.templates, func(c models.CardTemplate) bool { return pointsAt(c.CommanderID, id) }), nil
	case store.CatalogUnit:
		return countWhere(st.listUnits, func(lu models.ListUnit) bool { return lu.UnitID == id }), nil
	case store.CatalogAttachment:
		return countWhere(st.listUnits, func(lu models.ListUnit) bool { return slices.Contains(lu.AttachmentIDs, id) }), nil
	case store.CatalogNCU:
		return countWhere(st.listNCUs, func(ln models.ListNCU) bool { return ln.NCUID == id }), nil
	case store.CatalogCardTemplate:
		return countWhere(st.cards, func(c models.PlayerCard) bool { return c.CardTemplateID == id }) +
			countWhere(st.stats, func(s models.UserCardStats) bool { return s.CardTemplateID == id }) +
			countWhere(st.templates, func(c models.CardTemplate) bool { return pointsAt(c.ReplacesID, id) }), nil
	case store.CatalogKeywordType:
		return countWhere(st.kwPairs, func(k models.KeywordPair) bool { return pointsAt(k.KeywordTypeID, id) }), nil
	}
	return 0, fmt.Errorf("no reference count for %s", kind)
}
