package memstore

import (
	"context"
	"slices"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

// save inserts v under a fresh id when *id is zero, otherwise replaces the row.
func save[V any](t *tx, table string, m map[int64]V, id *int64, v *V, what string) error {
	if *id == 0 {
		*id = t.st.nextID(table)
	} else if _, ok := m[*id]; !ok {
		return apperr.NotFound("%s not found", what)
	}
	m[*id] = *v
	return nil
}

func get[V any](m map[int64]V, id int64, what string) (*V, error) {
	v, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("%s not found", what)
	}
	return &v, nil
}

func remove[V any](m map[int64]V, id int64, what string) error {
	if _, ok := m[id]; !ok {
		return apperr.NotFound("%s not found", what)
	}
	delete(m, id)
	return nil
}

func (t *tx) ListFactions(context.Context) ([]models.Faction, error) {
	return sortedByID(t.st.factions, nil), nil
}

func (t *tx) GetFaction(_ context.Context, id int64) (*models.Faction, error) {
	return get(t.st.factions, id, "faction")
}

func (t *tx) GetNeutralFaction(context.Context) (*models.Faction, error) {
	for _, f := range sortedByID(t.st.factions, nil) {
		if f.Neutral {
			return &f, nil
		}
	}
	return nil, apperr.NotFound("neutral faction not found")
}

func (t *tx) SaveFaction(_ context.Context, f *models.Faction) error {
	return save(t, "factions", t.st.factions, &f.ID, f, "faction")
}

func (t *tx) DeleteFaction(_ context.Context, id int64) error {
	return remove(t.st.factions, id, "faction")
}

func (t *tx) ListCommanders(_ context.Context, q store.CommanderQuery) ([]models.Commander, error) {
	return sortedByID(t.st.commanders, func(c models.Commander) bool {
		return q.FactionID == nil || c.FactionID == *q.FactionID
	}), nil
}

func (t *tx) GetCommander(_ context.Context, id int64) (*models.Commander, error) {
	return get(t.st.commanders, id, "commander")
}

func (t *tx) SaveCommander(_ context.Context, c *models.Commander) error {
	return save(t, "commanders", t.st.commanders, &c.ID, c, "commander")
}

func (t *tx) DeleteCommander(_ context.Context, id int64) error {
	return remove(t.st.commanders, id, "commander")
}

func (t *tx) ListUnits(_ context.Context, q store.UnitQuery) ([]models.Unit, error) {
	return sortedByID(t.st.units, func(u models.Unit) bool {
		return containsOrEmpty(q.FactionIDs, u.FactionID)
	}), nil
}

func (t *tx) GetUnit(_ context.Context, id int64) (*models.Unit, error) {
	return get(t.st.units, id, "unit")
}

func (t *tx) SaveUnit(_ context.Context, u *models.Unit) error {
	return save(t, "units", t.st.units, &u.ID, u, "unit")
}

func (t *tx) DeleteUnit(_ context.Context, id int64) error {
	return remove(t.st.units, id, "unit")
}

func (t *tx) ListAttachments(_ context.Context, q store.AttachmentQuery) ([]models.Attachment, error) {
	if q.IDs != nil && len(q.IDs) == 0 {
		return nil, nil
	}
	return sortedByID(t.st.attachments, func(a models.Attachment) bool {
		switch {
		case !containsOrEmpty(q.FactionIDs, a.FactionID):
			return false
		case len(q.IDs) > 0 && !slices.Contains(q.IDs, a.ID):
			return false
		case q.AttachmentType != "" && a.AttachmentType != q.AttachmentType:
			return false
		case q.Name != "" && a.Name != q.Name:
			return false
		}
		return true
	}), nil
}

func (t *tx) GetAttachment(_ context.Context, id int64) (*models.Attachment, error) {
	return get(t.st.attachments, id, "attachment")
}

func (t *tx) SaveAttachment(_ context.Context, a *models.Attachment) error {
	return save(t, "attachments", t.st.attachments, &a.ID, a, "attachment")
}

func (t *tx) DeleteAttachment(_ context.Context, id int64) error {
	return remove(t.st.attachments, id, "attachment")
}

func (t *tx) ListNCUs(_ context.Context, q store.NCUQuery) ([]models.NCU, error) {
	if q.IDs != nil && len(q.IDs) == 0 {
		return nil, nil
	}
	return sortedByID(t.st.ncus, func(n models.NCU) bool {
		return containsOrEmpty(q.FactionIDs, n.FactionID) && containsOrEmpty(q.IDs, n.ID)
	}), nil
}

func (t *tx) GetNCU(_ context.Context, id int64) (*models.NCU, error) {
	return get(t.st.ncus, id, "ncu")
}

func (t *tx) SaveNCU(_ context.Context, n *models.NCU) error {
	return save(t, "ncus", t.st.ncus, &n.ID, n, "ncu")
}

func (t *tx) DeleteNCU(_ context.Context, id int64) error {
	return remove(t.st.ncus, id, "ncu")
}

func (t *tx) ListCardTemplates(_ context.Context, q store.CardTemplateQuery) ([]models.CardTemplate, error) {
	return sortedByID(t.st.templates, func(c models.CardTemplate) bool {
		if q.FactionID != nil && (c.FactionID == nil || *c.FactionID != *q.FactionID) {
			return false
		}
		if q.CommanderID != nil && (c.CommanderID == nil || *c.CommanderID != *q.CommanderID) {
			return false
		}
		if q.GenericOnly && c.CommanderID != nil {
			return false
		}
		return true
	}), nil
}

func (t *tx) GetCardTemplate(_ context.Context, id int64) (*models.CardTemplate, error) {
	return get(t.st.templates, id, "card template")
}

func (t *tx) SaveCardTemplate(_ context.Context, c *models.CardTemplate) error {
	return save(t, "card_templates", t.st.templates, &c.ID, c, "card template")
}

func (t *tx) DeleteCardTemplate(_ context.Context, id int64) error {
	return remove(t.st.templates, id, "card template")
}

func (t *tx) AddCardTemplateCounts(_ context.Context, id int64, d store.TemplateDelta) error {
	c, ok := t.st.templates[id]
	if !ok {
		return apperr.NotFound("card template not found")
	}
	c.GameCount += d.Games
	c.PlayCount += d.Plays
	c.DiscardCount += d.Discards
	t.st.templates[id] = c
	return nil
}
