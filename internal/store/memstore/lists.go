package memstore

import (
	"context"
	"slices"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

func (t *tx) GetList(_ context.Context, id int64) (*models.List, error) {
	return get(t.st.lists, id, "list")
}

func (t *tx) ListLists(_ context.Context, q store.ListQuery) ([]models.List, error) {
	return sortedByID(t.st.lists, func(l models.List) bool {
		if q.OwnerID != nil && l.OwnerID != *q.OwnerID {
			return false
		}
		if q.SharedFromID != nil && (l.SharedFromID == nil || *l.SharedFromID != *q.SharedFromID) {
			return false
		}
		return !q.DraftOnly || l.IsDraft
	}), nil
}

func (t *tx) SaveList(_ context.Context, l *models.List) error {
	now := t.now()
	row := *l
	row.Units, row.NCUs, row.TotalPoints = nil, nil, 0
	if l.ID == 0 {
		row.ID = t.st.nextID("lists")
		row.CreatedAt = now
	} else {
		cur, ok := t.st.lists[l.ID]
		if !ok {
			return apperr.NotFound("list not found")
		}
		row.CreatedAt = cur.CreatedAt
	}
	row.UpdatedAt = now
	t.st.lists[row.ID] = row
	l.ID, l.CreatedAt, l.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return nil
}

func (t *tx) DeleteList(ctx context.Context, id int64) error {
	if err := remove(t.st.lists, id, "list"); err != nil {
		return err
	}
	_ = t.DeleteListUnits(ctx, id)
	_ = t.DeleteListNCUs(ctx, id)
	return nil
}

func (t *tx) ListListUnits(_ context.Context, listID int64) ([]models.ListUnit, error) {
	out := sortedByID(t.st.listUnits, func(lu models.ListUnit) bool { return lu.ListID == listID })
	for i := range out {
		out[i].AttachmentIDs = slices.Clone(out[i].AttachmentIDs)
	}
	return out, nil
}

func (t *tx) CreateListUnit(_ context.Context, lu *models.ListUnit) error {
	if _, ok := t.st.lists[lu.ListID]; !ok {
		return apperr.NotFound("list not found")
	}
	lu.ID = t.st.nextID("list_units")
	row := *lu
	row.AttachmentIDs = slices.Clone(lu.AttachmentIDs)
	t.st.listUnits[row.ID] = row
	return nil
}

func (t *tx) DeleteListUnits(_ context.Context, listID int64) error {
	for id, lu := range t.st.listUnits {
		if lu.ListID == listID {
			delete(t.st.listUnits, id)
		}
	}
	return nil
}

func (t *tx) ListListNCUs(_ context.Context, listID int64) ([]models.ListNCU, error) {
	return sortedByID(t.st.listNCUs, func(ln models.ListNCU) bool { return ln.ListID == listID }), nil
}

func (t *tx) CreateListNCU(_ context.Context, ln *models.ListNCU) error {
	if _, ok := t.st.lists[ln.ListID]; !ok {
		return apperr.NotFound("list not found")
	}
	ln.ID = t.st.nextID("list_ncus")
	t.st.listNCUs[ln.ID] = *ln
	return nil
}

func (t *tx) DeleteListNCUs(_ context.Context, listID int64) error {
	for id, ln := range t.st.listNCUs {
		if ln.ListID == listID {
			delete(t.st.listNCUs, id)
		}
	}
	return nil
}
