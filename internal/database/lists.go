package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

const listColumns = `id, name, owner_id, points_allowed, faction_id, commander_id,
	is_draft, is_public, is_valid, shared_from_id, created_at, updated_at`

func scanList(row pgx.Row) (models.List, error) {
	var l models.List
	err := row.Scan(&l.ID, &l.Name, &l.OwnerID, &l.PointsAllowed, &l.FactionID, &l.CommanderID,
		&l.IsDraft, &l.IsPublic, &l.IsValid, &l.SharedFromID, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (t *tx) GetList(ctx context.Context, id int64) (*models.List, error) {
	l, err := scanList(t.tx.QueryRow(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "list")
	}
	return &l, nil
}

func (t *tx) ListLists(ctx context.Context, q store.ListQuery) ([]models.List, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+listColumns+` FROM lists
		WHERE ($1::uuid IS NULL OR owner_id = $1)
		  AND ($2::uuid IS NULL OR shared_from_id = $2)
		  AND (NOT $3 OR is_draft)
		ORDER BY id`,
		q.OwnerID, q.SharedFromID, q.DraftOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanList)
}

func (t *tx) SaveList(ctx context.Context, l *models.List) error {
	args := []any{l.Name, l.OwnerID, l.PointsAllowed, l.FactionID, l.CommanderID,
		l.IsDraft, l.IsPublic, l.IsValid, l.SharedFromID}
	if l.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO lists (name, owner_id, points_allowed, faction_id, commander_id,
				is_draft, is_public, is_valid, shared_from_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			args...).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
		return mapErr(err, "list")
	}
	err := t.tx.QueryRow(ctx, `
		UPDATE lists SET name = $1, owner_id = $2, points_allowed = $3, faction_id = $4,
			commander_id = $5, is_draft = $6, is_public = $7, is_valid = $8, shared_from_id = $9,
			updated_at = now()
		WHERE id = $10
		RETURNING created_at, updated_at`,
		append(args, l.ID)...).Scan(&l.CreatedAt, &l.UpdatedAt)
	return mapErr(err, "list")
}

// DeleteList drops the list; its units and NCUs go with it by cascade.
func (t *tx) DeleteList(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM lists WHERE id = $1`, id)
	return removed(tag, err, "list")
}

func (t *tx) ListListUnits(ctx context.Context, listID int64) ([]models.ListUnit, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, list_id, unit_id, attachment_ids, commander_id
		FROM list_units WHERE list_id = $1 ORDER BY id`, listID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (models.ListUnit, error) {
		var lu models.ListUnit
		err := row.Scan(&lu.ID, &lu.ListID, &lu.UnitID, &lu.AttachmentIDs, &lu.CommanderID)
		return lu, err
	})
}

func (t *tx) CreateListUnit(ctx context.Context, lu *models.ListUnit) error {
	ids := lu.AttachmentIDs
	if ids == nil {
		ids = []int64{}
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO list_units (list_id, unit_id, attachment_ids, commander_id)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		lu.ListID, lu.UnitID, ids, lu.CommanderID).Scan(&lu.ID)
	return mapErr(err, "list unit")
}

func (t *tx) DeleteListUnits(ctx context.Context, listID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM list_units WHERE list_id = $1`, listID)
	return err
}

func (t *tx) ListListNCUs(ctx context.Context, listID int64) ([]models.ListNCU, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, list_id, ncu_id FROM list_ncus WHERE list_id = $1 ORDER BY id`, listID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (models.ListNCU, error) {
		var ln models.ListNCU
		err := row.Scan(&ln.ID, &ln.ListID, &ln.NCUID)
		return ln, err
	})
}

func (t *tx) CreateListNCU(ctx context.Context, ln *models.ListNCU) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO list_ncus (list_id, ncu_id) VALUES ($1, $2) RETURNING id`,
		ln.ListID, ln.NCUID).Scan(&ln.ID)
	return mapErr(err, "list ncu")
}

func (t *tx) DeleteListNCUs(ctx context.Context, listID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM list_ncus WHERE list_id = $1`, listID)
	return err
}
