package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

// anyOf turns an empty filter slice into nil so `$n::bigint[] IS NULL` skips it.
func anyOf(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// Factions

func scanFaction(row pgx.Row) (models.Faction, error) {
	var f models.Faction
	err := row.Scan(&f.ID, &f.Name, &f.ImgURL, &f.Neutral, &f.CanUseNeutral)
	return f, err
}

const factionColumns = `id, name, img_url, neutral, can_use_neutral`

func (t *tx) ListFactions(ctx context.Context) ([]models.Faction, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+factionColumns+` FROM factions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFaction)
}

func (t *tx) GetFaction(ctx context.Context, id int64) (*models.Faction, error) {
	f, err := scanFaction(t.tx.QueryRow(ctx, `SELECT `+factionColumns+` FROM factions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "faction")
	}
	return &f, nil
}

func (t *tx) GetNeutralFaction(ctx context.Context) (*models.Faction, error) {
	f, err := scanFaction(t.tx.QueryRow(ctx,
		`SELECT `+factionColumns+` FROM factions WHERE neutral ORDER BY id LIMIT 1`))
	if err != nil {
		return nil, mapErr(err, "neutral faction")
	}
	return &f, nil
}

func (t *tx) SaveFaction(ctx context.Context, f *models.Faction) error {
	if f.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO factions (name, img_url, neutral, can_use_neutral)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			f.Name, f.ImgURL, f.Neutral, f.CanUseNeutral).Scan(&f.ID)
		return mapErr(err, "faction")
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE factions SET name = $2, img_url = $3, neutral = $4, can_use_neutral = $5
		WHERE id = $1`,
		f.ID, f.Name, f.ImgURL, f.Neutral, f.CanUseNeutral)
	return affected(tag, err, "faction")
}

func (t *tx) DeleteFaction(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM factions WHERE id = $1`, id)
	return removed(tag, err, "faction")
}

// Commanders

const commanderColumns = `id, name, img_url, faction_id, commander_type`

func scanCommander(row pgx.Row) (models.Commander, error) {
	var c models.Commander
	err := row.Scan(&c.ID, &c.Name, &c.ImgURL, &c.FactionID, &c.CommanderType)
	return c, err
}

func (t *tx) ListCommanders(ctx context.Context, q store.CommanderQuery) ([]models.Commander, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+commanderColumns+` FROM commanders
		WHERE $1::bigint IS NULL OR faction_id = $1
		ORDER BY id`, q.FactionID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCommander)
}

func (t *tx) GetCommander(ctx context.Context, id int64) (*models.Commander, error) {
	c, err := scanCommander(t.tx.QueryRow(ctx, `SELECT `+commanderColumns+` FROM commanders WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "commander")
	}
	return &c, nil
}

func (t *tx) SaveCommander(ctx context.Context, c *models.Commander) error {
	if c.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO commanders (name, img_url, faction_id, commander_type)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			c.Name, c.ImgURL, c.FactionID, c.CommanderType).Scan(&c.ID)
		return mapErr(err, "commander")
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE commanders SET name = $2, img_url = $3, faction_id = $4, commander_type = $5
		WHERE id = $1`,
		c.ID, c.Name, c.ImgURL, c.FactionID, c.CommanderType)
	return affected(tag, err, "commander")
}

func (t *tx) DeleteCommander(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM commanders WHERE id = $1`, id)
	return removed(tag, err, "commander")
}

// Units

const unitColumns = `id, name, faction_id, points_cost, unit_type, status, attached_commander_id,
	max_in_list, is_unique, is_adaptive, img_url, main_url`

func scanUnit(row pgx.Row) (models.Unit, error) {
	var u models.Unit
	err := row.Scan(&u.ID, &u.Name, &u.FactionID, &u.PointsCost, &u.UnitType, &u.Status,
		&u.AttachedCommanderID, &u.MaxInList, &u.IsUnique, &u.IsAdaptive, &u.ImgURL, &u.MainURL)
	return u, err
}

func (t *tx) ListUnits(ctx context.Context, q store.UnitQuery) ([]models.Unit, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+unitColumns+` FROM units
		WHERE $1::bigint[] IS NULL OR faction_id = ANY($1)
		ORDER BY id`, anyOf(q.FactionIDs))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUnit)
}

func (t *tx) GetUnit(ctx context.Context, id int64) (*models.Unit, error) {
	u, err := scanUnit(t.tx.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "unit")
	}
	return &u, nil
}

func (t *tx) SaveUnit(ctx context.Context, u *models.Unit) error {
	args := []any{u.Name, u.FactionID, u.PointsCost, u.UnitType, u.Status, u.AttachedCommanderID,
		u.MaxInList, u.IsUnique, u.IsAdaptive, u.ImgURL, u.MainURL}
	if u.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO units (name, faction_id, points_cost, unit_type, status, attached_commander_id,
				max_in_list, is_unique, is_adaptive, img_url, main_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
			args...).Scan(&u.ID)
		return mapErr(err, "unit")
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE units SET name = $1, faction_id = $2, points_cost = $3, unit_type = $4, status = $5,
			attached_commander_id = $6, max_in_list = $7, is_unique = $8, is_adaptive = $9,
			img_url = $10, main_url = $11
		WHERE id = $12`,
		append(args, u.ID)...)
	return affected(tag, err, "unit")
}

func (t *tx) DeleteUnit(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	return removed(tag, err, "unit")
}

// Attachments

const attachmentColumns = `id, name, faction_id, points_cost, type, attachment_type, img_url, main_url`

func scanAttachment(row pgx.Row) (models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(&a.ID, &a.Name, &a.FactionID, &a.PointsCost, &a.Type, &a.AttachmentType, &a.ImgURL, &a.MainURL)
	return a, err
}

func (t *tx) ListAttachments(ctx context.Context, q store.AttachmentQuery) ([]models.Attachment, error) {
	if q.IDs != nil && len(q.IDs) == 0 {
		return nil, nil
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+attachmentColumns+` FROM attachments
		WHERE ($1::bigint[] IS NULL OR faction_id = ANY($1))
		  AND ($2::bigint[] IS NULL OR id = ANY($2))
		  AND ($3 = '' OR attachment_type = $3)
		  AND ($4 = '' OR name = $4)
		ORDER BY id`,
		anyOf(q.FactionIDs), anyOf(q.IDs), string(q.AttachmentType), q.Name)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAttachment)
}

func (t *tx) GetAttachment(ctx context.Context, id int64) (*models.Attachment, error) {
	a, err := scanAttachment(t.tx.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "attachment")
	}
	return &a, nil
}

func (t *tx) SaveAttachment(ctx context.Context, a *models.Attachment) error {
	args := []any{a.Name, a.FactionID, a.PointsCost, a.Type, a.AttachmentType, a.ImgURL, a.MainURL}
	if a.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO attachments (name, faction_id, points_cost, type, attachment_type, img_url, main_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			args...).Scan(&a.ID)
		return mapErr(err, "attachment")
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE attachments SET name = $1, faction_id = $2, points_cost = $3, type = $4,
			attachment_type = $5, img_url = $6, main_url = $7
		WHERE id = $8`,
		append(args, a.ID)...)
	return affected(tag, err, "attachment")
}

func (t *tx) DeleteAttachment(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	return removed(tag, err, "attachment")
}

// NCUs

const ncuColumns = `id, name, faction_id, points_cost, img_url, main_url`

func scanNCU(row pgx.Row) (models.NCU, error) {
	var n models.NCU
	err := row.Scan(&n.ID, &n.Name, &n.FactionID, &n.PointsCost, &n.ImgURL, &n.MainURL)
	return n, err
}

func (t *tx) ListNCUs(ctx context.Context, q store.NCUQuery) ([]models.NCU, error) {
	if q.IDs != nil && len(q.IDs) == 0 {
		return nil, nil
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+ncuColumns+` FROM ncus
		WHERE ($1::bigint[] IS NULL OR faction_id = ANY($1))
		  AND ($2::bigint[] IS NULL OR id = ANY($2))
		ORDER BY id`,
		anyOf(q.FactionIDs), anyOf(q.IDs))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNCU)
}

func (t *tx) GetNCU(ctx context.Context, id int64) (*models.NCU, error) {
	n, err := scanNCU(t.tx.QueryRow(ctx, `SELECT `+ncuColumns+` FROM ncus WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "ncu")
	}
	return &n, nil
}

func (t *tx) SaveNCU(ctx context.Context, n *models.NCU) error {
	args := []any{n.Name, n.FactionID, n.PointsCost, n.ImgURL, n.MainURL}
	if n.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO ncus (name, faction_id, points_cost, img_url, main_url)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			args...).Scan(&n.ID)
		return mapErr(err, "ncu")
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE ncus SET name = $1, faction_id = $2, points_cost = $3, img_url = $4, main_url = $5
		WHERE id = $6`,
		append(args, n.ID)...)
	return affected(tag, err, "ncu")
}

func (t *tx) DeleteNCU(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM ncus WHERE id = $1`, id)
	return removed(tag, err, "ncu")
}

// Card templates

const templateColumns = `id, card_name, img_url, faction_id, commander_id, replaces_id,
	game_count, play_count, discard_count`

func scanTemplate(row pgx.Row) (models.CardTemplate, error) {
	var c models.CardTemplate
	err := row.Scan(&c.ID, &c.CardName, &c.ImgURL, &c.FactionID, &c.CommanderID, &c.ReplacesID,
		&c.GameCount, &c.PlayCount, &c.DiscardCount)
	return c, err
}

func (t *tx) ListCardTemplates(ctx context.Context, q store.CardTemplateQuery) ([]models.CardTemplate, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+templateColumns+` FROM card_templates
		WHERE ($1::bigint IS NULL OR faction_id = $1)
		  AND ($2::bigint IS NULL OR commander_id = $2)
		  AND (NOT $3 OR commander_id IS NULL)
		ORDER BY id`,
		q.FactionID, q.CommanderID, q.GenericOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTemplate)
}

func (t *tx) GetCardTemplate(ctx context.Context, id int64) (*models.CardTemplate, error) {
	c, err := scanTemplate(t.tx.QueryRow(ctx, `SELECT `+templateColumns+` FROM card_templates WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "card template")
	}
	return &c, nil
}

func (t *tx) SaveCardTemplate(ctx context.Context, c *models.CardTemplate) error {
	args := []any{c.CardName, c.ImgURL, c.FactionID, c.CommanderID, c.ReplacesID,
		c.GameCount, c.PlayCount, c.DiscardCount}
	if c.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO card_templates (card_name, img_url, faction_id, commander_id, replaces_id,
				game_count, play_count, discard_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			args...).Scan(&c.ID)
		return mapErr(err, "card template")
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE card_templates SET card_name = $1, img_url = $2, faction_id = $3, commander_id = $4,
			replaces_id = $5, game_count = $6, play_count = $7, discard_count = $8
		WHERE id = $9`,
		append(args, c.ID)...)
	return affected(tag, err, "card template")
}

func (t *tx) DeleteCardTemplate(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM card_templates WHERE id = $1`, id)
	return removed(tag, err, "card template")
}

func (t *tx) AddCardTemplateCounts(ctx context.Context, id int64, d store.TemplateDelta) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE card_templates
		SET game_count = game_count + $2, play_count = play_count + $3, discard_count = discard_count + $4
		WHERE id = $1`,
		id, d.Games, d.Plays, d.Discards)
	return affected(tag, err, "card template")
}
