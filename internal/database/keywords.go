package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

// Keyword types

func scanKeywordType(row pgx.Row) (models.KeywordType, error) {
	var k models.KeywordType
	err := row.Scan(&k.ID, &k.Name, &k.Description)
	return k, err
}

func (t *tx) ListKeywordTypes(ctx context.Context) ([]models.KeywordType, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, name, description FROM keyword_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanKeywordType)
}

func (t *tx) GetKeywordType(ctx context.Context, id int64) (*models.KeywordType, error) {
	k, err := scanKeywordType(t.tx.QueryRow(ctx, `SELECT id, name, description FROM keyword_types WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "keyword type")
	}
	return &k, nil
}

func (t *tx) SaveKeywordType(ctx context.Context, k *models.KeywordType) error {
	if k.ID == 0 {
		err := t.tx.QueryRow(ctx, `INSERT INTO keyword_types (name, description) VALUES ($1, $2) RETURNING id`,
			k.Name, k.Description).Scan(&k.ID)
		return mapErr(err, "keyword type")
	}
	tag, err := t.tx.Exec(ctx, `UPDATE keyword_types SET name = $1, description = $2 WHERE id = $3`,
		k.Name, k.Description, k.ID)
	return affected(tag, err, "keyword type")
}

func (t *tx) DeleteKeywordType(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM keyword_types WHERE id = $1`, id)
	return removed(tag, err, "keyword type")
}

// Keyword pairs

func scanKeywordPair(row pgx.Row) (models.KeywordPair, error) {
	var k models.KeywordPair
	err := row.Scan(&k.ID, &k.Keyword, &k.Description, &k.KeywordTypeID)
	return k, err
}

const keywordPairColumns = `id, keyword, description, keyword_type_id`

func (t *tx) ListKeywordPairs(ctx context.Context) ([]models.KeywordPair, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+keywordPairColumns+` FROM keyword_pairs ORDER BY lower(keyword)`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanKeywordPair)
}

func (t *tx) GetKeywordPair(ctx context.Context, id int64) (*models.KeywordPair, error) {
	k, err := scanKeywordPair(t.tx.QueryRow(ctx, `SELECT `+keywordPairColumns+` FROM keyword_pairs WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "keyword pair")
	}
	return &k, nil
}

func (t *tx) SaveKeywordPair(ctx context.Context, k *models.KeywordPair) error {
	if k.ID == 0 {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO keyword_pairs (keyword, description, keyword_type_id)
			VALUES ($1, $2, $3) RETURNING id`,
			k.Keyword, k.Description, k.KeywordTypeID).Scan(&k.ID)
		return mapErr(err, "keyword pair")
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE keyword_pairs SET keyword = $1, description = $2, keyword_type_id = $3
		WHERE id = $4`,
		k.Keyword, k.Description, k.KeywordTypeID, k.ID)
	return affected(tag, err, "keyword pair")
}

func (t *tx) DeleteKeywordPair(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM keyword_pairs WHERE id = $1`, id)
	return removed(tag, err, "keyword pair")
}

// References

// referenceQueries count, for each catalog kind, the rows that hold its id.
var referenceQueries = map[store.CatalogKind]string{
	store.CatalogFaction: `SELECT
		(SELECT count(*) FROM lists WHERE faction_id = $1) +
		(SELECT count(*) FROM games WHERE faction_id = $1) +
		(SELECT count(*) FROM commanders WHERE faction_id = $1) +
		(SELECT count(*) FROM units WHERE faction_id = $1) +
		(SELECT count(*) FROM attachments WHERE faction_id = $1) +
		(SELECT count(*) FROM ncus WHERE faction_id = $1) +
		(SELECT count(*) FROM card_templates WHERE faction_id = $1)`,
	store.CatalogCommander: `SELECT
		(SELECT count(*) FROM lists WHERE commander_id = $1) +
		(SELECT count(*) FROM list_units WHERE commander_id = $1) +
		(SELECT count(*) FROM games WHERE commander_id = $1) +
		(SELECT count(*) FROM units WHERE attached_commander_id = $1) +
		(SELECT count(*) FROM card_templates WHERE commander_id = $1)`,
	store.CatalogUnit:       `SELECT count(*) FROM list_units WHERE unit_id = $1`,
	store.CatalogAttachment: `SELECT count(*) FROM list_units WHERE attachment_ids @> ARRAY[$1::bigint]`,
	store.CatalogNCU:        `SELECT count(*) FROM list_ncus WHERE ncu_id = $1`,
	store.CatalogCardTemplate: `SELECT
		(SELECT count(*) FROM player_cards WHERE card_template_id = $1) +
		(SELECT count(*) FROM user_card_stats WHERE card_template_id = $1) +
		(SELECT count(*) FROM card_templates WHERE replaces_id = $1)`,
	store.CatalogKeywordType: `SELECT count(*) FROM keyword_pairs WHERE keyword_type_id = $1`,
}

func (t *tx) CatalogReferences(ctx context.Context, kind store.CatalogKind, id int64) (int, error) {
	q, ok := referenceQueries[kind]
	if !ok {
		return 0, fmt.Errorf("no reference query for %s", kind)
	}
	var n int
	if err := t.tx.QueryRow(ctx, q, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s references: %w", kind, err)
	}
	return n, nil
}
