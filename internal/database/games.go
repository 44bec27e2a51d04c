package database

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

const gameColumns = `id, owner_id, faction_id, commander_id, owner_list_id, status, round,
	action_count, created_at, updated_at`

func scanGame(row pgx.Row) (models.Game, error) {
	var g models.Game
	err := row.Scan(&g.ID, &g.OwnerID, &g.FactionID, &g.CommanderID, &g.OwnerListID, &g.Status,
		&g.Round, &g.ActionCount, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (t *tx) CreateGame(ctx context.Context, g *models.Game) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO games (owner_id, faction_id, commander_id, owner_list_id, status, round, action_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		g.OwnerID, g.FactionID, g.CommanderID, g.OwnerListID, g.Status, g.Round, g.ActionCount,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	return mapErr(err, "game")
}

func (t *tx) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	g, err := scanGame(t.tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "game")
	}
	return &g, nil
}

// LockGame takes the row lock every card action serializes on.
func (t *tx) LockGame(ctx context.Context, id int64) (*models.Game, error) {
	g, err := scanGame(t.tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr(err, "game")
	}
	return &g, nil
}

func (t *tx) UpdateGame(ctx context.Context, g *models.Game) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE games SET owner_list_id = $2, status = $3, round = $4, action_count = $5, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		g.ID, g.OwnerListID, g.Status, g.Round, g.ActionCount,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	return mapErr(err, "game")
}

// ListGames returns newest first.
func (t *tx) ListGames(ctx context.Context, q store.GameQuery) ([]models.Game, error) {
	query := `
		SELECT ` + gameColumns + ` FROM games
		WHERE ($1::uuid IS NULL OR owner_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY id DESC`
	args := []any{q.OwnerID, string(q.Status)}
	if q.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, q.Limit)
	}
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanGame)
}

const cardColumns = `id, game_id, card_template_id, owner_id, status, play_notes,
	drawn_this_round, discarded_this_round`

func scanCard(row pgx.Row) (models.PlayerCard, error) {
	var c models.PlayerCard
	err := row.Scan(&c.ID, &c.GameID, &c.CardTemplateID, &c.OwnerID, &c.Status, &c.PlayNotes,
		&c.DrawnThisRound, &c.DiscardedThisRound)
	return c, err
}

func (t *tx) CreatePlayerCard(ctx context.Context, c *models.PlayerCard) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO player_cards (game_id, card_template_id, owner_id, status, play_notes,
			drawn_this_round, discarded_this_round)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		c.GameID, c.CardTemplateID, c.OwnerID, c.Status, c.PlayNotes, c.DrawnThisRound, c.DiscardedThisRound,
	).Scan(&c.ID)
	return mapErr(err, "card")
}

func (t *tx) GetPlayerCard(ctx context.Context, id int64) (*models.PlayerCard, error) {
	c, err := scanCard(t.tx.QueryRow(ctx, `SELECT `+cardColumns+` FROM player_cards WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "card")
	}
	return &c, nil
}

func (t *tx) ListPlayerCards(ctx context.Context, q store.CardQuery) ([]models.PlayerCard, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+cardColumns+` FROM player_cards
		WHERE game_id = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3::bigint IS NULL OR card_template_id = $3)
		ORDER BY id`,
		q.GameID, string(q.Status), q.TemplateID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCard)
}

func (t *tx) UpdatePlayerCard(ctx context.Context, c *models.PlayerCard) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE player_cards SET status = $2, play_notes = $3, drawn_this_round = $4, discarded_this_round = $5
		WHERE id = $1`,
		c.ID, c.Status, c.PlayNotes, c.DrawnThisRound, c.DiscardedThisRound)
	return affected(tag, err, "card")
}

func (t *tx) AddUserCardStats(ctx context.Context, owner uuid.UUID, templateID int64, d store.StatsDelta) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_card_stats (owner_id, card_template_id, times_included, times_drawn, times_discarded)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, card_template_id) DO UPDATE SET
			times_included = user_card_stats.times_included + EXCLUDED.times_included,
			times_drawn = user_card_stats.times_drawn + EXCLUDED.times_drawn,
			times_discarded = user_card_stats.times_discarded + EXCLUDED.times_discarded`,
		owner, templateID, d.Included, d.Drawn, d.Discarded)
	return mapErr(err, "card stats")
}

func scanStats(row pgx.Row) (models.UserCardStats, error) {
	var s models.UserCardStats
	err := row.Scan(&s.OwnerID, &s.CardTemplateID, &s.TimesIncluded, &s.TimesDrawn, &s.TimesDiscarded)
	return s, err
}

const statsColumns = `owner_id, card_template_id, times_included, times_drawn, times_discarded`

func (t *tx) GetUserCardStats(ctx context.Context, owner uuid.UUID, templateID int64) (*models.UserCardStats, error) {
	s, err := scanStats(t.tx.QueryRow(ctx, `
		SELECT `+statsColumns+` FROM user_card_stats
		WHERE owner_id = $1 AND card_template_id = $2`, owner, templateID))
	if err != nil {
		return nil, mapErr(err, "card stats")
	}
	return &s, nil
}

func (t *tx) ListUserCardStats(ctx context.Context, owner uuid.UUID) ([]models.UserCardStats, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+statsColumns+` FROM user_card_stats
		WHERE owner_id = $1 ORDER BY card_template_id`, owner)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanStats)
}

// AppendCardActions copies the batch in. Replays of an already stored
// (game, index) pair are skipped so the historian can retry a batch.
func (t *tx) AppendCardActions(ctx context.Context, actions []models.CardAction) error {
	if len(actions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range actions {
		payload := a.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		batch.Queue(`
			INSERT INTO card_actions (game_id, action_index, actor_id, action_type, action_payload, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (game_id, action_index) DO NOTHING`,
			a.GameID, a.ActionIndex, a.ActorID, a.Action, payload, a.RecordedAt)
	}
	br := t.tx.SendBatch(ctx, batch)
	for range actions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert card action: %w", mapErr(err, "card action"))
		}
	}
	return br.Close()
}

func (t *tx) ListCardActions(ctx context.Context, gameID int64) ([]models.CardAction, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT game_id, action_index, actor_id, action_type, action_payload, recorded_at
		FROM card_actions WHERE game_id = $1 ORDER BY action_index`, gameID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (models.CardAction, error) {
		var a models.CardAction
		err := row.Scan(&a.GameID, &a.ActionIndex, &a.ActorID, &a.Action, &a.Payload, &a.RecordedAt)
		return a, err
	})
}

func (t *tx) AbandonStaleGames(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		UPDATE games SET status = 'abandoned', updated_at = now()
		WHERE status = 'in-progress' AND updated_at < $1
		RETURNING id`, cutoff)
	if err != nil {
		return nil, err
	}
	ids, err := collect(rows, func(row pgx.Row) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}
