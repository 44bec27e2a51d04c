package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

func (t *tx) CreateGame(_ context.Context, g *models.Game) error {
	now := t.now()
	g.ID = t.st.nextID("games")
	g.CreatedAt, g.UpdatedAt = now, now
	t.st.games[g.ID] = *g
	return nil
}

func (t *tx) GetGame(_ context.Context, id int64) (*models.Game, error) {
	return get(t.st.games, id, "game")
}

// LockGame is GetGame: transactions already run one at a time.
func (t *tx) LockGame(ctx context.Context, id int64) (*models.Game, error) {
	return t.GetGame(ctx, id)
}

func (t *tx) UpdateGame(_ context.Context, g *models.Game) error {
	cur, ok := t.st.games[g.ID]
	if !ok {
		return apperr.NotFound("game not found")
	}
	g.CreatedAt = cur.CreatedAt
	g.UpdatedAt = t.now()
	t.st.games[g.ID] = *g
	return nil
}

func (t *tx) ListGames(_ context.Context, q store.GameQuery) ([]models.Game, error) {
	out := sortedByID(t.st.games, func(g models.Game) bool {
		if q.OwnerID != nil && g.OwnerID != *q.OwnerID {
			return false
		}
		return q.Status == "" || g.Status == q.Status
	})
	slices.Reverse(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (t *tx) CreatePlayerCard(_ context.Context, c *models.PlayerCard) error {
	if _, ok := t.st.games[c.GameID]; !ok {
		return apperr.NotFound("game not found")
	}
	c.ID = t.st.nextID("player_cards")
	t.st.cards[c.ID] = *c
	return nil
}

func (t *tx) GetPlayerCard(_ context.Context, id int64) (*models.PlayerCard, error) {
	return get(t.st.cards, id, "card")
}

func (t *tx) ListPlayerCards(_ context.Context, q store.CardQuery) ([]models.PlayerCard, error) {
	return sortedByID(t.st.cards, func(c models.PlayerCard) bool {
		if c.GameID != q.GameID {
			return false
		}
		if q.Status != "" && c.Status != q.Status {
			return false
		}
		return q.TemplateID == nil || c.CardTemplateID == *q.TemplateID
	}), nil
}

func (t *tx) UpdatePlayerCard(_ context.Context, c *models.PlayerCard) error {
	if _, ok := t.st.cards[c.ID]; !ok {
		return apperr.NotFound("card not found")
	}
	t.st.cards[c.ID] = *c
	return nil
}

func (t *tx) AddUserCardStats(_ context.Context, owner uuid.UUID, templateID int64, d store.StatsDelta) error {
	k := statsKey{owner: owner, templateID: templateID}
	s, ok := t.st.stats[k]
	if !ok {
		s = models.UserCardStats{OwnerID: owner, CardTemplateID: templateID}
	}
	s.TimesIncluded += d.Included
	s.TimesDrawn += d.Drawn
	s.TimesDiscarded += d.Discarded
	t.st.stats[k] = s
	return nil
}

func (t *tx) GetUserCardStats(_ context.Context, owner uuid.UUID, templateID int64) (*models.UserCardStats, error) {
	s, ok := t.st.stats[statsKey{owner: owner, templateID: templateID}]
	if !ok {
		return nil, apperr.NotFound("card stats not found")
	}
	return &s, nil
}

func (t *tx) ListUserCardStats(_ context.Context, owner uuid.UUID) ([]models.UserCardStats, error) {
	var out []models.UserCardStats
	for k, s := range t.st.stats {
		if k.owner == owner {
			out = append(out, s)
		}
	}
	sortBy(out, func(s models.UserCardStats) int64 { return s.CardTemplateID })
	return out, nil
}

func (t *tx) AppendCardActions(_ context.Context, actions []models.CardAction) error {
	t.st.actions = append(t.st.actions, actions...)
	return nil
}

func (t *tx) ListCardActions(_ context.Context, gameID int64) ([]models.CardAction, error) {
	var out []models.CardAction
	for _, a := range t.st.actions {
		if a.GameID == gameID {
			out = append(out, a)
		}
	}
	sortBy(out, func(a models.CardAction) int { return a.ActionIndex })
	return out, nil
}

func (t *tx) AbandonStaleGames(_ context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	for _, g := range sortedByID(t.st.games, nil) {
		if g.Status != models.GameInProgress || !g.UpdatedAt.Before(cutoff) {
			continue
		}
		g.Status = models.GameAbandoned
		g.UpdatedAt = t.now()
		t.st.games[g.ID] = g
		ids = append(ids, g.ID)
	}
	return ids, nil
}
