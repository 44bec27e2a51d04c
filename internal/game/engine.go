// Package game runs a solo game session over a deck of PlayerCards: deck
// construction at start, card zone transitions during play and the usage
// rollups at the end of each round and of the game.
package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

// CopiesPerTemplate is how many PlayerCards a game deals per card template.
const CopiesPerTemplate = 2

const (
	defaultRecentGames = 10
	maxRecentGames     = 50
)

type Engine struct {
	store     store.Store
	publisher Publisher
	logger    logrus.FieldLogger
	intn      func(n int) int
	now       func() time.Time
}

type Option func(*Engine)

// WithRand replaces the source used to pick the drawn card. intn must return
// a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(e *Engine) { e.intn = intn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine over s. pub may be nil.
func NewEngine(s store.Store, pub Publisher, logger logrus.FieldLogger, opts ...Option) *Engine {
	if pub == nil {
		pub = Publishers(nil)
	}
	e := &Engine{
		store:     s,
		publisher: pub,
		logger:    logger.WithField("component", "game"),
		intn:      rand.IntN,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type StartRequest struct {
	FactionID   int64  `json:"faction_id"`
	CommanderID int64  `json:"commander_id"`
	ListID      *int64 `json:"list_id"`
}

// Session is a game together with its full card pool.
type Session struct {
	Game  models.Game         `json:"game"`
	Cards []models.PlayerCard `json:"cards"`
}

// StartGame creates an in-progress game at round 1 for caller and deals its deck.
func (e *Engine) StartGame(ctx context.Context, caller auth.Identity, req StartRequest) (*Session, error) {
	if caller.Anonymous() {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}

	var out Session
	var action models.CardAction
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		faction, err := tx.GetFaction(ctx, req.FactionID)
		if err != nil {
			return err
		}
		commander, err := tx.GetCommander(ctx, req.CommanderID)
		if err != nil {
			return err
		}
		if req.ListID != nil {
			l, err := tx.GetList(ctx, *req.ListID)
			if err != nil {
				return err
			}
			if l.OwnerID != caller.ProfileID {
				return apperr.NotFound("list not found")
			}
			if l.FactionID != faction.ID || l.CommanderID != commander.ID {
				return apperr.Validation("list %q is not built for this faction and commander", l.Name)
			}
		}

		pool, err := deckPool(ctx, tx, faction.ID, commander.ID)
		if err != nil {
			return err
		}

		g := &models.Game{
			OwnerID:     caller.ProfileID,
			FactionID:   faction.ID,
			CommanderID: commander.ID,
			OwnerListID: req.ListID,
			Status:      models.GameInProgress,
			Round:       1,
		}
		if err := tx.CreateGame(ctx, g); err != nil {
			return fmt.Errorf("create game: %w", err)
		}

		out.Cards = make([]models.PlayerCard, 0, len(pool)*CopiesPerTemplate)
		for _, tpl := range pool {
			for range CopiesPerTemplate {
				c := &models.PlayerCard{
					GameID:         g.ID,
					CardTemplateID: tpl.ID,
					OwnerID:        caller.ProfileID,
					Status:         models.CardInDeck,
				}
				if err := tx.CreatePlayerCard(ctx, c); err != nil {
					return fmt.Errorf("create player card: %w", err)
				}
				if err := tx.AddUserCardStats(ctx, caller.ProfileID, tpl.ID, store.StatsDelta{Included: 1}); err != nil {
					return fmt.Errorf("count included card: %w", err)
				}
				out.Cards = append(out.Cards, *c)
			}
			if err := tx.AddCardTemplateCounts(ctx, tpl.ID, store.TemplateDelta{Games: 1}); err != nil {
				return fmt.Errorf("count template game: %w", err)
			}
		}

		action = e.record(g, caller, "start_game", map[string]any{
			"faction_id":   faction.ID,
			"commander_id": commander.ID,
			"templates":    len(pool),
			"cards":        len(out.Cards),
		})
		if err := tx.UpdateGame(ctx, g); err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		out.Game = *g
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"game_id":      out.Game.ID,
		"owner_id":     caller.ProfileID,
		"faction_id":   req.FactionID,
		"commander_id": req.CommanderID,
		"cards":        len(out.Cards),
	}).Info("game started")
	e.publish(ctx, action)
	return &out, nil
}

// deckPool returns the templates a game deals: every template of the
// commander plus the faction's generic templates, minus any template one of
// the commander's templates replaces.
func deckPool(ctx context.Context, tx store.CatalogStore, factionID, commanderID int64) ([]models.CardTemplate, error) {
	own, err := tx.ListCardTemplates(ctx, store.CardTemplateQuery{CommanderID: &commanderID})
	if err != nil {
		return nil, fmt.Errorf("load commander cards: %w", err)
	}
	generic, err := tx.ListCardTemplates(ctx, store.CardTemplateQuery{FactionID: &factionID, GenericOnly: true})
	if err != nil {
		return nil, fmt.Errorf("load faction cards: %w", err)
	}

	replaced := make(map[int64]bool)
	for _, c := range own {
		if c.ReplacesID != nil {
			replaced[*c.ReplacesID] = true
		}
	}

	seen := make(map[int64]bool, len(own)+len(generic))
	pool := make([]models.CardTemplate, 0, len(own)+len(generic))
	for _, c := range append(own, generic...) {
		if replaced[c.ID] || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		pool = append(pool, c)
	}
	return pool, nil
}

// ownedGame hides games owned by someone else behind NotFound.
func ownedGame(g *models.Game, caller auth.Identity) (*models.Game, error) {
	if g.OwnerID != caller.ProfileID {
		return nil, apperr.NotFound("game not found")
	}
	return g, nil
}

// mutate locks the caller's in-progress game, runs fn and records the action
// it names. The updated game row doubles as the activity timestamp that the
// abandonment sweep reads.
func (e *Engine) mutate(ctx context.Context, caller auth.Identity, gameID int64, fn func(tx store.Tx, g *models.Game) (string, map[string]any, error)) (models.Game, models.CardAction, error) {
	if caller.Anonymous() {
		return models.Game{}, models.CardAction{}, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}

	var game models.Game
	var action models.CardAction
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockGame(ctx, gameID)
		if err != nil {
			return err
		}
		g, err := ownedGame(locked, caller)
		if err != nil {
			return err
		}
		if g.Status != models.GameInProgress {
			return apperr.Validation("game not alterable").WithMetadata("status", string(g.Status))
		}

		name, payload, err := fn(tx, g)
		if err != nil {
			return err
		}
		action = e.record(g, caller, name, payload)
		if err := tx.UpdateGame(ctx, g); err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		game = *g
		return nil
	})
	return game, action, err
}

// record stamps the next action index for g. The caller persists g.
func (e *Engine) record(g *models.Game, caller auth.Identity, name string, payload map[string]any) models.CardAction {
	a := models.CardAction{
		GameID:      g.ID,
		ActionIndex: g.ActionCount,
		ActorID:     caller.ProfileID,
		Action:      name,
		Payload:     payload,
		RecordedAt:  e.now().UTC(),
	}
	g.ActionCount++
	return a
}

func (e *Engine) publish(ctx context.Context, a models.CardAction) {
	if err := e.publisher.PublishCardAction(ctx, a); err != nil {
		e.logger.WithFields(logrus.Fields{
			"game_id": a.GameID,
			"action":  a.Action,
			"index":   a.ActionIndex,
		}).WithError(err).Warn("publish card action")
	}
}

// Cards returns the caller's game and its full card pool.
func (e *Engine) Cards(ctx context.Context, caller auth.Identity, gameID int64) (*Session, error) {
	var out Session
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		g, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g, err = ownedGame(g, caller); err != nil {
			return err
		}
		cards, err := tx.ListPlayerCards(ctx, store.CardQuery{GameID: g.ID})
		if err != nil {
			return err
		}
		out = Session{Game: *g, Cards: cards}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentGames returns the caller's games, newest first. limit is clamped to
// [1, 50] and defaults to 10.
func (e *Engine) RecentGames(ctx context.Context, caller auth.Identity, limit int) ([]models.Game, error) {
	if caller.Anonymous() {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}
	switch {
	case limit <= 0:
		limit = defaultRecentGames
	case limit > maxRecentGames:
		limit = maxRecentGames
	}

	var out []models.Game
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListGames(ctx, store.GameQuery{OwnerID: &caller.ProfileID, Limit: limit})
		return err
	})
	return out, err
}

// StatLine is a UserCardStats row with the name of its card.
type StatLine struct {
	models.UserCardStats
	CardName string `json:"card_name"`
}

// PlayerStats returns the caller's per-card usage counters.
func (e *Engine) PlayerStats(ctx context.Context, caller auth.Identity) ([]StatLine, error) {
	if caller.Anonymous() {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}

	var out []StatLine
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		rows, err := tx.ListUserCardStats(ctx, caller.ProfileID)
		if err != nil {
			return err
		}
		out = make([]StatLine, 0, len(rows))
		for _, r := range rows {
			line := StatLine{UserCardStats: r}
			tpl, err := tx.GetCardTemplate(ctx, r.CardTemplateID)
			switch {
			case err == nil:
				line.CardName = tpl.CardName
			case apperr.KindOf(err) != apperr.KindNotFound:
				return err
			}
			out = append(out, line)
		}
		return nil
	})
	return out, err
}

// AbandonGame ends the caller's in-progress game without a rollup.
func (e *Engine) AbandonGame(ctx context.Context, caller auth.Identity, gameID int64) (*models.Game, error) {
	g, action, err := e.mutate(ctx, caller, gameID, func(_ store.Tx, g *models.Game) (string, map[string]any, error) {
		g.Status = models.GameAbandoned
		return "abandon_game", map[string]any{"round": g.Round}, nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(logrus.Fields{"game_id": gameID, "owner_id": caller.ProfileID}).Info("game abandoned")
	e.publish(ctx, action)
	return &g, nil
}
