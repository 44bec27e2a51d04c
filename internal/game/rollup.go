package game

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

// RollupResult counts what a rollup consumed.
type RollupResult struct {
	Game      models.Game         `json:"game"`
	Cards     []models.PlayerCard `json:"cards"`
	Drawn     int                 `json:"drawn"`
	Discarded int                 `json:"discarded"`
}

// EndRound folds the round's draw and discard flags into the usage counters
// and advances the round.
func (e *Engine) EndRound(ctx context.Context, caller auth.Identity, gameID int64) (*RollupResult, error) {
	return e.endRound(ctx, caller, gameID, false)
}

// EndGame performs the same rollup as EndRound and completes the game. The
// round number is left where it was.
func (e *Engine) EndGame(ctx context.Context, caller auth.Identity, gameID int64) (*RollupResult, error) {
	return e.endRound(ctx, caller, gameID, true)
}

func (e *Engine) endRound(ctx context.Context, caller auth.Identity, gameID int64, final bool) (*RollupResult, error) {
	var out RollupResult
	g, action, err := e.mutate(ctx, caller, gameID, func(tx store.Tx, g *models.Game) (string, map[string]any, error) {
		drawn, discarded, err := rollup(ctx, tx, g.ID)
		if err != nil {
			return "", nil, err
		}
		out.Drawn, out.Discarded = drawn, discarded

		name := "end_round"
		if final {
			name = "end_game"
			g.Status = models.GameCompleted
		} else {
			g.Round++
		}

		out.Cards, err = tx.ListPlayerCards(ctx, store.CardQuery{GameID: g.ID})
		if err != nil {
			return "", nil, err
		}
		return name, map[string]any{
			"round":     g.Round,
			"drawn":     drawn,
			"discarded": discarded,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	out.Game = g

	e.logger.WithFields(logrus.Fields{
		"game_id":   g.ID,
		"round":     g.Round,
		"status":    g.Status,
		"drawn":     out.Drawn,
		"discarded": out.Discarded,
	}).Info(action.Action)
	e.publish(ctx, action)
	return &out, nil
}

// rollup consumes every drawn_this_round and discarded_this_round flag in the
// game, whatever zone the card is in now.
func rollup(ctx context.Context, tx store.Tx, gameID int64) (drawn, discarded int, err error) {
	cards, err := tx.ListPlayerCards(ctx, store.CardQuery{GameID: gameID})
	if err != nil {
		return 0, 0, err
	}
	for _, c := range cards {
		if !c.DrawnThisRound && !c.DiscardedThisRound {
			continue
		}
		var stats store.StatsDelta
		var counts store.TemplateDelta
		if c.DrawnThisRound {
			stats.Drawn, counts.Plays = 1, 1
			c.DrawnThisRound = false
			drawn++
		}
		if c.DiscardedThisRound {
			stats.Discarded, counts.Discards = 1, 1
			c.DiscardedThisRound = false
			discarded++
		}
		if err := tx.AddUserCardStats(ctx, c.OwnerID, c.CardTemplateID, stats); err != nil {
			return 0, 0, fmt.Errorf("update card stats: %w", err)
		}
		if err := tx.AddCardTemplateCounts(ctx, c.CardTemplateID, counts); err != nil {
			return 0, 0, fmt.Errorf("update card template counts: %w", err)
		}
		if err := tx.UpdatePlayerCard(ctx, &c); err != nil {
			return 0, 0, fmt.Errorf("clear card flags: %w", err)
		}
	}
	return drawn, discarded, nil
}
