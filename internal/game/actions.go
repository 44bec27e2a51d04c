package game

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

type Action string

const (
	ActionDraw            Action = "draw"
	ActionPlaceInHand     Action = "place_in_hand"
	ActionPlaceInDeck     Action = "place_in_deck"
	ActionDiscard         Action = "discard"
	ActionPlay            Action = "play"
	ActionUpdatePlayNotes Action = "update_play_notes"
)

// UnselectedCard is the card id a client sends with place_in_hand to pull a
// card of CardTemplateID out of the deck instead of naming one.
const UnselectedCard int64 = -1

type ActionRequest struct {
	GameID         int64  `json:"game_id"`
	CardID         int64  `json:"card_id"`
	CardTemplateID *int64 `json:"card_template_id"`
	PlayNotes      string `json:"update_play_notes"`
}

type ActionResult struct {
	Cards []models.PlayerCard `json:"cards"`
	// NewCard is the drawn card, set for draw only.
	NewCard *models.PlayerCard `json:"new_card,omitempty"`
}

// ApplyAction moves one card of the caller's in-progress game. A rejected
// action changes nothing.
func (e *Engine) ApplyAction(ctx context.Context, caller auth.Identity, action Action, req ActionRequest) (*ActionResult, error) {
	var out ActionResult
	_, rec, err := e.mutate(ctx, caller, req.GameID, func(tx store.Tx, g *models.Game) (string, map[string]any, error) {
		card, err := e.transition(ctx, tx, g, action, req)
		if err != nil {
			return "", nil, err
		}
		if err := tx.UpdatePlayerCard(ctx, card); err != nil {
			return "", nil, fmt.Errorf("update card: %w", err)
		}
		if action == ActionDraw {
			drawn := *card
			out.NewCard = &drawn
		}
		out.Cards, err = tx.ListPlayerCards(ctx, store.CardQuery{GameID: g.ID})
		if err != nil {
			return "", nil, err
		}
		return string(action), map[string]any{
			"card_id":          card.ID,
			"card_template_id": card.CardTemplateID,
			"status":           card.Status,
			"round":            g.Round,
		}, nil
	})
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"game_id": req.GameID,
			"card_id": req.CardID,
			"action":  action,
		}).WithError(err).Debug("card action rejected")
		return nil, err
	}
	e.publish(ctx, rec)
	return &out, nil
}

// transition returns the card action moves, already in its new state.
func (e *Engine) transition(ctx context.Context, tx store.Tx, g *models.Game, action Action, req ActionRequest) (*models.PlayerCard, error) {
	switch {
	case action == ActionDraw:
		deck, err := tx.ListPlayerCards(ctx, store.CardQuery{GameID: g.ID, Status: models.CardInDeck})
		if err != nil {
			return nil, err
		}
		if len(deck) == 0 {
			return nil, apperr.Validation("no cards left in deck")
		}
		c := deck[e.intn(len(deck))]
		c.Status = models.CardInHand
		c.DrawnThisRound = true
		return &c, nil

	case action == ActionPlaceInHand && req.CardID == UnselectedCard && req.CardTemplateID != nil:
		tpl, err := tx.GetCardTemplate(ctx, *req.CardTemplateID)
		if err != nil {
			return nil, notFound(err, "card template not found")
		}
		deck, err := tx.ListPlayerCards(ctx, store.CardQuery{GameID: g.ID, Status: models.CardInDeck, TemplateID: &tpl.ID})
		if err != nil {
			return nil, err
		}
		if len(deck) == 0 {
			return nil, apperr.Validation("unable to draw this card").WithMetadata("card_template_id", fmt.Sprint(tpl.ID))
		}
		c := deck[0]
		c.Status = models.CardInHand
		c.DrawnThisRound = true
		return &c, nil
	}

	if !knownAction(action) {
		return nil, apperr.Validation("invalid action").WithMetadata("action", string(action))
	}

	c, err := tx.GetPlayerCard(ctx, req.CardID)
	if err != nil {
		return nil, notFound(err, "card not found")
	}
	if c.GameID != g.ID {
		return nil, apperr.NotFound("card not found")
	}

	switch action {
	case ActionPlaceInDeck:
		c.Status = models.CardInDeck
	case ActionPlaceInHand:
		c.Status = models.CardInHand
	case ActionDiscard:
		if c.Status != models.CardInHand && c.Status != models.CardInPlay {
			return nil, illegal("card not valid to discard", c.Status)
		}
		c.Status = models.CardDiscarded
		c.DiscardedThisRound = true
	case ActionPlay:
		if c.Status != models.CardInHand {
			return nil, illegal("card not in hand", c.Status)
		}
		c.Status = models.CardInPlay
	case ActionUpdatePlayNotes:
		if c.Status != models.CardInPlay {
			return nil, illegal("card not in play", c.Status)
		}
		c.PlayNotes = req.PlayNotes
	}
	return c, nil
}

func knownAction(a Action) bool {
	switch a {
	case ActionPlaceInDeck, ActionPlaceInHand, ActionDiscard, ActionPlay, ActionUpdatePlayNotes:
		return true
	}
	return false
}

func illegal(msg string, status models.CardStatus) error {
	return apperr.Validation("%s: %s", msg, status).WithMetadata("status", string(status))
}

// notFound rewrites a store NotFound with msg and passes other errors through.
func notFound(err error, msg string) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.NotFound("%s", msg)
	}
	return err
}
