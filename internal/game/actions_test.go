package game

import (
	"context"
	"testing"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (fx *fixture) act(t *testing.T, gameID int64, action Action, cardID int64) *ActionResult {
	t.Helper()
	res, err := fx.eng.ApplyAction(context.Background(), fx.player, action, ActionRequest{GameID: gameID, CardID: cardID})
	require.NoError(t, err)
	return res
}

func cardByID(cards []models.PlayerCard, id int64) models.PlayerCard {
	for _, c := range cards {
		if c.ID == id {
			return c
		}
	}
	return models.PlayerCard{}
}

func TestDrawPicksFromDeck(t *testing.T) {
	var seen []int
	fx := newFixture(t, WithRand(func(n int) int {
		seen = append(seen, n)
		return n - 1
	}))
	s := fx.start(t)

	res := fx.act(t, s.Game.ID, ActionDraw, 0)
	require.NotNil(t, res.NewCard)
	last := s.Cards[len(s.Cards)-1]
	assert.Equal(t, last.ID, res.NewCard.ID)
	assert.Equal(t, models.CardInHand, res.NewCard.Status)
	assert.True(t, res.NewCard.DrawnThisRound)
	assert.Len(t, res.Cards, len(s.Cards))
	assert.Equal(t, models.CardInHand, cardByID(res.Cards, last.ID).Status)

	fx.act(t, s.Game.ID, ActionDraw, 0)
	assert.Equal(t, []int{6, 5}, seen)
}

func TestDrawEmptyDeck(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	s := fx.start(t)

	for range s.Cards {
		fx.act(t, s.Game.ID, ActionDraw, 0)
	}
	before := fx.cards(t, s.Game.ID)
	for _, c := range before {
		assert.Equal(t, models.CardInHand, c.Status)
	}

	_, err := fx.eng.ApplyAction(ctx, fx.player, ActionDraw, ActionRequest{GameID: s.Game.ID})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "no cards left in deck")
	assert.Equal(t, before, fx.cards(t, s.Game.ID))
}

func TestTransitionLegality(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	s := fx.start(t)
	card := s.Cards[0].ID

	reject := func(action Action, want string) {
		t.Helper()
		before := fx.cards(t, s.Game.ID)
		_, err := fx.eng.ApplyAction(ctx, fx.player, action, ActionRequest{GameID: s.Game.ID, CardID: card, PlayNotes: "x"})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Contains(t, err.Error(), want)
		assert.Equal(t, before, fx.cards(t, s.Game.ID))
	}

	// in-deck
	reject(ActionDiscard, "card not valid to discard: in-deck")
	reject(ActionPlay, "card not in hand: in-deck")
	reject(ActionUpdatePlayNotes, "card not in play: in-deck")

	res := fx.act(t, s.Game.ID, ActionPlaceInHand, card)
	got := cardByID(res.Cards, card)
	assert.Equal(t, models.CardInHand, got.Status)
	assert.False(t, got.DrawnThisRound)
	reject(ActionUpdatePlayNotes, "card not in play: in-hand")

	res = fx.act(t, s.Game.ID, ActionPlay, card)
	assert.Equal(t, models.CardInPlay, cardByID(res.Cards, card).Status)
	reject(ActionPlay, "card not in hand: in-play")

	res, err := fx.eng.ApplyAction(ctx, fx.player, ActionUpdatePlayNotes, ActionRequest{GameID: s.Game.ID, CardID: card, PlayNotes: "flanked the Bolton line"})
	require.NoError(t, err)
	assert.Equal(t, "flanked the Bolton line", cardByID(res.Cards, card).PlayNotes)
	assert.Nil(t, res.NewCard)

	res = fx.act(t, s.Game.ID, ActionDiscard, card)
	got = cardByID(res.Cards, card)
	assert.Equal(t, models.CardDiscarded, got.Status)
	assert.True(t, got.DiscardedThisRound)
	reject(ActionPlay, "card not in hand: discarded")
	reject(ActionDiscard, "card not valid to discard: discarded")

	res = fx.act(t, s.Game.ID, ActionPlaceInDeck, card)
	assert.Equal(t, models.CardInDeck, cardByID(res.Cards, card).Status)
}

func TestDiscardFromHand(t *testing.T) {
	fx := newFixture(t)
	s := fx.start(t)
	card := s.Cards[1].ID

	fx.act(t, s.Game.ID, ActionPlaceInHand, card)
	res := fx.act(t, s.Game.ID, ActionDiscard, card)
	assert.Equal(t, models.CardDiscarded, cardByID(res.Cards, card).Status)
}

func TestPlaceInHandByTemplate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	s := fx.start(t)

	req := ActionRequest{GameID: s.Game.ID, CardID: UnselectedCard, CardTemplateID: &fx.rally.ID}
	for range CopiesPerTemplate {
		res, err := fx.eng.ApplyAction(ctx, fx.player, ActionPlaceInHand, req)
		require.NoError(t, err)
		assert.Nil(t, res.NewCard)
	}

	for _, c := range fx.cards(t, s.Game.ID) {
		if c.CardTemplateID == fx.rally.ID {
			assert.Equal(t, models.CardInHand, c.Status)
			assert.True(t, c.DrawnThisRound)
		} else {
			assert.Equal(t, models.CardInDeck, c.Status)
		}
	}

	_, err := fx.eng.ApplyAction(ctx, fx.player, ActionPlaceInHand, req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "unable to draw this card")

	unknown := int64(999)
	_, err = fx.eng.ApplyAction(ctx, fx.player, ActionPlaceInHand, ActionRequest{GameID: s.Game.ID, CardID: UnselectedCard, CardTemplateID: &unknown})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// the basic card was superseded so no copy was dealt
	_, err = fx.eng.ApplyAction(ctx, fx.player, ActionPlaceInHand, ActionRequest{GameID: s.Game.ID, CardID: UnselectedCard, CardTemplateID: &fx.basic.ID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestActionRejections(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	s := fx.start(t)
	other := fx.start(t)

	_, err := fx.eng.ApplyAction(ctx, fx.player, Action("shuffle"), ActionRequest{GameID: s.Game.ID, CardID: s.Cards[0].ID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "invalid action")

	_, err = fx.eng.ApplyAction(ctx, fx.player, ActionPlay, ActionRequest{GameID: s.Game.ID, CardID: 9999})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = fx.eng.ApplyAction(ctx, fx.player, ActionPlaceInHand, ActionRequest{GameID: s.Game.ID, CardID: other.Cards[0].ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = fx.eng.ApplyAction(ctx, fx.player, ActionDraw, ActionRequest{GameID: 9999})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestActionsAreRecordedInOrder(t *testing.T) {
	fx := newFixture(t)
	s := fx.start(t)

	fx.act(t, s.Game.ID, ActionDraw, 0)
	fx.act(t, s.Game.ID, ActionPlaceInHand, s.Cards[0].ID)
	_, err := fx.eng.ApplyAction(context.Background(), fx.player, ActionPlay, ActionRequest{GameID: s.Game.ID, CardID: 9999})
	require.Error(t, err)

	assert.Equal(t, []string{"start_game", "draw", "place_in_hand"}, fx.pub.published())
	for i, c := range fx.pub.Calls {
		a := c.Arguments.Get(1).(models.CardAction)
		assert.Equal(t, i, a.ActionIndex)
		assert.Equal(t, s.Game.ID, a.GameID)
		assert.Equal(t, fx.player.ProfileID, a.ActorID)
	}

	sess, err := fx.eng.Cards(context.Background(), fx.player, s.Game.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.Game.ActionCount)
}
