package catalog

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/jason-s-yu/songdecks/internal/store/memstore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var moderator = auth.Identity{ProfileID: uuid.New(), Username: "mod", Moderator: true}

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(memstore.New(), logger)
}

func TestEligibleForNeutral(t *testing.T) {
	assert.False(t, EligibleForNeutral(nil))
	assert.True(t, EligibleForNeutral(&models.Faction{Neutral: true}))
	assert.True(t, EligibleForNeutral(&models.Faction{Neutral: true, CanUseNeutral: false}))
	assert.True(t, EligibleForNeutral(&models.Faction{CanUseNeutral: true}))
	assert.False(t, EligibleForNeutral(&models.Faction{}))
}

func TestUnitsRespectNeutralScope(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	stark, err := svc.SaveFaction(ctx, moderator, models.Faction{Name: "Stark", CanUseNeutral: true})
	require.NoError(t, err)
	nw, err := svc.SaveFaction(ctx, moderator, models.Faction{Name: "Night's Watch"})
	require.NoError(t, err)
	neutral, err := svc.SaveFaction(ctx, moderator, models.Faction{Name: "Neutral", Neutral: true})
	require.NoError(t, err)

	for _, in := range []UnitInput{
		{Name: "Outriders", FactionID: stark.ID, Status: models.UnitStatusGeneric},
		{Name: "Rangers", FactionID: nw.ID, Status: models.UnitStatusGeneric},
		{Name: "Sellswords", FactionID: neutral.ID, Status: models.UnitStatusGeneric},
	} {
		_, err := svc.SaveUnit(ctx, moderator, in)
		require.NoError(t, err)
	}

	names := func(us []models.Unit) []string {
		var out []string
		for _, u := range us {
			out = append(out, u.Name)
		}
		return out
	}

	got, err := svc.Units(ctx, &stark.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Outriders", "Sellswords"}, names(got))

	got, err = svc.Units(ctx, &nw.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Rangers"}, names(got))

	got, err = svc.Units(ctx, &neutral.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Sellswords"}, names(got))

	got, err = svc.Units(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSaveUnitPartialUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	f, err := svc.SaveFaction(ctx, moderator, models.Faction{Name: "Stark"})
	require.NoError(t, err)
	c, err := svc.SaveCommander(ctx, moderator, models.Commander{Name: "Robb", FactionID: f.ID, CommanderType: models.CommanderTypeUnit})
	require.NoError(t, err)

	u, err := svc.SaveUnit(ctx, moderator, UnitInput{
		Name: "Robb's Wolves", FactionID: f.ID, Status: models.UnitStatusCommanderUnit,
		AttachedCommanderID: models.Some(c.ID), MaxInList: models.Some(1),
	})
	require.NoError(t, err)
	require.NotNil(t, u.MaxInList)

	var patch UnitInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Robb's Wolves","status":"commander_unit","max_in_list":null}`), &patch))
	patch.ID = u.ID
	patch.FactionID = f.ID

	u2, err := svc.SaveUnit(ctx, moderator, patch)
	require.NoError(t, err)
	assert.Nil(t, u2.MaxInList, "explicit null clears max_in_list")
	require.NotNil(t, u2.AttachedCommanderID, "omitted attached_commander is kept")
	assert.Equal(t, c.ID, *u2.AttachedCommanderID)
}

func TestMutationsRequireModerator(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.SaveFaction(ctx, auth.Identity{ProfileID: uuid.New()}, models.Faction{Name: "Stark"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.SaveFaction(ctx, auth.Identity{}, models.Faction{Name: "Stark"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestSaveCommanderValidatesFaction(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SaveCommander(ctx, moderator, models.Commander{Name: "Ghost", FactionID: 99, CommanderType: models.CommanderTypeUnit})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.SaveCommander(ctx, moderator, models.Commander{Name: "Ghost", FactionID: 99, CommanderType: "wizard"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSaveCardTemplateRejectsReplacesCycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	f, err := svc.SaveFaction(ctx, moderator, models.Faction{Name: "Stark"})
	require.NoError(t, err)

	a, err := svc.SaveCardTemplate(ctx, moderator, models.CardTemplate{CardName: "A", FactionID: &f.ID})
	require.NoError(t, err)
	b, err := svc.SaveCardTemplate(ctx, moderator, models.CardTemplate{CardName: "B", FactionID: &f.ID, ReplacesID: &a.ID})
	require.NoError(t, err)

	a.ReplacesID = &b.ID
	_, err = svc.SaveCardTemplate(ctx, moderator, *a)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	self := *b
	self.ReplacesID = &b.ID
	_, err = svc.SaveCardTemplate(ctx, moderator, self)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	missing := int64(404)
	_, err = svc.SaveCardTemplate(ctx, moderator, models.CardTemplate{CardName: "C", FactionID: &f.ID, ReplacesID: &missing})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCardsOfFactionExcludesCommanderCards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	f, err := svc.SaveFaction(ctx, moderator, models.Faction{Name: "Stark"})
	require.NoError(t, err)
	c, err := svc.SaveCommander(ctx, moderator, models.Commander{Name: "Robb", FactionID: f.ID, CommanderType: models.CommanderTypeAttachment})
	require.NoError(t, err)

	_, err = svc.SaveCardTemplate(ctx, moderator, models.CardTemplate{CardName: "Basic", FactionID: &f.ID})
	require.NoError(t, err)
	_, err = svc.SaveCardTemplate(ctx, moderator, models.CardTemplate{CardName: "Robb's", FactionID: &f.ID, CommanderID: &c.ID})
	require.NoError(t, err)

	generic, err := svc.CardsOfFaction(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, generic, 1)
	assert.Equal(t, "Basic", generic[0].CardName)

	own, err := svc.CardsOfCommander(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Robb's", own[0].CardName)
}

func TestDeleteRefusesRowsInUse(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	st := memstore.New()
	svc := NewService(st, logger)

	f, err := svc.SaveFaction(ctx, moderator, models.Faction{Name: "Stark"})
	require.NoError(t, err)
	c, err := svc.SaveCommander(ctx, moderator, models.Commander{Name: "Robb", FactionID: f.ID, CommanderType: models.CommanderTypeAttachment})
	require.NoError(t, err)
	u, err := svc.SaveUnit(ctx, moderator, UnitInput{Name: "Outriders", FactionID: f.ID, Status: models.UnitStatusGeneric})
	require.NoError(t, err)
	spare, err := svc.SaveUnit(ctx, moderator, UnitInput{Name: "Spearmen", FactionID: f.ID, Status: models.UnitStatusGeneric})
	require.NoError(t, err)
	robb, err := svc.SaveAttachment(ctx, moderator, models.Attachment{Name: "Robb", FactionID: f.ID, AttachmentType: models.AttachmentTypeCommander})
	require.NoError(t, err)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		l := &models.List{Name: "Wolves", OwnerID: moderator.ProfileID, FactionID: f.ID, CommanderID: c.ID}
		if err := tx.SaveList(ctx, l); err != nil {
			return err
		}
		return tx.CreateListUnit(ctx, &models.ListUnit{ListID: l.ID, UnitID: u.ID, AttachmentIDs: []int64{robb.ID}})
	}))

	for name, del := range map[string]func() error{
		"unit":       func() error { return svc.DeleteUnit(ctx, moderator, u.ID) },
		"attachment": func() error { return svc.DeleteAttachment(ctx, moderator, robb.ID) },
		"commander":  func() error { return svc.DeleteCommander(ctx, moderator, c.ID) },
		"faction":    func() error { return svc.DeleteFaction(ctx, moderator, f.ID) },
	} {
		err := del()
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), name)
	}

	units, err := svc.Units(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, units, 2, "refused deletes leave the rows in place")
	atts, err := svc.Attachments(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, atts, 1)

	require.NoError(t, svc.DeleteUnit(ctx, moderator, spare.ID))
	err = svc.DeleteUnit(ctx, moderator, spare.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestKeywords(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	orders, err := svc.SaveKeywordType(ctx, moderator, models.KeywordType{Name: "Order", Description: "Order type"})
	require.NoError(t, err)
	_, err = svc.SaveKeywordType(ctx, moderator, models.KeywordType{Name: "order"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	sunder, err := svc.SaveKeywordPair(ctx, moderator, models.KeywordPair{Keyword: "Sunder", Description: "Ignores defense"})
	require.NoError(t, err)
	_, err = svc.SaveKeywordPair(ctx, moderator, models.KeywordPair{Keyword: " Bracing ", KeywordTypeID: &orders.ID})
	require.NoError(t, err)

	missing := int64(77)
	_, err = svc.SaveKeywordPair(ctx, moderator, models.KeywordPair{Keyword: "Vicious", KeywordTypeID: &missing})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = svc.SaveKeywordPair(ctx, moderator, models.KeywordPair{Keyword: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.SaveKeywordPair(ctx, auth.Identity{ProfileID: uuid.New()}, models.KeywordPair{Keyword: "Vicious"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	pairs, err := svc.KeywordPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "Bracing", pairs[0].Keyword)
	assert.Equal(t, "Sunder", pairs[1].Keyword)

	err = svc.DeleteKeywordType(ctx, moderator, orders.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "a type in use is kept")
	require.NoError(t, svc.DeleteKeywordPair(ctx, moderator, pairs[0].ID))
	require.NoError(t, svc.DeleteKeywordType(ctx, moderator, orders.ID))

	sunder.Description = "Ignores armor"
	got, err := svc.SaveKeywordPair(ctx, moderator, *sunder)
	require.NoError(t, err)
	assert.Equal(t, "Ignores armor", got.Description)
}
