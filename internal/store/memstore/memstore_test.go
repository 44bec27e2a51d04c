package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.SaveFaction(ctx, &models.Faction{Name: "Stark"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		factions, err := tx.ListFactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, factions)
		return nil
	}))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx store.Tx) error {
			_ = tx.SaveFaction(ctx, &models.Faction{Name: "Lannister"})
			panic("bad")
		})
	})

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		factions, _ := tx.ListFactions(ctx)
		assert.Empty(t, factions)
		return nil
	}))
}

func TestSaveUnknownIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.SaveUnit(ctx, &models.Unit{ID: 42, Name: "ghost"})
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestProfileUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateProfile(ctx, &models.Profile{Username: "robb", Email: "robb@winterfell"})
	}))
	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateProfile(ctx, &models.Profile{Username: "Robb", Email: "other@winterfell"})
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAttachmentQueryFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for _, a := range []models.Attachment{
			{Name: "A", FactionID: 1, AttachmentType: models.AttachmentTypeCommander},
			{Name: "B", FactionID: 2, AttachmentType: models.AttachmentTypeGeneric},
			{Name: "C", FactionID: 3, AttachmentType: models.AttachmentTypeCommander},
		} {
			a := a
			require.NoError(t, tx.SaveAttachment(ctx, &a))
		}

		got, err := tx.ListAttachments(ctx, store.AttachmentQuery{FactionIDs: []int64{1, 2}, IDs: []int64{1, 2, 3}})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = tx.ListAttachments(ctx, store.AttachmentQuery{AttachmentType: models.AttachmentTypeCommander, Name: "C"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(3), got[0].ID)

		got, err = tx.ListAttachments(ctx, store.AttachmentQuery{IDs: []int64{}})
		require.NoError(t, err)
		assert.Empty(t, got)
		return nil
	}))
}

func TestUserCardStatsUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := uuid.New()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.AddUserCardStats(ctx, owner, 7, store.StatsDelta{Included: 1}))
		require.NoError(t, tx.AddUserCardStats(ctx, owner, 7, store.StatsDelta{Included: 1, Drawn: 1}))
		st, err := tx.GetUserCardStats(ctx, owner, 7)
		require.NoError(t, err)
		assert.Equal(t, 2, st.TimesIncluded)
		assert.Equal(t, 1, st.TimesDrawn)
		all, err := tx.ListUserCardStats(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	}))
}

func TestAbandonStaleGames(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	var stale, fresh models.Game
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		stale = models.Game{OwnerID: uuid.New(), Status: models.GameInProgress, Round: 1}
		return tx.CreateGame(ctx, &stale)
	}))
	s.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		fresh = models.Game{OwnerID: uuid.New(), Status: models.GameInProgress, Round: 1}
		return tx.CreateGame(ctx, &fresh)
	}))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		ids, err := tx.AbandonStaleGames(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []int64{stale.ID}, ids)

		g, err := tx.GetGame(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, models.GameInProgress, g.Status)
		return nil
	}))
}

func TestDeleteListCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		l := models.List{Name: "l", OwnerID: uuid.New()}
		require.NoError(t, tx.SaveList(ctx, &l))
		require.NoError(t, tx.CreateListUnit(ctx, &models.ListUnit{ListID: l.ID, UnitID: 1, AttachmentIDs: []int64{2}}))
		require.NoError(t, tx.CreateListNCU(ctx, &models.ListNCU{ListID: l.ID, NCUID: 3}))
		require.NoError(t, tx.DeleteList(ctx, l.ID))

		units, _ := tx.ListListUnits(ctx, l.ID)
		ncus, _ := tx.ListListNCUs(ctx, l.ID)
		assert.Empty(t, units)
		assert.Empty(t, ncus)
		return nil
	}))
}
