package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore migrates the database named by DATABASE_URL from scratch.
// Tests skip when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	mm, err := NewMigrationManager(url)
	require.NoError(t, err)
	require.NoError(t, mm.Down())
	require.NoError(t, mm.Up())
	require.NoError(t, mm.Close())

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	s, err := Connect(context.Background(), url, logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/db", migrationURL("postgres://u:p@localhost:5432/db"))
	assert.Equal(t, "pgx5://localhost/db", migrationURL("postgresql://localhost/db"))
	assert.Equal(t, "pgx5://localhost/db", migrationURL("pgx5://localhost/db"))
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var owner models.Profile
	var game models.Game
	err := s.WithTx(ctx, func(tx store.Tx) error {
		owner = models.Profile{Username: "Rhaegar", Email: "r@example.com", Password: "x"}
		require.NoError(t, tx.CreateProfile(ctx, &owner))

		f := models.Faction{Name: "Targaryen"}
		require.NoError(t, tx.SaveFaction(ctx, &f))
		c := models.Commander{Name: "Aegon", FactionID: f.ID, CommanderType: models.CommanderTypeAttachment}
		require.NoError(t, tx.SaveCommander(ctx, &c))
		tpl := models.CardTemplate{CardName: "Fire", FactionID: &f.ID}
		require.NoError(t, tx.SaveCardTemplate(ctx, &tpl))

		game = models.Game{OwnerID: owner.ID, FactionID: f.ID, CommanderID: c.ID, Status: models.GameInProgress, Round: 1}
		require.NoError(t, tx.CreateGame(ctx, &game))
		card := models.PlayerCard{GameID: game.ID, CardTemplateID: tpl.ID, OwnerID: owner.ID, Status: models.CardInDeck}
		require.NoError(t, tx.CreatePlayerCard(ctx, &card))

		require.NoError(t, tx.AddUserCardStats(ctx, owner.ID, tpl.ID, store.StatsDelta{Included: 1}))
		require.NoError(t, tx.AddUserCardStats(ctx, owner.ID, tpl.ID, store.StatsDelta{Included: 1, Drawn: 1}))
		stats, err := tx.GetUserCardStats(ctx, owner.ID, tpl.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TimesIncluded)
		assert.Equal(t, 1, stats.TimesDrawn)
		return nil
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		dup := models.Profile{Username: "rhaegar", Email: "other@example.com", Password: "x"}
		return tx.CreateProfile(ctx, &dup)
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = s.WithTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockGame(ctx, game.ID)
		require.NoError(t, err)
		locked.ActionCount = 2
		require.NoError(t, tx.UpdateGame(ctx, locked))
		return tx.AppendCardActions(ctx, []models.CardAction{
			{GameID: game.ID, ActionIndex: 0, ActorID: owner.ID, Action: "draw", Payload: map[string]any{"card_id": 1}, RecordedAt: time.Now()},
			{GameID: game.ID, ActionIndex: 1, ActorID: owner.ID, Action: "play", RecordedAt: time.Now()},
			{GameID: game.ID, ActionIndex: 1, ActorID: owner.ID, Action: "play", RecordedAt: time.Now()},
		})
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		actions, err := tx.ListCardActions(ctx, game.ID)
		require.NoError(t, err)
		require.Len(t, actions, 2)
		assert.Equal(t, "draw", actions[0].Action)

		ids, err := tx.AbandonStaleGames(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []int64{game.ID}, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestWithTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		f := models.Faction{Name: "Stark"}
		require.NoError(t, tx.SaveFaction(ctx, &f))
		return apperr.Validation("abort")
	})
	require.Error(t, err)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		factions, err := tx.ListFactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, factions)

		_, err = tx.GetFaction(ctx, 999)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
		return nil
	})
	require.NoError(t, err)
}

func TestTaskArraysAndTags(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		tag := models.Tag{Name: "balance"}
		require.NoError(t, tx.SaveTag(ctx, &tag))
		first := models.Task{Title: "first", State: models.StateNotStarted, TagIDs: []int64{tag.ID}}
		require.NoError(t, tx.SaveTask(ctx, &first))
		second := models.Task{Title: "second", State: models.StateNotStarted, DependsOn: []int64{first.ID}}
		require.NoError(t, tx.SaveTask(ctx, &second))

		bad := models.Task{Title: "bad", State: models.StateNotStarted, DependsOn: []int64{9999}}
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(tx.SaveTask(ctx, &bad)))

		edges, err := tx.TaskDependencies(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[int64][]int64{second.ID: {first.ID}}, edges)

		got, err := tx.GetTag(ctx, tag.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.UseCount)

		require.NoError(t, tx.DeleteTag(ctx, tag.ID))
		reloaded, err := tx.GetTask(ctx, first.ID)
		require.NoError(t, err)
		assert.Empty(t, reloaded.TagIDs)

		require.NoError(t, tx.DeleteTask(ctx, first.ID))
		edges, err = tx.TaskDependencies(ctx)
		require.NoError(t, err)
		assert.Empty(t, edges)
		return nil
	})
	require.NoError(t, err)
}

func TestCatalogReferencesAndDeletes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var f models.Faction
	var unit models.Unit
	var att models.Attachment
	err := s.WithTx(ctx, func(tx store.Tx) error {
		owner := models.Profile{Username: "Ned", Email: "ned@example.com", Password: "x"}
		require.NoError(t, tx.CreateProfile(ctx, &owner))
		f = models.Faction{Name: "Stark"}
		require.NoError(t, tx.SaveFaction(ctx, &f))
		c := models.Commander{Name: "Robb", FactionID: f.ID, CommanderType: models.CommanderTypeAttachment}
		require.NoError(t, tx.SaveCommander(ctx, &c))
		unit = models.Unit{Name: "Outriders", FactionID: f.ID, Status: models.UnitStatusGeneric}
		require.NoError(t, tx.SaveUnit(ctx, &unit))
		att = models.Attachment{Name: "Robb", FactionID: f.ID, AttachmentType: models.AttachmentTypeCommander}
		require.NoError(t, tx.SaveAttachment(ctx, &att))

		l := models.List{Name: "Wolves", OwnerID: owner.ID, FactionID: f.ID, CommanderID: c.ID, PointsAllowed: 40}
		require.NoError(t, tx.SaveList(ctx, &l))
		return tx.CreateListUnit(ctx, &models.ListUnit{ListID: l.ID, UnitID: unit.ID, AttachmentIDs: []int64{att.ID}})
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.CatalogReferences(ctx, store.CatalogAttachment, att.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = tx.CatalogReferences(ctx, store.CatalogFaction, f.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, n, "list, commander, unit and attachment")
		return nil
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteUnit(ctx, unit.ID) })
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "a unit a list holds is in use, not missing")
	err = s.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteUnit(ctx, unit.ID+100) })
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
