// Package catalog administers the reference data lists and games are built
// from: factions, commanders, units, attachments, NCUs, card templates and
// the keyword glossary. Reads are open to anyone; writes require a moderator.
// A row that lists, games or other catalog rows still point at cannot be
// deleted.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store  store.Store
	logger logrus.FieldLogger
}

func NewService(s store.Store, logger logrus.FieldLogger) *Service {
	return &Service{store: s, logger: logger.WithField("component", "catalog")}
}

func requireModerator(caller auth.Identity, what string) error {
	if caller.Anonymous() {
		return &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}
	if !caller.Moderator {
		return apperr.Forbidden("you do not have permission to edit %s", what)
	}
	return nil
}

func requireName(name, what string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("missing %s name", what)
	}
	return nil
}

// read runs fn in a transaction and returns its result.
func read[T any](ctx context.Context, s store.Store, fn func(tx store.Tx) (T, error)) (T, error) {
	var out T
	err := s.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

// remove deletes the catalog row id of kind with del unless something still
// references it.
func (s *Service) remove(ctx context.Context, caller auth.Identity, kind store.CatalogKind, id int64, del func(tx store.Tx) error) error {
	if err := requireModerator(caller, string(kind)+"s"); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.CatalogReferences(ctx, kind, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("%s %d is still used by %d other records", kind, id, n)
		}
		return del(tx)
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"kind": kind, "id": id}).Info("catalog entry deleted")
	return nil
}

func (s *Service) logSaved(kind string, id int64, name string) {
	s.logger.WithFields(logrus.Fields{"kind": kind, "id": id, "name": name}).Info("catalog entry saved")
}

// Factions

func (s *Service) Factions(ctx context.Context) ([]models.Faction, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Faction, error) { return tx.ListFactions(ctx) })
}

func (s *Service) SaveFaction(ctx context.Context, caller auth.Identity, f models.Faction) (*models.Faction, error) {
	if err := requireModerator(caller, "factions"); err != nil {
		return nil, err
	}
	if err := requireName(f.Name, "faction"); err != nil {
		return nil, err
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error { return tx.SaveFaction(ctx, &f) })
	if err != nil {
		return nil, err
	}
	s.logSaved("faction", f.ID, f.Name)
	return &f, nil
}

func (s *Service) DeleteFaction(ctx context.Context, caller auth.Identity, id int64) error {
	return s.remove(ctx, caller, store.CatalogFaction, id, func(tx store.Tx) error { return tx.DeleteFaction(ctx, id) })
}

// Commanders

func (s *Service) Commanders(ctx context.Context, factionID *int64) ([]models.Commander, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Commander, error) {
		return tx.ListCommanders(ctx, store.CommanderQuery{FactionID: factionID})
	})
}

func (s *Service) SaveCommander(ctx context.Context, caller auth.Identity, c models.Commander) (*models.Commander, error) {
	if err := requireModerator(caller, "commanders"); err != nil {
		return nil, err
	}
	if err := requireName(c.Name, "commander"); err != nil {
		return nil, err
	}
	if !c.CommanderType.Valid() {
		return nil, apperr.Validation("invalid commander_type %q", c.CommanderType)
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetFaction(ctx, c.FactionID); err != nil {
			return err
		}
		return tx.SaveCommander(ctx, &c)
	})
	if err != nil {
		return nil, err
	}
	s.logSaved("commander", c.ID, c.Name)
	return &c, nil
}

func (s *Service) DeleteCommander(ctx context.Context, caller auth.Identity, id int64) error {
	return s.remove(ctx, caller, store.CatalogCommander, id, func(tx store.Tx) error { return tx.DeleteCommander(ctx, id) })
}

// Units

// Units lists every unit, or with factionID set, the units that faction may
// field: its own plus the neutral faction's when it is eligible.
func (s *Service) Units(ctx context.Context, factionID *int64) ([]models.Unit, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Unit, error) {
		if factionID == nil {
			return tx.ListUnits(ctx, store.UnitQuery{})
		}
		f, err := tx.GetFaction(ctx, *factionID)
		if err != nil {
			return nil, err
		}
		scope, err := ResolveScope(ctx, tx, f)
		if err != nil {
			return nil, err
		}
		return tx.ListUnits(ctx, store.UnitQuery{FactionIDs: scope.FactionIDs()})
	})
}

// UnitInput is a unit create or update. The Optional fields keep the stored
// value when omitted and clear it when sent as null.
type UnitInput struct {
	ID                  int64                  `json:"id"`
	Name                string                 `json:"name"`
	FactionID           int64                  `json:"faction_id"`
	PointsCost          int                    `json:"points_cost"`
	UnitType            string                 `json:"unit_type"`
	Status              models.UnitStatus      `json:"status"`
	AttachedCommanderID models.Optional[int64] `json:"attached_commander"`
	MaxInList           models.Optional[int]   `json:"max_in_list"`
	IsUnique            bool                   `json:"is_unique"`
	IsAdaptive          bool                   `json:"is_adaptive"`
	ImgURL              string                 `json:"img_url"`
	MainURL             string                 `json:"main_url"`
}

func (s *Service) SaveUnit(ctx context.Context, caller auth.Identity, in UnitInput) (*models.Unit, error) {
	if err := requireModerator(caller, "units"); err != nil {
		return nil, err
	}
	if err := requireName(in.Name, "unit"); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, apperr.Validation("invalid unit status %q", in.Status)
	}
	if in.MaxInList.Set && !in.MaxInList.Null && in.MaxInList.Value < 1 {
		return nil, apperr.Validation("max_in_list must be at least 1")
	}

	var u models.Unit
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if in.ID != 0 {
			cur, err := tx.GetUnit(ctx, in.ID)
			if err != nil {
				return err
			}
			u = *cur
		}
		if _, err := tx.GetFaction(ctx, in.FactionID); err != nil {
			return err
		}
		if in.AttachedCommanderID.Set && !in.AttachedCommanderID.Null {
			if _, err := tx.GetCommander(ctx, in.AttachedCommanderID.Value); err != nil {
				return err
			}
		}

		u.Name = in.Name
		u.FactionID = in.FactionID
		u.PointsCost = in.PointsCost
		u.UnitType = in.UnitType
		u.Status = in.Status
		u.IsUnique = in.IsUnique
		u.IsAdaptive = in.IsAdaptive
		u.ImgURL = in.ImgURL
		u.MainURL = in.MainURL
		in.AttachedCommanderID.Apply(&u.AttachedCommanderID)
		in.MaxInList.Apply(&u.MaxInList)
		return tx.SaveUnit(ctx, &u)
	})
	if err != nil {
		return nil, err
	}
	s.logSaved("unit", u.ID, u.Name)
	return &u, nil
}

func (s *Service) DeleteUnit(ctx context.Context, caller auth.Identity, id int64) error {
	return s.remove(ctx, caller, store.CatalogUnit, id, func(tx store.Tx) error { return tx.DeleteUnit(ctx, id) })
}

// Attachments

// Attachments is scoped the same way as Units.
func (s *Service) Attachments(ctx context.Context, factionID *int64) ([]models.Attachment, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.Attachment, error) {
		if factionID == nil {
			return tx.ListAttachments(ctx, store.AttachmentQuery{})
		}
		f, err := tx.GetFaction(ctx, *factionID)
		if err != nil {
			return nil, err
		}
		scope, err := ResolveScope(ctx, tx, f)
		if err != nil {
			return nil, err
		}
		return tx.ListAttachments(ctx, store.AttachmentQuery{FactionIDs: scope.FactionIDs()})
	})
}

func (s *Service) SaveAttachment(ctx context.Context, caller auth.Identity, a models.Attachment) (*models.Attachment, error) {
	if err := requireModerator(caller, "attachments"); err != nil {
		return nil, err
	}
	if err := requireName(a.Name, "attachment"); err != nil {
		return nil, err
	}
	if !a.AttachmentType.Valid() {
		return nil, apperr.Validation("invalid attachment_type %q", a.AttachmentType)
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetFaction(ctx, a.FactionID); err != nil {
			return err
		}
		return tx.SaveAttachment(ctx, &a)
	})
	if err != nil {
		return nil, err
	}
	s.logSaved("attachment", a.ID, a.Name)
	return &a, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, caller auth.Identity, id int64) error {
	return s.remove(ctx, caller, store.CatalogAttachment, id, func(tx store.Tx) error { return tx.DeleteAttachment(ctx, id) })
}

// NCUs

func (s *Service) NCUs(ctx context.Context, factionID *int64) ([]models.NCU, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.NCU, error) {
		q := store.NCUQuery{}
		if factionID != nil {
			q.FactionIDs = []int64{*factionID}
		}
		return tx.ListNCUs(ctx, q)
	})
}

func (s *Service) SaveNCU(ctx context.Context, caller auth.Identity, n models.NCU) (*models.NCU, error) {
	if err := requireModerator(caller, "ncus"); err != nil {
		return nil, err
	}
	if err := requireName(n.Name, "ncu"); err != nil {
		return nil, err
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetFaction(ctx, n.FactionID); err != nil {
			return err
		}
		return tx.SaveNCU(ctx, &n)
	})
	if err != nil {
		return nil, err
	}
	s.logSaved("ncu", n.ID, n.Name)
	return &n, nil
}

func (s *Service) DeleteNCU(ctx context.Context, caller auth.Identity, id int64) error {
	return s.remove(ctx, caller, store.CatalogNCU, id, func(tx store.Tx) error { return tx.DeleteNCU(ctx, id) })
}

// Card templates

func (s *Service) CardsOfCommander(ctx context.Context, commanderID int64) ([]models.CardTemplate, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.CardTemplate, error) {
		if _, err := tx.GetCommander(ctx, commanderID); err != nil {
			return nil, err
		}
		return tx.ListCardTemplates(ctx, store.CardTemplateQuery{CommanderID: &commanderID})
	})
}

// CardsOfFaction returns the faction's generic cards, the ones no commander owns.
func (s *Service) CardsOfFaction(ctx context.Context, factionID int64) ([]models.CardTemplate, error) {
	return read(ctx, s.store, func(tx store.Tx) ([]models.CardTemplate, error) {
		if _, err := tx.GetFaction(ctx, factionID); err != nil {
			return nil, err
		}
		return tx.ListCardTemplates(ctx, store.CardTemplateQuery{FactionID: &factionID, GenericOnly: true})
	})
}

func (s *Service) SaveCardTemplate(ctx context.Context, caller auth.Identity, c models.CardTemplate) (*models.CardTemplate, error) {
	if err := requireModerator(caller, "cards"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.CardName) == "" {
		return nil, apperr.Validation("missing card_name")
	}
	if c.FactionID == nil {
		return nil, apperr.Validation("missing faction_id")
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if c.ID != 0 {
			cur, err := tx.GetCardTemplate(ctx, c.ID)
			if err != nil {
				return err
			}
			// counters are only moved by game rollups
			c.GameCount, c.PlayCount, c.DiscardCount = cur.GameCount, cur.PlayCount, cur.DiscardCount
		}
		if _, err := tx.GetFaction(ctx, *c.FactionID); err != nil {
			return err
		}
		if c.CommanderID != nil {
			if _, err := tx.GetCommander(ctx, *c.CommanderID); err != nil {
				return err
			}
		}
		all, err := tx.ListCardTemplates(ctx, store.CardTemplateQuery{})
		if err != nil {
			return fmt.Errorf("count card templates: %w", err)
		}
		if err := checkReplacesChain(ctx, tx, &c, len(all)+1); err != nil {
			return err
		}
		return tx.SaveCardTemplate(ctx, &c)
	})
	if err != nil {
		return nil, err
	}
	s.logSaved("card_template", c.ID, c.CardName)
	return &c, nil
}

func (s *Service) DeleteCardTemplate(ctx context.Context, caller auth.Identity, id int64) error {
	return s.remove(ctx, caller, store.CatalogCardTemplate, id, func(tx store.Tx) error { return tx.DeleteCardTemplate(ctx, id) })
}
