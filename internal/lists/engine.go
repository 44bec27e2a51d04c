// Package lists assembles, validates and shares army lists.
//
// A save replaces the list's units and NCUs wholesale inside one
// transaction. A list with units must carry exactly one commander, either a
// unit with status "commander" or an attachment of type "commander", and
// that commander must agree with the one the list declares.
package lists

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/catalog"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

// UnitEntry is one unit placed in a submission with the attachments chosen for it.
type UnitEntry struct {
	UnitID        int64   `json:"id"`
	AttachmentIDs []int64 `json:"attachments"`
}

// Submission is a create (ListID zero) or an edit of a list.
//
// An empty Units leaves the stored units untouched, and an empty NCUIDs,
// nil or not, leaves the stored NCUs untouched.
type Submission struct {
	ListID        int64       `json:"-"`
	Name          string      `json:"name"`
	PointsAllowed int         `json:"points_allowed"`
	FactionID     int64       `json:"faction_id"`
	CommanderID   int64       `json:"commander_id"`
	Units         []UnitEntry `json:"units"`
	NCUIDs        []int64     `json:"ncu_ids"`
	IsDraft       bool        `json:"is_draft"`
	IsPublic      bool        `json:"is_public"`
	IsValid       bool        `json:"is_valid"`
}

type Engine struct {
	store  store.Store
	logger logrus.FieldLogger
}

func NewEngine(s store.Store, logger logrus.FieldLogger) *Engine {
	return &Engine{store: s, logger: logger.WithField("component", "lists")}
}

// candidate is the list's attached commander, found either as a unit or as an attachment.
type candidate struct {
	kind string
	id   int64
	name string
	// attachedCommanderID is the unit's paired commander, for unit candidates.
	attachedCommanderID *int64
}

const (
	kindUnit       = "unit"
	kindAttachment = "attachment"
)

func (c *candidate) same(o *candidate) bool {
	return c.kind == o.kind && c.id == o.id
}

// record sets the candidate, failing if one was already found.
func record(cur **candidate, next *candidate) error {
	if *cur != nil {
		return apperr.Validation("multiple commanders assigned to the list: %s and %s", (*cur).name, next.name).
			WithMetadata("first", (*cur).name).
			WithMetadata("second", next.name)
	}
	*cur = next
	return nil
}

func validateSubmission(sub Submission) error {
	if strings.TrimSpace(sub.Name) == "" {
		return apperr.Validation("missing name")
	}
	if sub.PointsAllowed <= 0 {
		return apperr.Validation("points_allowed must be positive")
	}
	if sub.FactionID == 0 {
		return apperr.Validation("missing faction_id")
	}
	if sub.CommanderID == 0 {
		return apperr.Validation("missing commander_id")
	}
	return nil
}

// Save validates and persists sub for caller and returns the materialized list.
// Any error leaves the stored list exactly as it was.
func (e *Engine) Save(ctx context.Context, caller auth.Identity, sub Submission) (*models.List, error) {
	if caller.Anonymous() {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	var out *models.List
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		faction, err := tx.GetFaction(ctx, sub.FactionID)
		if err != nil {
			return err
		}
		commander, err := tx.GetCommander(ctx, sub.CommanderID)
		if err != nil {
			return err
		}

		list := &models.List{OwnerID: caller.ProfileID}
		if sub.ListID != 0 {
			list, err = ownedList(ctx, tx, caller.ProfileID, sub.ListID)
			if err != nil {
				return err
			}
		}
		list.Name = sub.Name
		list.PointsAllowed = sub.PointsAllowed
		list.FactionID = faction.ID
		list.CommanderID = commander.ID
		list.IsDraft = sub.IsDraft
		list.IsPublic = sub.IsPublic
		list.IsValid = sub.IsValid
		if err := tx.SaveList(ctx, list); err != nil {
			return fmt.Errorf("save list: %w", err)
		}

		if len(sub.Units) > 0 {
			if err := assembleUnits(ctx, tx, list, faction, commander, sub.Units); err != nil {
				return err
			}
		}

		if len(sub.NCUIDs) > 0 {
			if err := replaceNCUs(ctx, tx, list.ID, sub.NCUIDs); err != nil {
				return err
			}
		}

		out, err = Materialize(ctx, tx, list)
		return err
	})
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"list_id":  sub.ListID,
			"owner_id": caller.ProfileID,
			"kind":     apperr.KindOf(err),
		}).WithError(err).Info("list rejected")
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"list_id":  out.ID,
		"owner_id": caller.ProfileID,
		"units":    len(out.Units),
		"ncus":     len(out.NCUs),
	}).Info("list saved")
	return out, nil
}

func assembleUnits(ctx context.Context, tx store.Tx, list *models.List, faction *models.Faction, commander *models.Commander, entries []UnitEntry) error {
	if err := tx.DeleteListUnits(ctx, list.ID); err != nil {
		return fmt.Errorf("clear list units: %w", err)
	}

	scope, err := catalog.ResolveScope(ctx, tx, faction)
	if err != nil {
		return fmt.Errorf("resolve neutral scope: %w", err)
	}
	inScope := scope.FactionIDs()

	var found *candidate
	for _, entry := range entries {
		unit, err := tx.GetUnit(ctx, entry.UnitID)
		if err != nil {
			return err
		}

		lu := &models.ListUnit{ListID: list.ID, UnitID: unit.ID}
		if unit.Status == models.UnitStatusCommander {
			err := record(&found, &candidate{
				kind:                kindUnit,
				id:                  unit.ID,
				name:                unit.Name,
				attachedCommanderID: unit.AttachedCommanderID,
			})
			if err != nil {
				return err
			}
			commanderID := list.CommanderID
			lu.CommanderID = &commanderID
		}

		if len(entry.AttachmentIDs) > 0 {
			attachments, err := resolveAttachments(ctx, tx, inScope, entry.AttachmentIDs)
			if err != nil {
				return err
			}
			for _, a := range attachments {
				if a.AttachmentType != models.AttachmentTypeCommander {
					continue
				}
				if err := record(&found, &candidate{kind: kindAttachment, id: a.ID, name: a.Name}); err != nil {
					return err
				}
			}
			for _, a := range attachments {
				lu.AttachmentIDs = append(lu.AttachmentIDs, a.ID)
			}
		}

		if err := tx.CreateListUnit(ctx, lu); err != nil {
			return fmt.Errorf("create list unit: %w", err)
		}
	}

	if found == nil {
		return apperr.Validation("commander is not attached")
	}
	return checkCommander(ctx, tx, inScope, commander, found)
}

// resolveAttachments loads ids restricted to the faction scope. An id that
// does not exist, or exists outside the scope, is not found.
func resolveAttachments(ctx context.Context, tx store.Tx, inScope []int64, ids []int64) ([]models.Attachment, error) {
	got, err := tx.ListAttachments(ctx, store.AttachmentQuery{FactionIDs: inScope, IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	byID := make(map[int64]models.Attachment, len(got))
	for _, a := range got {
		byID[a.ID] = a
	}

	out := make([]models.Attachment, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	var missing []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		a, ok := byID[id]
		if !ok {
			missing = append(missing, fmt.Sprint(id))
			continue
		}
		out = append(out, a)
	}
	if len(missing) > 0 {
		return nil, apperr.NotFound("attachment not found: %s", strings.Join(missing, ", ")).
			WithMetadata("attachment_ids", strings.Join(missing, ","))
	}
	return out, nil
}

// checkCommander confirms the candidate is the commander the list declares.
func checkCommander(ctx context.Context, tx store.Tx, inScope []int64, commander *models.Commander, found *candidate) error {
	switch commander.CommanderType {
	case models.CommanderTypeAttachment:
		matches, err := tx.ListAttachments(ctx, store.AttachmentQuery{
			FactionIDs:     inScope,
			AttachmentType: models.AttachmentTypeCommander,
			Name:           found.name,
		})
		if err != nil {
			return fmt.Errorf("load commander attachment: %w", err)
		}
		if len(matches) == 0 {
			all, err := tx.ListAttachments(ctx, store.AttachmentQuery{
				FactionIDs:     inScope,
				AttachmentType: models.AttachmentTypeCommander,
			})
			if err != nil {
				return fmt.Errorf("load commander attachments: %w", err)
			}
			names := make([]string, 0, len(all))
			for _, a := range all {
				names = append(names, a.Name)
			}
			return apperr.Validation("commander's attachment not found: %s (in scope: %s)", found.name, strings.Join(names, ", ")).
				WithMetadata("candidate", found.name)
		}
		want := &candidate{kind: kindAttachment, id: matches[0].ID, name: matches[0].Name}
		if !found.same(want) {
			return mismatch(found.name, want.name)
		}

	case models.CommanderTypeUnit:
		if found.kind == kindUnit && found.attachedCommanderID != nil && *found.attachedCommanderID != commander.ID {
			return mismatch(found.name, commander.Name)
		}
	}
	return nil
}

func mismatch(got, want string) error {
	return apperr.Validation("commander does not match the selected commander: %s != %s", got, want).
		WithMetadata("attached", got).
		WithMetadata("selected", want)
}

func replaceNCUs(ctx context.Context, tx store.Tx, listID int64, ids []int64) error {
	if err := tx.DeleteListNCUs(ctx, listID); err != nil {
		return fmt.Errorf("clear list ncus: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.GetNCU(ctx, id); err != nil {
			return err
		}
		if err := tx.CreateListNCU(ctx, &models.ListNCU{ListID: listID, NCUID: id}); err != nil {
			return fmt.Errorf("create list ncu: %w", err)
		}
	}
	return nil
}

// ownedList loads id and hides lists owned by someone else behind NotFound.
func ownedList(ctx context.Context, tx store.Tx, owner uuid.UUID, id int64) (*models.List, error) {
	l, err := tx.GetList(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != owner {
		return nil, apperr.NotFound("list not found")
	}
	return l, nil
}

// Get returns a list its owner or, when public, anyone may see.
func (e *Engine) Get(ctx context.Context, caller auth.Identity, id int64) (*models.List, error) {
	var out *models.List
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := tx.GetList(ctx, id)
		if err != nil {
			return err
		}
		if l.OwnerID != caller.ProfileID && !l.IsPublic {
			return apperr.NotFound("list not found")
		}
		out, err = Materialize(ctx, tx, l)
		return err
	})
	return out, err
}

// Lists returns the caller's own lists together with every public list of
// other profiles. With owner set, only that profile's lists are returned,
// restricted to public ones unless owner is the caller.
func (e *Engine) Lists(ctx context.Context, caller auth.Identity, owner *uuid.UUID) ([]models.List, error) {
	var out []models.List
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		all, err := tx.ListLists(ctx, store.ListQuery{OwnerID: owner})
		if err != nil {
			return err
		}
		for i := range all {
			l := &all[i]
			if l.OwnerID != caller.ProfileID && !l.IsPublic {
				continue
			}
			m, err := Materialize(ctx, tx, l)
			if err != nil {
				return err
			}
			out = append(out, *m)
		}
		return nil
	})
	return out, err
}

func (e *Engine) Delete(ctx context.Context, caller auth.Identity, id int64) error {
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := ownedList(ctx, tx, caller.ProfileID, id); err != nil {
			return err
		}
		return tx.DeleteList(ctx, id)
	})
	if err == nil {
		e.logger.WithFields(logrus.Fields{"list_id": id, "owner_id": caller.ProfileID}).Info("list deleted")
	}
	return err
}
