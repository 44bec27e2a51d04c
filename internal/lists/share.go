package lists

import (
	"context"
	"fmt"
	"slices"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

// ShareAction answers a pending shared list.
type ShareAction string

const (
	ShareConfirm ShareAction = "confirm"
	ShareDecline ShareAction = "decline"
)

// Share copies one of the caller's lists to the profile named username as a
// pending draft. A previous pending share from the caller to the same
// receiver is replaced.
func (e *Engine) Share(ctx context.Context, caller auth.Identity, listID int64, username string) (*models.List, error) {
	if caller.Anonymous() {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}

	var out *models.List
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		src, err := ownedList(ctx, tx, caller.ProfileID, listID)
		if err != nil {
			return err
		}
		receiver, err := tx.GetProfileByUsername(ctx, username)
		if err != nil {
			return err
		}
		if receiver.ID == caller.ProfileID {
			return apperr.Validation("cannot share a list with yourself")
		}

		sender := caller.ProfileID
		pending, err := tx.ListLists(ctx, store.ListQuery{OwnerID: &receiver.ID, SharedFromID: &sender, DraftOnly: true})
		if err != nil {
			return fmt.Errorf("load pending shares: %w", err)
		}
		for _, p := range pending {
			if err := tx.DeleteList(ctx, p.ID); err != nil {
				return fmt.Errorf("delete pending share %d: %w", p.ID, err)
			}
		}

		cp := &models.List{
			Name:          src.Name,
			OwnerID:       receiver.ID,
			PointsAllowed: src.PointsAllowed,
			FactionID:     src.FactionID,
			CommanderID:   src.CommanderID,
			IsDraft:       true,
			IsPublic:      false,
			IsValid:       false,
			SharedFromID:  &sender,
		}
		if err := tx.SaveList(ctx, cp); err != nil {
			return fmt.Errorf("save shared list: %w", err)
		}

		units, err := tx.ListListUnits(ctx, src.ID)
		if err != nil {
			return fmt.Errorf("load list units: %w", err)
		}
		for _, lu := range units {
			err := tx.CreateListUnit(ctx, &models.ListUnit{
				ListID:        cp.ID,
				UnitID:        lu.UnitID,
				AttachmentIDs: slices.Clone(lu.AttachmentIDs),
				CommanderID:   lu.CommanderID,
			})
			if err != nil {
				return fmt.Errorf("copy list unit: %w", err)
			}
		}

		ncus, err := tx.ListListNCUs(ctx, src.ID)
		if err != nil {
			return fmt.Errorf("load list ncus: %w", err)
		}
		for _, ln := range ncus {
			if err := tx.CreateListNCU(ctx, &models.ListNCU{ListID: cp.ID, NCUID: ln.NCUID}); err != nil {
				return fmt.Errorf("copy list ncu: %w", err)
			}
		}

		out, err = Materialize(ctx, tx, cp)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"list_id":   listID,
		"copy_id":   out.ID,
		"sender":    caller.ProfileID,
		"receiver":  out.OwnerID,
		"units":     len(out.Units),
		"ncu_count": len(out.NCUs),
	}).Info("list shared")
	return out, nil
}

// RespondToShare confirms or declines a pending share the caller received.
// Confirm returns the now-active list; decline deletes it and returns nil.
func (e *Engine) RespondToShare(ctx context.Context, caller auth.Identity, listID int64, action ShareAction) (*models.List, error) {
	if action != ShareConfirm && action != ShareDecline {
		return nil, apperr.Validation("invalid action")
	}

	var out *models.List
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := ownedList(ctx, tx, caller.ProfileID, listID)
		if err != nil {
			return err
		}
		if !l.IsDraft || l.SharedFromID == nil {
			return apperr.NotFound("shared list not found")
		}

		if action == ShareDecline {
			return tx.DeleteList(ctx, l.ID)
		}
		l.IsDraft = false
		if err := tx.SaveList(ctx, l); err != nil {
			return fmt.Errorf("confirm shared list: %w", err)
		}
		out, err = Materialize(ctx, tx, l)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(logrus.Fields{"list_id": listID, "action": action}).Info("shared list answered")
	return out, nil
}
