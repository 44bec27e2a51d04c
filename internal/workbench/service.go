// Package workbench backs the moderators' planning board: tags, community
// proposals and the task tree.
package workbench

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
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
	return &Service{store: s, logger: logger.WithField("component", "workbench")}
}

var errAuthRequired = &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}

func requireUser(caller auth.Identity) error {
	if caller.Anonymous() {
		return errAuthRequired
	}
	return nil
}

func requireModerator(caller auth.Identity, action string) error {
	if caller.Anonymous() {
		return errAuthRequired
	}
	if !caller.Moderator {
		return apperr.Forbidden("you are not authorized to %s", action)
	}
	return nil
}

// set copies o into dst when it was sent; null stores the zero value.
func set[T any](o models.Optional[T], dst *T) {
	if o.Set {
		*dst = o.Value
	}
}

// toggle adds id to ids, or removes it when already present.
func toggle(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(slices.Clone(ids), i, i+1)
	}
	return append(slices.Clone(ids), id)
}

func checkTags(ctx context.Context, tx store.Tx, ids []int64) error {
	for _, id := range ids {
		if _, err := tx.GetTag(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Moderators lists every moderator profile.
func (s *Service) Moderators(ctx context.Context, caller auth.Identity) ([]models.Profile, error) {
	if err := requireModerator(caller, "view moderators"); err != nil {
		return nil, err
	}
	var out []models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListProfiles(ctx, store.ProfileQuery{Role: models.RoleModerator})
		return err
	})
	return out, err
}

// Tags

func (s *Service) Tags(ctx context.Context) ([]models.Tag, error) {
	var out []models.Tag
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListTags(ctx)
		return err
	})
	return out, err
}

// SaveTag creates the tag when id is zero and renames it otherwise.
func (s *Service) SaveTag(ctx context.Context, caller auth.Identity, id int64, name string) (*models.Tag, error) {
	if err := requireModerator(caller, "edit tags"); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("missing tag name")
	}

	var out *models.Tag
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		tag := &models.Tag{ID: id}
		if id != 0 {
			cur, err := tx.GetTag(ctx, id)
			if err != nil {
				return err
			}
			tag = cur
		}
		tag.Name = name
		if err := tx.SaveTag(ctx, tag); err != nil {
			return err
		}
		var err error
		out, err = tx.GetTag(ctx, tag.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"tag_id": out.ID, "name": out.Name}).Info("tag saved")
	return out, nil
}

func (s *Service) DeleteTag(ctx context.Context, caller auth.Identity, id int64) error {
	if err := requireModerator(caller, "delete tags"); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteTag(ctx, id) })
}

// Proposals

// ProposalInput is a proposal create or partial update.
type ProposalInput struct {
	Text      models.Optional[string]                `json:"text"`
	Status    models.Optional[models.ProposalStatus] `json:"status"`
	IsPrivate models.Optional[bool]                  `json:"is_private"`
	TagIDs    models.Optional[[]int64]               `json:"tags"`
}

// canSee reports whether caller may read p. Private proposals are for
// moderators and their creator.
func canSee(caller auth.Identity, p *models.Proposal) bool {
	return !p.IsPrivate || caller.Moderator || (!caller.Anonymous() && p.CreatorID == caller.ProfileID)
}

func (s *Service) Proposals(ctx context.Context, caller auth.Identity) ([]models.Proposal, error) {
	var out []models.Proposal
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		all, err := tx.ListProposals(ctx, store.VisibilityQuery{IncludePrivate: !caller.Anonymous()})
		if err != nil {
			return err
		}
		out = slices.DeleteFunc(all, func(p models.Proposal) bool { return !canSee(caller, &p) })
		return nil
	})
	return out, err
}

func (s *Service) Proposal(ctx context.Context, caller auth.Identity, id int64) (*models.Proposal, error) {
	var out *models.Proposal
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if !canSee(caller, p) {
			return apperr.NotFound("proposal not found")
		}
		out = p
		return nil
	})
	return out, err
}

// CreateProposal files a pending proposal by caller.
func (s *Service) CreateProposal(ctx context.Context, caller auth.Identity, in ProposalInput) (*models.Proposal, error) {
	if err := requireUser(caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Text.Value) == "" {
		return nil, apperr.Validation("missing proposal text")
	}

	p := &models.Proposal{CreatorID: caller.ProfileID, Status: models.ProposalPending, Text: in.Text.Value}
	set(in.IsPrivate, &p.IsPrivate)
	set(in.TagIDs, &p.TagIDs)

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := checkTags(ctx, tx, p.TagIDs); err != nil {
			return err
		}
		return tx.SaveProposal(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"proposal_id": p.ID, "creator": caller.ProfileID}).Info("proposal created")
	return p, nil
}

// UpdateProposal applies in to a proposal the caller created, or to any
// proposal when the caller moderates.
func (s *Service) UpdateProposal(ctx context.Context, caller auth.Identity, id int64, in ProposalInput) (*models.Proposal, error) {
	if err := requireUser(caller); err != nil {
		return nil, err
	}
	if in.Status.Set && !in.Status.Value.Valid() {
		return nil, apperr.Validation("invalid proposal status %q", in.Status.Value)
	}
	if in.Text.Set && strings.TrimSpace(in.Text.Value) == "" {
		return nil, apperr.Validation("missing proposal text")
	}

	var out *models.Proposal
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if !caller.Moderator && p.CreatorID != caller.ProfileID {
			return apperr.Forbidden("you are not authorized to update this proposal")
		}
		set(in.Text, &p.Text)
		set(in.Status, &p.Status)
		set(in.IsPrivate, &p.IsPrivate)
		set(in.TagIDs, &p.TagIDs)
		if err := checkTags(ctx, tx, p.TagIDs); err != nil {
			return err
		}
		if err := tx.SaveProposal(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Service) DeleteProposal(ctx context.Context, caller auth.Identity, id int64) error {
	if err := requireModerator(caller, "delete proposals"); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteProposal(ctx, id) })
}

// FavoriteProposal flips the caller's favorite mark on a proposal.
func (s *Service) FavoriteProposal(ctx context.Context, caller auth.Identity, id int64) (*models.Proposal, error) {
	if err := requireUser(caller); err != nil {
		return nil, err
	}
	var out *models.Proposal
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if !canSee(caller, p) {
			return apperr.NotFound("proposal not found")
		}
		p.FavoritedBy = toggle(p.FavoritedBy, caller.ProfileID)
		if err := tx.SaveProposal(ctx, p); err != nil {
			return fmt.Errorf("save favorite: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}
