// Package accounts registers profiles, logs them in and manages their roles.
package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

const minPasswordLength = 8

var errBadCredentials = &apperr.Error{Kind: apperr.KindUnauthorized, Message: "invalid credentials"}

type Service struct {
	store    store.Store
	sessions *auth.Sessions
	hash     auth.HashParams
	logger   logrus.FieldLogger
}

func NewService(s store.Store, sessions *auth.Sessions, logger logrus.FieldLogger) *Service {
	return &Service{
		store:    s,
		sessions: sessions,
		hash:     auth.DefaultHashParams,
		logger:   logger.WithField("component", "accounts"),
	}
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (in RegisterInput) validate() error {
	switch {
	case strings.TrimSpace(in.Username) == "":
		return apperr.Validation("missing username")
	case strings.ContainsAny(in.Username, "@ /"):
		return apperr.Validation("username may not contain '@', '/' or spaces")
	case len(in.Password) < minPasswordLength:
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperr.Validation("invalid email %q", in.Email)
	}
	return nil
}

// Register creates a profile with no roles.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Profile, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password, s.hash)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &models.Profile{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  hash,
	}
	if err := s.store.WithTx(ctx, func(tx store.Tx) error { return tx.CreateProfile(ctx, p) }); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"profile_id": p.ID, "username": p.Username}).Info("profile registered")
	return p, nil
}

// Login checks the password of the profile named by login, an email address
// or a username, and issues a session token.
func (s *Service) Login(ctx context.Context, login, password string) (*models.Profile, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, "", errBadCredentials
	}

	var p *models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if strings.Contains(login, "@") {
			p, err = tx.GetProfileByEmail(ctx, login)
		} else {
			p, err = tx.GetProfileByUsername(ctx, login)
		}
		return err
	})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, "", errBadCredentials
	}
	if err != nil {
		return nil, "", err
	}

	ok, err := auth.VerifyPassword(password, p.Password)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, "", errBadCredentials
	}
	token, err := s.sessions.CreateJWT(p.ID)
	if err != nil {
		return nil, "", fmt.Errorf("create token: %w", err)
	}
	s.logger.WithField("profile_id", p.ID).Debug("login")
	return p, token, nil
}

// Profile loads a profile by id.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p *models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProfile(ctx, id)
		return err
	})
	return p, err
}

// Current is the caller's own profile.
func (s *Service) Current(ctx context.Context, caller auth.Identity) (*models.Profile, error) {
	if caller.Anonymous() {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}
	return s.Profile(ctx, caller.ProfileID)
}

// Users lists the profiles holding role, or every profile when role is empty.
// Moderators only.
func (s *Service) Users(ctx context.Context, caller auth.Identity, role string) ([]models.Profile, error) {
	switch role {
	case "", models.RoleTester, models.RoleModerator, models.RoleAdmin:
	default:
		return nil, apperr.Validation("invalid role %q", role)
	}
	if err := requireRole(caller, models.RoleModerator); err != nil {
		return nil, err
	}
	var out []models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListProfiles(ctx, store.ProfileQuery{Role: role})
		return err
	})
	return out, err
}

// ProfileUpdate edits the contact fields of a profile. Omitted fields keep
// their stored value.
type ProfileUpdate struct {
	Email     models.Optional[string] `json:"email"`
	FirstName models.Optional[string] `json:"first_name"`
	LastName  models.Optional[string] `json:"last_name"`
}

// UpdateProfile edits profile id. Callers may edit themselves; moderators may
// edit anyone.
func (s *Service) UpdateProfile(ctx context.Context, caller auth.Identity, id uuid.UUID, in ProfileUpdate) (*models.Profile, error) {
	if caller.Anonymous() {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}
	if caller.ProfileID != id && !caller.Moderator {
		return nil, apperr.Forbidden("you may only edit your own profile")
	}
	if in.Email.Set {
		if _, err := mail.ParseAddress(in.Email.Value); in.Email.Null || err != nil {
			return nil, apperr.Validation("invalid email %q", in.Email.Value)
		}
	}

	var p *models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		if in.Email.Set {
			p.Email = strings.TrimSpace(in.Email.Value)
		}
		if in.FirstName.Set {
			p.FirstName = in.FirstName.Value
		}
		if in.LastName.Set {
			p.LastName = in.LastName.Value
		}
		return tx.UpdateProfile(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"profile_id": id, "by": caller.Username}).Info("profile updated")
	return p, nil
}

// RequestTester flags the caller as wanting tester access.
func (s *Service) RequestTester(ctx context.Context, caller auth.Identity) (*models.Profile, error) {
	if caller.Anonymous() {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}
	var p *models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProfile(ctx, caller.ProfileID)
		if err != nil {
			return err
		}
		if p.Tester {
			return apperr.Conflict("%s is already a tester", p.Username)
		}
		p.TesterRequested = true
		return tx.UpdateProfile(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithField("username", p.Username).Info("tester access requested")
	return p, nil
}

// PasswordReset is the one-time password ResetPassword issued.
type PasswordReset struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

const resetPasswordBytes = 12

// ResetPassword replaces the password of username with a random one and
// returns it. Moderators only.
func (s *Service) ResetPassword(ctx context.Context, caller auth.Identity, username string) (*PasswordReset, error) {
	if err := requireRole(caller, models.RoleModerator); err != nil {
		return nil, err
	}
	password, err := auth.RandomPassword(resetPasswordBytes)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.hash)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var p *models.Profile
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProfileByUsername(ctx, username)
		if err != nil {
			return err
		}
		return tx.SetPassword(ctx, p.ID, hash)
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"username": p.Username, "by": caller.Username}).Info("password reset")
	return &PasswordReset{Username: p.Username, Password: password}, nil
}

// requireRole checks caller may grant role. Moderators manage tester and
// moderator; only admins manage admin.
func requireRole(caller auth.Identity, role string) error {
	if caller.Anonymous() {
		return &apperr.Error{Kind: apperr.KindUnauthorized, Message: "authentication required"}
	}
	if role == models.RoleAdmin && !caller.Admin {
		return apperr.Forbidden("you are not authorized to manage admins")
	}
	if !caller.Moderator {
		return apperr.Forbidden("you are not authorized to manage roles")
	}
	return nil
}

// ToggleRole flips role on the profile named username.
func (s *Service) ToggleRole(ctx context.Context, caller auth.Identity, username, role string) (*models.Profile, error) {
	switch role {
	case models.RoleTester, models.RoleModerator, models.RoleAdmin:
	default:
		return nil, apperr.Validation("invalid role %q", role)
	}
	if err := requireRole(caller, role); err != nil {
		return nil, err
	}

	var p *models.Profile
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.GetProfileByUsername(ctx, username)
		if err != nil {
			return err
		}
		switch role {
		case models.RoleTester:
			p.Tester = !p.Tester
		case models.RoleModerator:
			p.Moderator = !p.Moderator
		case models.RoleAdmin:
			p.Admin = !p.Admin
		}
		if err := tx.UpdateProfileRoles(ctx, p); err != nil {
			return err
		}
		if p.Tester && p.TesterRequested {
			p.TesterRequested = false
			return tx.UpdateProfile(ctx, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"username": p.Username, "role": role, "by": caller.Username}).Info("role toggled")
	return p, nil
}
