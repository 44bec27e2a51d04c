package memstore

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

func (t *tx) CreateProfile(_ context.Context, p *models.Profile) error {
	for _, existing := range t.st.profiles {
		if strings.EqualFold(existing.Username, p.Username) {
			return apperr.Conflict("username %q already exists", p.Username)
		}
		if strings.EqualFold(existing.Email, p.Email) {
			return apperr.Conflict("email %q already exists", p.Email)
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = t.now()
	t.st.profiles[p.ID] = *p
	return nil
}

func (t *tx) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := t.st.profiles[id]
	if !ok {
		return nil, apperr.NotFound("profile not found")
	}
	return &p, nil
}

func (t *tx) findProfile(match func(models.Profile) bool) (*models.Profile, error) {
	for _, p := range t.st.profiles {
		if match(p) {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("profile not found")
}

func (t *tx) GetProfileByUsername(_ context.Context, username string) (*models.Profile, error) {
	return t.findProfile(func(p models.Profile) bool { return strings.EqualFold(p.Username, username) })
}

func (t *tx) GetProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	return t.findProfile(func(p models.Profile) bool { return strings.EqualFold(p.Email, email) })
}

func (t *tx) UpdateProfileRoles(_ context.Context, p *models.Profile) error {
	cur, ok := t.st.profiles[p.ID]
	if !ok {
		return apperr.NotFound("profile not found")
	}
	cur.Tester, cur.Moderator, cur.Admin = p.Tester, p.Moderator, p.Admin
	t.st.profiles[p.ID] = cur
	return nil
}

func (t *tx) UpdateProfile(_ context.Context, p *models.Profile) error {
	cur, ok := t.st.profiles[p.ID]
	if !ok {
		return apperr.NotFound("profile not found")
	}
	for id, existing := range t.st.profiles {
		if id != p.ID && strings.EqualFold(existing.Email, p.Email) {
			return apperr.Conflict("email %q already exists", p.Email)
		}
	}
	cur.Email, cur.FirstName, cur.LastName = p.Email, p.FirstName, p.LastName
	cur.TesterRequested = p.TesterRequested
	t.st.profiles[p.ID] = cur
	return nil
}

func (t *tx) SetPassword(_ context.Context, id uuid.UUID, hash string) error {
	cur, ok := t.st.profiles[id]
	if !ok {
		return apperr.NotFound("profile not found")
	}
	cur.Password = hash
	t.st.profiles[id] = cur
	return nil
}

func hasRole(p models.Profile, role string) bool {
	switch role {
	case models.RoleTester:
		return p.Tester
	case models.RoleModerator:
		return p.Moderator || p.Admin
	case models.RoleAdmin:
		return p.Admin
	}
	return true
}

func (t *tx) ListProfiles(_ context.Context, q store.ProfileQuery) ([]models.Profile, error) {
	out := make([]models.Profile, 0, len(t.st.profiles))
	for _, p := range t.st.profiles {
		if hasRole(p, q.Role) {
			out = append(out, p)
		}
	}
	sortBy(out, func(p models.Profile) string { return strings.ToLower(p.Username) })
	return out, nil
}
