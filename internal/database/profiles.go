package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

const profileColumns = `id, username, email, first_name, last_name, password, tester, moderator, admin,
	tester_requested, created_at`

func scanProfile(row pgx.Row) (models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.FirstName, &p.LastName, &p.Password,
		&p.Tester, &p.Moderator, &p.Admin, &p.TesterRequested, &p.CreatedAt)
	return p, err
}

func (t *tx) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO profiles (id, username, email, first_name, last_name, password, tester, moderator, admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		p.ID, p.Username, p.Email, p.FirstName, p.LastName, p.Password, p.Tester, p.Moderator, p.Admin,
	).Scan(&p.CreatedAt)
	return mapErr(err, "profile")
}

func (t *tx) getProfile(ctx context.Context, where string, arg any) (*models.Profile, error) {
	p, err := scanProfile(t.tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE `+where, arg))
	if err != nil {
		return nil, mapErr(err, "profile")
	}
	return &p, nil
}

func (t *tx) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return t.getProfile(ctx, `id = $1`, id)
}

func (t *tx) GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return t.getProfile(ctx, `lower(username) = lower($1)`, username)
}

func (t *tx) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return t.getProfile(ctx, `lower(email) = lower($1)`, email)
}

func (t *tx) UpdateProfileRoles(ctx context.Context, p *models.Profile) error {
	tag, err := t.tx.Exec(ctx, `UPDATE profiles SET tester = $2, moderator = $3, admin = $4 WHERE id = $1`,
		p.ID, p.Tester, p.Moderator, p.Admin)
	return affected(tag, err, "profile")
}

func (t *tx) UpdateProfile(ctx context.Context, p *models.Profile) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE profiles SET email = $2, first_name = $3, last_name = $4, tester_requested = $5
		WHERE id = $1`,
		p.ID, p.Email, p.FirstName, p.LastName, p.TesterRequested)
	return affected(tag, err, "profile")
}

func (t *tx) SetPassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE profiles SET password = $2 WHERE id = $1`, id, hash)
	return affected(tag, err, "profile")
}

var roleFilters = map[string]string{
	"":                   `true`,
	models.RoleTester:    `tester`,
	models.RoleModerator: `moderator OR admin`,
	models.RoleAdmin:     `admin`,
}

func (t *tx) ListProfiles(ctx context.Context, q store.ProfileQuery) ([]models.Profile, error) {
	where, ok := roleFilters[q.Role]
	if !ok {
		return nil, apperr.Validation("invalid role %q", q.Role)
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE `+where+`
		ORDER BY lower(username)`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProfile)
}
