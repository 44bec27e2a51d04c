package accounts

import (
	"context"
	"testing"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store/memstore"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	sessions, err := auth.NewSessions(0)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	svc := NewService(memstore.New(), sessions, logger)
	svc.hash = auth.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	return svc
}

func register(t *testing.T, svc *Service, username string) *models.Profile {
	t.Helper()
	p, err := svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return p
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	p := register(t, svc, "tywin")
	assert.NotEqual(t, "correct horse", p.Password)

	for _, login := range []string{"tywin", "TYWIN", "tywin@example.com"} {
		got, token, err := svc.Login(ctx, login, "correct horse")
		require.NoError(t, err, login)
		assert.Equal(t, p.ID, got.ID)

		id, err := svc.sessions.AuthenticateJWT(token)
		require.NoError(t, err)
		assert.Equal(t, p.ID, id)
	}

	_, _, err := svc.Login(ctx, "tywin", "wrong password")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	_, _, err = svc.Login(ctx, "nobody", "correct horse")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestRegisterRejections(t *testing.T) {
	svc := newService(t)
	register(t, svc, "cersei")

	tests := []struct {
		name string
		in   RegisterInput
		kind apperr.Kind
	}{
		{"duplicate username", RegisterInput{Username: "Cersei", Email: "c2@example.com", Password: "longenough"}, apperr.KindConflict},
		{"duplicate email", RegisterInput{Username: "jaime", Email: "cersei@example.com", Password: "longenough"}, apperr.KindConflict},
		{"short password", RegisterInput{Username: "jaime", Email: "j@example.com", Password: "short"}, apperr.KindValidation},
		{"bad email", RegisterInput{Username: "jaime", Email: "jaime", Password: "longenough"}, apperr.KindValidation},
		{"missing username", RegisterInput{Username: "  ", Email: "j@example.com", Password: "longenough"}, apperr.KindValidation},
		{"username with at", RegisterInput{Username: "j@ime", Email: "j@example.com", Password: "longenough"}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestToggleRole(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	register(t, svc, "sansa")
	mod := auth.Identity{ProfileID: register(t, svc, "mod").ID, Moderator: true}
	admin := auth.Identity{ProfileID: register(t, svc, "admin").ID, Moderator: true, Admin: true}

	p, err := svc.ToggleRole(ctx, mod, "sansa", models.RoleTester)
	require.NoError(t, err)
	assert.True(t, p.Tester)
	p, err = svc.ToggleRole(ctx, mod, "sansa", models.RoleTester)
	require.NoError(t, err)
	assert.False(t, p.Tester)

	_, err = svc.ToggleRole(ctx, mod, "sansa", models.RoleAdmin)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	p, err = svc.ToggleRole(ctx, admin, "sansa", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, p.Admin)

	_, err = svc.ToggleRole(ctx, auth.Identity{ProfileID: p.ID}, "mod", models.RoleModerator)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = svc.ToggleRole(ctx, mod, "sansa", "king")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.ToggleRole(ctx, mod, "ghost", models.RoleTester)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUsersAndCurrent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	p := register(t, svc, "arya")

	_, err := svc.Users(ctx, auth.IdentityOf(p), "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	users, err := svc.Users(ctx, auth.Identity{ProfileID: p.ID, Moderator: true}, "")
	require.NoError(t, err)
	assert.Len(t, users, 1)

	cur, err := svc.Current(ctx, auth.IdentityOf(p))
	require.NoError(t, err)
	assert.Equal(t, "arya", cur.Username)
	_, err = svc.Current(ctx, auth.Identity{})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}
