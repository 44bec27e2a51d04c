package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2", testParams)
	require.NoError(t, err)

	ok, err := VerifyPassword("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter3", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsGarbage(t *testing.T) {
	_, err := VerifyPassword("x", "plaintext")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = VerifyPassword("x", "$argon2id$v=1$m=1,t=1,p=1$AAAA$AAAA")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestSessionsRoundTrip(t *testing.T) {
	s, err := NewSessions(time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	token, err := s.CreateJWT(id)
	require.NoError(t, err)

	got, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSessionsRejectForeignKey(t *testing.T) {
	a, err := NewSessions(0)
	require.NoError(t, err)
	b, err := NewSessions(0)
	require.NoError(t, err)

	token, err := a.CreateJWT(uuid.New())
	require.NoError(t, err)
	_, err = b.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestSessionsRejectExpired(t *testing.T) {
	s, err := NewSessions(-time.Minute)
	require.NoError(t, err)
	token, err := s.CreateJWT(uuid.New())
	require.NoError(t, err)
	_, err = s.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestIdentityOfAdminIsModerator(t *testing.T) {
	id := IdentityOf(&models.Profile{ID: uuid.New(), Username: "root", Admin: true})
	assert.True(t, id.Moderator)
	assert.False(t, id.Anonymous())
	assert.True(t, Identity{}.Anonymous())
}
