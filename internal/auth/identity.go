package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/models"
)

// Identity is the authenticated caller. Every service operation takes it as an
// explicit argument. The zero value is an anonymous caller.
type Identity struct {
	ProfileID uuid.UUID
	Username  string
	Tester    bool
	Moderator bool
	Admin     bool
}

// IdentityOf builds the Identity for a loaded profile.
func IdentityOf(p *models.Profile) Identity {
	return Identity{
		ProfileID: p.ID,
		Username:  p.Username,
		Tester:    p.Tester,
		Moderator: p.Moderator || p.Admin,
		Admin:     p.Admin,
	}
}

func (i Identity) Anonymous() bool { return i.ProfileID == uuid.Nil }

type ctxKey struct{}

// WithIdentity stores id on ctx for the HTTP layer.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the Identity set by the auth middleware, or an anonymous one.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}
