package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a registered account. Password holds the argon2id hash and is
// never serialized.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Password  string    `json:"-"`

	Tester    bool `json:"tester"`
	Moderator bool `json:"moderator"`
	Admin     bool `json:"admin"`

	// TesterRequested is set when the profile asked to join the testers.
	TesterRequested bool `json:"tester_requested"`

	CreatedAt time.Time `json:"created_at"`
}

// Role names accepted by the role toggle endpoint.
const (
	RoleTester    = "tester"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)
