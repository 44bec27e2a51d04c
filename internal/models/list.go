package models

import (
	"time"

	"github.com/google/uuid"
)

// List is a player's army composition. Units and NCUs are populated when the
// list is materialized for a response.
type List struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	OwnerID       uuid.UUID  `json:"owner"`
	PointsAllowed int        `json:"points_allowed"`
	FactionID     int64      `json:"faction"`
	CommanderID   int64      `json:"commander"`
	IsDraft       bool       `json:"is_draft"`
	IsPublic      bool       `json:"public"`
	IsValid       bool       `json:"is_valid"`
	SharedFromID  *uuid.UUID `json:"shared_from"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Units       []ListUnitDetail `json:"units"`
	NCUs        []NCU            `json:"ncus"`
	TotalPoints int              `json:"total_points"`
}

// ListUnit places one Unit into one List with its chosen attachments.
// CommanderID is set when the unit itself carries the list's commander.
type ListUnit struct {
	ID            int64   `json:"id"`
	ListID        int64   `json:"list"`
	UnitID        int64   `json:"unit"`
	AttachmentIDs []int64 `json:"attachments"`
	CommanderID   *int64  `json:"commander"`
}

type ListNCU struct {
	ID     int64 `json:"id"`
	ListID int64 `json:"list"`
	NCUID  int64 `json:"ncu"`
}

// ListUnitDetail is a ListUnit with its catalog rows resolved.
type ListUnitDetail struct {
	ID          int64        `json:"id"`
	Unit        Unit         `json:"unit"`
	Attachments []Attachment `json:"attachments"`
	CommanderID *int64       `json:"commander"`
}
