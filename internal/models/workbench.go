package models

import (
	"time"

	"github.com/google/uuid"
)

type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UseCount  int       `json:"use_count"`
}

type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalRejected  ProposalStatus = "rejected"
	ProposalClosed    ProposalStatus = "closed"
	ProposalConfirmed ProposalStatus = "confirmed"
)

func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalPending, ProposalRejected, ProposalClosed, ProposalConfirmed:
		return true
	}
	return false
}

type Proposal struct {
	ID          int64          `json:"id"`
	CreatorID   uuid.UUID      `json:"creator"`
	Status      ProposalStatus `json:"status"`
	Text        string         `json:"text"`
	IsPrivate   bool           `json:"is_private"`
	TagIDs      []int64        `json:"tags"`
	FavoritedBy []uuid.UUID    `json:"favorited_by"`
	CreatedAt   time.Time      `json:"created_at"`
}

type WorkState string

const (
	StateNotStarted WorkState = "not_started"
	StateAssigned   WorkState = "assigned"
	StateInProgress WorkState = "in_progress"
	StateFinished   WorkState = "finished"
)

func (s WorkState) Valid() bool {
	switch s {
	case StateNotStarted, StateAssigned, StateInProgress, StateFinished:
		return true
	}
	return false
}

// Task is a moderator work item. DependsOn holds ids of tasks that must
// finish first.
type Task struct {
	ID             int64       `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	State          WorkState   `json:"state"`
	Complexity     *int        `json:"complexity"`
	Priority       *int        `json:"priority"`
	IsPrivate      bool        `json:"is_private"`
	Notes          string      `json:"notes"`
	TagIDs         []int64     `json:"tags"`
	AssignedAdmins []uuid.UUID `json:"assigned_admins"`
	FavoritedBy    []uuid.UUID `json:"favorited_by"`
	DependsOn      []int64     `json:"dependencies"`
	CreatedAt      time.Time   `json:"created_at"`

	SubTasks []SubTask `json:"subtasks"`
}

type SubTask struct {
	ID             int64       `json:"id"`
	TaskID         int64       `json:"task"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	State          WorkState   `json:"state"`
	Complexity     *int        `json:"complexity"`
	Priority       *int        `json:"priority"`
	IsPrivate      bool        `json:"is_private"`
	Notes          string      `json:"notes"`
	AssignedAdmins []uuid.UUID `json:"assigned_admins"`
	CreatedAt      time.Time   `json:"created_at"`
}
