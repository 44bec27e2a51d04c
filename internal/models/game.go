package models

import (
	"time"

	"github.com/google/uuid"
)

type GameStatus string

const (
	GameInProgress GameStatus = "in-progress"
	GameCompleted  GameStatus = "completed"
	GameAbandoned  GameStatus = "abandoned"
)

type Game struct {
	ID          int64      `json:"id"`
	OwnerID     uuid.UUID  `json:"owner"`
	FactionID   int64      `json:"faction"`
	CommanderID int64      `json:"commander"`
	OwnerListID *int64     `json:"owner_list"`
	Status      GameStatus `json:"status"`
	Round       int        `json:"round"`
	// ActionCount is the number of card actions recorded against the game.
	ActionCount int        `json:"action_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CardStatus string

const (
	CardInDeck    CardStatus = "in-deck"
	CardInHand    CardStatus = "in-hand"
	CardInPlay    CardStatus = "in-play"
	CardDiscarded CardStatus = "discarded"
)

// PlayerCard is one physical card in a game.
type PlayerCard struct {
	ID                 int64      `json:"id"`
	GameID             int64      `json:"game"`
	CardTemplateID     int64      `json:"card_template"`
	OwnerID            uuid.UUID  `json:"owner"`
	Status             CardStatus `json:"status"`
	PlayNotes          string     `json:"play_notes"`
	DrawnThisRound     bool       `json:"drawn_this_round"`
	DiscardedThisRound bool       `json:"discarded_this_round"`
}

// UserCardStats is unique per (OwnerID, CardTemplateID).
type UserCardStats struct {
	OwnerID        uuid.UUID `json:"user"`
	CardTemplateID int64     `json:"card_template"`
	TimesIncluded  int       `json:"times_included"`
	TimesDrawn     int       `json:"times_drawn"`
	TimesDiscarded int       `json:"times_discarded"`
}

// CardAction is one entry of a game's action log.
type CardAction struct {
	GameID      int64          `json:"game_id"`
	ActionIndex int            `json:"action_index"`
	ActorID     uuid.UUID      `json:"actor_user_id"`
	Action      string         `json:"action_type"`
	Payload     map[string]any `json:"action_payload"`
	RecordedAt  time.Time      `json:"recorded_at"`
}
