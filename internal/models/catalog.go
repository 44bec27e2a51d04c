package models

// CommanderType decides how a commander is represented inside a List.
type CommanderType string

const (
	CommanderTypeUnit       CommanderType = "unit"
	CommanderTypeAttachment CommanderType = "attachment"
)

func (t CommanderType) Valid() bool {
	return t == CommanderTypeUnit || t == CommanderTypeAttachment
}

type UnitStatus string

const (
	UnitStatusCommander     UnitStatus = "commander"
	UnitStatusCommanderUnit UnitStatus = "commander_unit"
	UnitStatusGeneric       UnitStatus = "generic"
)

func (s UnitStatus) Valid() bool {
	switch s {
	case UnitStatusCommander, UnitStatusCommanderUnit, UnitStatusGeneric:
		return true
	}
	return false
}

type AttachmentType string

const (
	AttachmentTypeGeneric   AttachmentType = "generic"
	AttachmentTypeCharacter AttachmentType = "character"
	AttachmentTypeCommander AttachmentType = "commander"
)

func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentTypeGeneric, AttachmentTypeCharacter, AttachmentTypeCommander:
		return true
	}
	return false
}

// Faction is a playable army. Neutral marks the shared pool other factions may
// draw from; CanUseNeutral grants access to it.
type Faction struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ImgURL        string `json:"img_url"`
	Neutral       bool   `json:"neutral"`
	CanUseNeutral bool   `json:"can_use_neutral"`
}

type Commander struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	ImgURL        string        `json:"img_url"`
	FactionID     int64         `json:"faction"`
	CommanderType CommanderType `json:"commander_type"`
}

type Unit struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	FactionID           int64      `json:"faction"`
	PointsCost          int        `json:"points_cost"`
	UnitType            string     `json:"unit_type"`
	Status              UnitStatus `json:"status"`
	AttachedCommanderID *int64     `json:"attached_commander"`
	MaxInList           *int       `json:"max_in_list"`
	IsUnique            bool       `json:"is_unique"`
	IsAdaptive          bool       `json:"is_adaptive"`
	ImgURL              string     `json:"img_url"`
	MainURL             string     `json:"main_url"`
}

type Attachment struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	FactionID      int64          `json:"faction"`
	PointsCost     int            `json:"points_cost"`
	Type           string         `json:"type"`
	AttachmentType AttachmentType `json:"attachment_type"`
	ImgURL         string         `json:"img_url"`
	MainURL        string         `json:"main_url"`
}

// NCU is a non-combat unit card bought into a List.
type NCU struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	FactionID  int64  `json:"faction"`
	PointsCost int    `json:"points_cost"`
	ImgURL     string `json:"img_url"`
	MainURL    string `json:"main_url"`
}

// CardTemplate is the catalog definition a PlayerCard is stamped from. A nil
// CommanderID means the card is generic to its faction. ReplacesID points at
// the generic template a commander card supersedes.
type CardTemplate struct {
	ID           int64  `json:"id"`
	CardName     string `json:"card_name"`
	ImgURL       string `json:"img_url"`
	FactionID    *int64 `json:"faction"`
	CommanderID  *int64 `json:"commander"`
	ReplacesID   *int64 `json:"replaces"`
	GameCount    int    `json:"game_count"`
	PlayCount    int    `json:"play_count"`
	DiscardCount int    `json:"discard_count"`
}

// KeywordType groups keyword pairs, for example orders.
type KeywordType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// KeywordPair is a rules keyword and the text it stands for.
type KeywordPair struct {
	ID            int64  `json:"id"`
	Keyword       string `json:"keyword"`
	Description   string `json:"description"`
	KeywordTypeID *int64 `json:"keyword_type"`
}
