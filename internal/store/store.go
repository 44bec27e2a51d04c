// Package store defines the persistence contract the services run against.
//
// Every read and write goes through a Tx obtained from Store.WithTx. If the
// callback returns an error, nothing it wrote is kept. Lookups of a single row
// return an apperr NotFound error when the row is missing, and writes that hit
// a unique constraint return an apperr Conflict error.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/models"
)

// Store opens transactions.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the full set of operations available inside a transaction.
type Tx interface {
	ProfileStore
	CatalogStore
	ListStore
	GameStore
	WorkbenchStore
	ActionLog
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	UpdateProfileRoles(ctx context.Context, p *models.Profile) error
	// UpdateProfile writes the name, email and tester request fields of p.
	UpdateProfile(ctx context.Context, p *models.Profile) error
	SetPassword(ctx context.Context, id uuid.UUID, hash string) error
	ListProfiles(ctx context.Context, q ProfileQuery) ([]models.Profile, error)
}

type CatalogStore interface {
	ListFactions(ctx context.Context) ([]models.Faction, error)
	GetFaction(ctx context.Context, id int64) (*models.Faction, error)
	// GetNeutralFaction returns the lowest-id faction flagged neutral.
	GetNeutralFaction(ctx context.Context) (*models.Faction, error)
	SaveFaction(ctx context.Context, f *models.Faction) error
	DeleteFaction(ctx context.Context, id int64) error

	ListCommanders(ctx context.Context, q CommanderQuery) ([]models.Commander, error)
	GetCommander(ctx context.Context, id int64) (*models.Commander, error)
	SaveCommander(ctx context.Context, c *models.Commander) error
	DeleteCommander(ctx context.Context, id int64) error

	ListUnits(ctx context.Context, q UnitQuery) ([]models.Unit, error)
	GetUnit(ctx context.Context, id int64) (*models.Unit, error)
	SaveUnit(ctx context.Context, u *models.Unit) error
	DeleteUnit(ctx context.Context, id int64) error

	ListAttachments(ctx context.Context, q AttachmentQuery) ([]models.Attachment, error)
	GetAttachment(ctx context.Context, id int64) (*models.Attachment, error)
	SaveAttachment(ctx context.Context, a *models.Attachment) error
	DeleteAttachment(ctx context.Context, id int64) error

	ListNCUs(ctx context.Context, q NCUQuery) ([]models.NCU, error)
	GetNCU(ctx context.Context, id int64) (*models.NCU, error)
	SaveNCU(ctx context.Context, n *models.NCU) error
	DeleteNCU(ctx context.Context, id int64) error

	ListCardTemplates(ctx context.Context, q CardTemplateQuery) ([]models.CardTemplate, error)
	GetCardTemplate(ctx context.Context, id int64) (*models.CardTemplate, error)
	SaveCardTemplate(ctx context.Context, c *models.CardTemplate) error
	DeleteCardTemplate(ctx context.Context, id int64) error
	AddCardTemplateCounts(ctx context.Context, id int64, d TemplateDelta) error

	ListKeywordTypes(ctx context.Context) ([]models.KeywordType, error)
	GetKeywordType(ctx context.Context, id int64) (*models.KeywordType, error)
	SaveKeywordType(ctx context.Context, k *models.KeywordType) error
	DeleteKeywordType(ctx context.Context, id int64) error

	ListKeywordPairs(ctx context.Context) ([]models.KeywordPair, error)
	GetKeywordPair(ctx context.Context, id int64) (*models.KeywordPair, error)
	SaveKeywordPair(ctx context.Context, k *models.KeywordPair) error
	DeleteKeywordPair(ctx context.Context, id int64) error

	// CatalogReferences counts the rows that point at the catalog row id,
	// including catalog rows that belong to it.
	CatalogReferences(ctx context.Context, kind CatalogKind, id int64) (int, error)
}

// CatalogKind names a catalog table other rows can point at.
type CatalogKind string

const (
	CatalogFaction      CatalogKind = "faction"
	CatalogCommander    CatalogKind = "commander"
	CatalogUnit         CatalogKind = "unit"
	CatalogAttachment   CatalogKind = "attachment"
	CatalogNCU          CatalogKind = "ncu"
	CatalogCardTemplate CatalogKind = "card template"
	CatalogKeywordType  CatalogKind = "keyword type"
)

type ListStore interface {
	GetList(ctx context.Context, id int64) (*models.List, error)
	ListLists(ctx context.Context, q ListQuery) ([]models.List, error)
	// SaveList inserts when l.ID is zero and updates otherwise.
	SaveList(ctx context.Context, l *models.List) error
	DeleteList(ctx context.Context, id int64) error

	ListListUnits(ctx context.Context, listID int64) ([]models.ListUnit, error)
	CreateListUnit(ctx context.Context, lu *models.ListUnit) error
	DeleteListUnits(ctx context.Context, listID int64) error

	ListListNCUs(ctx context.Context, listID int64) ([]models.ListNCU, error)
	CreateListNCU(ctx context.Context, ln *models.ListNCU) error
	DeleteListNCUs(ctx context.Context, listID int64) error
}

type GameStore interface {
	CreateGame(ctx context.Context, g *models.Game) error
	GetGame(ctx context.Context, id int64) (*models.Game, error)
	// LockGame reads the game and holds a row lock until the transaction ends.
	LockGame(ctx context.Context, id int64) (*models.Game, error)
	UpdateGame(ctx context.Context, g *models.Game) error
	ListGames(ctx context.Context, q GameQuery) ([]models.Game, error)

	CreatePlayerCard(ctx context.Context, c *models.PlayerCard) error
	GetPlayerCard(ctx context.Context, id int64) (*models.PlayerCard, error)
	ListPlayerCards(ctx context.Context, q CardQuery) ([]models.PlayerCard, error)
	UpdatePlayerCard(ctx context.Context, c *models.PlayerCard) error

	// AddUserCardStats creates the (owner, template) row when missing and adds d to it.
	AddUserCardStats(ctx context.Context, owner uuid.UUID, templateID int64, d StatsDelta) error
	GetUserCardStats(ctx context.Context, owner uuid.UUID, templateID int64) (*models.UserCardStats, error)
	ListUserCardStats(ctx context.Context, owner uuid.UUID) ([]models.UserCardStats, error)
}

type WorkbenchStore interface {
	ListTags(ctx context.Context) ([]models.Tag, error)
	GetTag(ctx context.Context, id int64) (*models.Tag, error)
	SaveTag(ctx context.Context, t *models.Tag) error
	DeleteTag(ctx context.Context, id int64) error

	ListProposals(ctx context.Context, q VisibilityQuery) ([]models.Proposal, error)
	GetProposal(ctx context.Context, id int64) (*models.Proposal, error)
	SaveProposal(ctx context.Context, p *models.Proposal) error
	DeleteProposal(ctx context.Context, id int64) error

	ListTasks(ctx context.Context, q VisibilityQuery) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	SaveTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id int64) error
	// TaskDependencies returns every dependency edge, keyed by dependent task id.
	TaskDependencies(ctx context.Context) (map[int64][]int64, error)

	ListSubTasks(ctx context.Context, taskID int64) ([]models.SubTask, error)
	GetSubTask(ctx context.Context, id int64) (*models.SubTask, error)
	SaveSubTask(ctx context.Context, s *models.SubTask) error
	DeleteSubTask(ctx context.Context, id int64) error
}

type ActionLog interface {
	AppendCardActions(ctx context.Context, actions []models.CardAction) error
	ListCardActions(ctx context.Context, gameID int64) ([]models.CardAction, error)
	// AbandonStaleGames marks in-progress games last updated before cutoff as
	// abandoned and returns their ids.
	AbandonStaleGames(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// ProfileQuery selects the profiles holding Role, one of the models.Role
// names. Admins count as moderators. An empty Role matches every profile.
type ProfileQuery struct {
	Role string
}

type CommanderQuery struct {
	FactionID *int64
}

// UnitQuery matches units whose faction is any of FactionIDs. Empty matches all.
type UnitQuery struct {
	FactionIDs []int64
}

// AttachmentQuery filters are ANDed. Empty slices and zero values do not filter,
// except that a non-nil empty IDs slice matches nothing.
type AttachmentQuery struct {
	FactionIDs     []int64
	IDs            []int64
	AttachmentType models.AttachmentType
	Name           string
}

type NCUQuery struct {
	FactionIDs []int64
	IDs        []int64
}

// CardTemplateQuery selects by faction and commander. GenericOnly restricts to
// templates with no commander.
type CardTemplateQuery struct {
	FactionID   *int64
	CommanderID *int64
	GenericOnly bool
}

type ListQuery struct {
	OwnerID      *uuid.UUID
	SharedFromID *uuid.UUID
	DraftOnly    bool
}

type GameQuery struct {
	OwnerID *uuid.UUID
	Status  models.GameStatus
	Limit   int
}

type CardQuery struct {
	GameID     int64
	Status     models.CardStatus
	TemplateID *int64
}

type VisibilityQuery struct {
	IncludePrivate bool
}

type TemplateDelta struct {
	Games    int
	Plays    int
	Discards int
}

type StatsDelta struct {
	Included  int
	Drawn     int
	Discarded int
}
