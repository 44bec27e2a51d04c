// Package memstore is an in-memory store.Store. Transactions run one at a
// time against a copy of the data and replace it on success, which gives the
// same all-or-nothing behavior as the PostgreSQL store. Used by tests and by
// the server when no DATABASE_URL is configured.
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/store"
)

type statsKey struct {
	owner      uuid.UUID
	templateID int64
}

type state struct {
	seq map[string]int64

	profiles    map[uuid.UUID]models.Profile
	factions    map[int64]models.Faction
	commanders  map[int64]models.Commander
	units       map[int64]models.Unit
	attachments map[int64]models.Attachment
	ncus        map[int64]models.NCU
	templates   map[int64]models.CardTemplate
	kwTypes     map[int64]models.KeywordType
	kwPairs     map[int64]models.KeywordPair

	lists     map[int64]models.List
	listUnits map[int64]models.ListUnit
	listNCUs  map[int64]models.ListNCU

	games map[int64]models.Game
	cards map[int64]models.PlayerCard
	stats map[statsKey]models.UserCardStats

	tags      map[int64]models.Tag
	proposals map[int64]models.Proposal
	tasks     map[int64]models.Task
	subtasks  map[int64]models.SubTask

	actions []models.CardAction
}

func newState() *state {
	return &state{
		seq:         map[string]int64{},
		profiles:    map[uuid.UUID]models.Profile{},
		factions:    map[int64]models.Faction{},
		commanders:  map[int64]models.Commander{},
		units:       map[int64]models.Unit{},
		attachments: map[int64]models.Attachment{},
		ncus:        map[int64]models.NCU{},
		templates:   map[int64]models.CardTemplate{},
		kwTypes:     map[int64]models.KeywordType{},
		kwPairs:     map[int64]models.KeywordPair{},
		lists:       map[int64]models.List{},
		listUnits:   map[int64]models.ListUnit{},
		listNCUs:    map[int64]models.ListNCU{},
		games:       map[int64]models.Game{},
		cards:       map[int64]models.PlayerCard{},
		stats:       map[statsKey]models.UserCardStats{},
		tags:        map[int64]models.Tag{},
		proposals:   map[int64]models.Proposal{},
		tasks:       map[int64]models.Task{},
		subtasks:    map[int64]models.SubTask{},
	}
}

// clone copies every table. Stored rows own their slices and are replaced,
// never mutated, so a shallow copy of each map is enough.
func (s *state) clone() *state {
	return &state{
		seq:         maps.Clone(s.seq),
		profiles:    maps.Clone(s.profiles),
		factions:    maps.Clone(s.factions),
		commanders:  maps.Clone(s.commanders),
		units:       maps.Clone(s.units),
		attachments: maps.Clone(s.attachments),
		ncus:        maps.Clone(s.ncus),
		templates:   maps.Clone(s.templates),
		kwTypes:     maps.Clone(s.kwTypes),
		kwPairs:     maps.Clone(s.kwPairs),
		lists:       maps.Clone(s.lists),
		listUnits:   maps.Clone(s.listUnits),
		listNCUs:    maps.Clone(s.listNCUs),
		games:       maps.Clone(s.games),
		cards:       maps.Clone(s.cards),
		stats:       maps.Clone(s.stats),
		tags:        maps.Clone(s.tags),
		proposals:   maps.Clone(s.proposals),
		tasks:       maps.Clone(s.tasks),
		subtasks:    maps.Clone(s.subtasks),
		actions:     slices.Clone(s.actions),
	}
}

func (s *state) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Store is safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock replaces the time source used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type tx struct {
	st  *state
	now func() time.Time
}

var _ store.Tx = (*tx)(nil)

func sortedByID[V any](m map[int64]V, keep func(V) bool) []V {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		v := m[id]
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func sortBy[V any, K cmp.Ordered](vs []V, key func(V) K) {
	slices.SortStableFunc(vs, func(a, b V) int { return cmp.Compare(key(a), key(b)) })
}

func containsOrEmpty(set []int64, v int64) bool {
	return len(set) == 0 || slices.Contains(set, v)
}
