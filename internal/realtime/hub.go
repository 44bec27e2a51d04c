// Package realtime fans card actions out to WebSocket clients watching a game.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/sirupsen/logrus"
)

// Subprotocol clients must request when connecting.
const Subprotocol = "game"

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

// Hub tracks subscribers per game. It satisfies game.Publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[int64]map[*Subscription]struct{}
	logger logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		subs:   make(map[int64]map[*Subscription]struct{}),
		logger: logger.WithField("component", "realtime"),
	}
}

// Subscription receives the actions of one game until closed.
type Subscription struct {
	GameID int64
	C      <-chan models.CardAction

	hub  *Hub
	ch   chan models.CardAction
	once sync.Once
}

func (h *Hub) Subscribe(gameID int64) *Subscription {
	ch := make(chan models.CardAction, subscriberBuffer)
	sub := &Subscription{GameID: gameID, C: ch, hub: h, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[*Subscription]struct{})
	}
	h.subs[gameID][sub] = struct{}{}
	return sub
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[s.GameID], s)
		if len(h.subs[s.GameID]) == 0 {
			delete(h.subs, s.GameID)
		}
		close(s.ch)
	})
}

// Subscribers is the number of open subscriptions on gameID.
func (h *Hub) Subscribers(gameID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

// PublishCardAction never blocks; a subscriber whose buffer is full misses the action.
func (h *Hub) PublishCardAction(_ context.Context, a models.CardAction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[a.GameID] {
		select {
		case sub.ch <- a:
		default:
			h.logger.WithField("game_id", a.GameID).Debug("subscriber buffer full, dropping action")
		}
	}
	return nil
}

// Event is what a client receives: the action that changed the game (absent
// on the first message) and the game's cards afterwards.
type Event struct {
	Action *models.CardAction `json:"action,omitempty"`
	Cards  any                `json:"cards"`
}

// Snapshot loads the current card pool for a game.
type Snapshot func(ctx context.Context) (any, error)

// Serve pushes an initial snapshot and then one Event per action on gameID
// until the client goes away or ctx ends. Client messages are ignored.
func (h *Hub) Serve(ctx context.Context, c *websocket.Conn, gameID int64, snapshot Snapshot) error {
	sub := h.Subscribe(gameID)
	defer sub.Close()

	ctx = c.CloseRead(ctx)
	logger := h.logger.WithField("game_id", gameID)

	send := func(action *models.CardAction) error {
		cards, err := snapshot(ctx)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return wsjson.Write(wctx, c, Event{Action: action, Cards: cards})
	}

	if err := send(nil); err != nil {
		logger.WithError(err).Warn("sending initial snapshot")
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case a, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := send(&a); err != nil {
				logger.WithError(err).Debug("websocket write failed")
				return err
			}
		}
	}
}
