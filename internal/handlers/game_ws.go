package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/middleware"
	"github.com/jason-s-yu/songdecks/internal/realtime"
)

// gameWS streams a game's cards to its owner. Every action on the game pushes
// the action and a fresh snapshot of the pool.
func (a *API) gameWS(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	gameID, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	// Ownership is checked before the upgrade so failures get a JSON error.
	if _, err := a.svc.Games.Cards(r.Context(), caller, gameID); err != nil {
		a.writeError(w, r, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{realtime.Subprotocol},
		OriginPatterns: a.opts.OriginPatterns,
	})
	if err != nil {
		a.logger.WithError(err).WithField("game_id", gameID).Warn("websocket accept failed")
		return
	}
	defer c.CloseNow()

	if c.Subprotocol() != realtime.Subprotocol {
		c.Close(BadSubprotocolError, "client must use the 'game' subprotocol")
		return
	}
	middleware.LogWebSocketConnect(a.logger, r.RemoteAddr, r.URL.Path)

	snapshot := func(ctx context.Context) (any, error) {
		s, err := a.svc.Games.Cards(ctx, caller, gameID)
		if err != nil {
			return nil, err
		}
		return s.Cards, nil
	}
	err = a.svc.Hub.Serve(r.Context(), c, gameID, snapshot)
	middleware.LogWebSocketDisconnect(a.logger, r.RemoteAddr, r.URL.Path, err)
	if err != nil {
		c.Close(SnapshotError, "game stream ended")
		return
	}
	c.Close(websocket.StatusNormalClosure, "")
}
