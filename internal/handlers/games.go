package handlers

import (
	"net/http"
	"strconv"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/game"
)

func (a *API) gameRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /games", a.handle(http.StatusCreated, func(r *http.Request, caller auth.Identity) (any, error) {
		var req game.StartRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		return a.svc.Games.StartGame(r.Context(), caller, req)
	}))
	mux.HandleFunc("GET /games/recent", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, apperr.Validation("invalid limit %q", raw)
			}
			limit = n
		}
		return a.svc.Games.RecentGames(r.Context(), caller, limit)
	}))
	mux.HandleFunc("GET /games/{id}/cards", byID(a, http.StatusOK, a.svc.Games.Cards))
	mux.HandleFunc("POST /games/{id}/actions/{action}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		var req game.ActionRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		req.GameID = id
		return a.svc.Games.ApplyAction(r.Context(), caller, game.Action(r.PathValue("action")), req)
	}))
	mux.HandleFunc("POST /games/{id}/end_round", byID(a, http.StatusOK, a.svc.Games.EndRound))
	mux.HandleFunc("POST /games/{id}/end_game", byID(a, http.StatusOK, a.svc.Games.EndGame))
	mux.HandleFunc("POST /games/{id}/abandon", byID(a, http.StatusOK, a.svc.Games.AbandonGame))
	mux.HandleFunc("GET /game/ws/{id}", a.gameWS)

	mux.HandleFunc("GET /stats/player", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return a.svc.Games.PlayerStats(r.Context(), caller)
	}))
}
