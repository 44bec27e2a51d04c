package handlers

import (
	"context"
	"net/http"

	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/catalog"
	"github.com/jason-s-yu/songdecks/internal/models"
)

func (a *API) catalogRoutes(mux *http.ServeMux) {
	c := a.svc.Catalog

	mux.HandleFunc("GET /factions", a.handle(http.StatusOK, func(r *http.Request, _ auth.Identity) (any, error) {
		return c.Factions(r.Context())
	}))
	editable(a, mux, "/factions", func(f *models.Faction, id int64) { f.ID = id }, c.SaveFaction, c.DeleteFaction)

	mux.HandleFunc("GET /commanders", byFaction(a, c.Commanders))
	editable(a, mux, "/commanders", func(m *models.Commander, id int64) { m.ID = id }, c.SaveCommander, c.DeleteCommander)

	mux.HandleFunc("GET /units", byFaction(a, c.Units))
	editable(a, mux, "/units", func(u *catalog.UnitInput, id int64) { u.ID = id }, c.SaveUnit, c.DeleteUnit)

	mux.HandleFunc("GET /attachments", byFaction(a, c.Attachments))
	editable(a, mux, "/attachments", func(m *models.Attachment, id int64) { m.ID = id }, c.SaveAttachment, c.DeleteAttachment)

	mux.HandleFunc("GET /ncus", byFaction(a, c.NCUs))
	editable(a, mux, "/ncus", func(n *models.NCU, id int64) { n.ID = id }, c.SaveNCU, c.DeleteNCU)

	mux.HandleFunc("GET /cards", a.handle(http.StatusOK, func(r *http.Request, _ auth.Identity) (any, error) {
		commanderID, err := queryID(r, "commander_id")
		if err != nil {
			return nil, err
		}
		if commanderID != nil {
			return c.CardsOfCommander(r.Context(), *commanderID)
		}
		factionID, err := queryID(r, "faction_id")
		if err != nil {
			return nil, err
		}
		if factionID == nil {
			return nil, apperr.Validation("faction_id or commander_id is required")
		}
		return c.CardsOfFaction(r.Context(), *factionID)
	}))
	mux.HandleFunc("GET /cards/commander/{id}", a.handle(http.StatusOK, func(r *http.Request, _ auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		return c.CardsOfCommander(r.Context(), id)
	}))
	mux.HandleFunc("GET /cards/faction/{id}", a.handle(http.StatusOK, func(r *http.Request, _ auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		return c.CardsOfFaction(r.Context(), id)
	}))
	editable(a, mux, "/cards", func(t *models.CardTemplate, id int64) { t.ID = id }, c.SaveCardTemplate, c.DeleteCardTemplate)

	mux.HandleFunc("GET /keyword_types", a.handle(http.StatusOK, func(r *http.Request, _ auth.Identity) (any, error) {
		return c.KeywordTypes(r.Context())
	}))
	editable(a, mux, "/keyword_types", func(k *models.KeywordType, id int64) { k.ID = id }, c.SaveKeywordType, c.DeleteKeywordType)

	mux.HandleFunc("GET /keywords", a.handle(http.StatusOK, func(r *http.Request, _ auth.Identity) (any, error) {
		return c.KeywordPairs(r.Context())
	}))
	editable(a, mux, "/keywords", func(k *models.KeywordPair, id int64) { k.ID = id }, c.SaveKeywordPair, c.DeleteKeywordPair)
}

// byFaction serves a catalog listing filtered by the optional faction_id
// query parameter.
func byFaction[T any](a *API, fn func(ctx context.Context, factionID *int64) ([]T, error)) http.HandlerFunc {
	return a.handle(http.StatusOK, func(r *http.Request, _ auth.Identity) (any, error) {
		factionID, err := queryID(r, "faction_id")
		if err != nil {
			return nil, err
		}
		return fn(r.Context(), factionID)
	})
}

// editable registers create, update and delete under path. The body of an
// update is applied to the row named in the URL; setID overrides any id the
// body carries.
func editable[T, R any](
	a *API,
	mux *http.ServeMux,
	path string,
	setID func(*T, int64),
	save func(context.Context, auth.Identity, T) (R, error),
	del func(context.Context, auth.Identity, int64) error,
) {
	mux.HandleFunc("POST "+path, a.handle(http.StatusCreated, func(r *http.Request, caller auth.Identity) (any, error) {
		var in T
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		setID(&in, 0)
		return save(r.Context(), caller, in)
	}))
	mux.HandleFunc("POST "+path+"/{id}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		var in T
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		setID(&in, id)
		return save(r.Context(), caller, in)
	}))
	mux.HandleFunc("DELETE "+path+"/{id}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		if err := del(r.Context(), caller, id); err != nil {
			return nil, err
		}
		return deleted(id), nil
	}))
}
