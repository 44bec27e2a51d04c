package handlers

import (
	"net/http"

	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/lists"
)

func (a *API) listRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /lists", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return a.svc.Lists.Lists(r.Context(), caller, nil)
	}))
	mux.HandleFunc("GET /lists/user/{profileID}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		owner, err := pathUUID(r, "profileID")
		if err != nil {
			return nil, err
		}
		return a.svc.Lists.Lists(r.Context(), caller, &owner)
	}))
	mux.HandleFunc("GET /lists/{id}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		return a.svc.Lists.Get(r.Context(), caller, id)
	}))
	mux.HandleFunc("POST /lists", a.handle(http.StatusCreated, func(r *http.Request, caller auth.Identity) (any, error) {
		var sub lists.Submission
		if err := decode(r, &sub); err != nil {
			return nil, err
		}
		return a.svc.Lists.Save(r.Context(), caller, sub)
	}))
	mux.HandleFunc("POST /lists/{id}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		var sub lists.Submission
		if err := decode(r, &sub); err != nil {
			return nil, err
		}
		sub.ListID = id
		return a.svc.Lists.Save(r.Context(), caller, sub)
	}))
	mux.HandleFunc("DELETE /lists/{id}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		if err := a.svc.Lists.Delete(r.Context(), caller, id); err != nil {
			return nil, err
		}
		return deleted(id), nil
	}))

	mux.HandleFunc("POST /lists/{id}/share/{username}", a.handle(http.StatusCreated, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		return a.svc.Lists.Share(r.Context(), caller, id, r.PathValue("username"))
	}))
	mux.HandleFunc("POST /lists/{id}/shared/{action}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		action := lists.ShareAction(r.PathValue("action"))
		l, err := a.svc.Lists.RespondToShare(r.Context(), caller, id, action)
		if err != nil {
			return nil, err
		}
		if l == nil {
			return deleted(id), nil
		}
		return l, nil
	}))
}
