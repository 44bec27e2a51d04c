package handlers

import (
	"context"
	"net/http"

	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/workbench"
)

type tagRequest struct {
	Name string `json:"name"`
}

func (a *API) workbenchRoutes(mux *http.ServeMux) {
	wb := a.svc.Workbench

	mux.HandleFunc("GET /moderators", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return wb.Moderators(r.Context(), caller)
	}))

	mux.HandleFunc("GET /tags", a.handle(http.StatusOK, func(r *http.Request, _ auth.Identity) (any, error) {
		return wb.Tags(r.Context())
	}))
	saveTag := func(ctx context.Context, caller auth.Identity, id int64, in tagRequest) (any, error) {
		return wb.SaveTag(ctx, caller, id, in.Name)
	}
	writable(a, mux, "/tags", saveTag, saveTag, wb.DeleteTag)

	mux.HandleFunc("GET /proposals", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return wb.Proposals(r.Context(), caller)
	}))
	mux.HandleFunc("GET /proposals/{id}", byID(a, http.StatusOK, wb.Proposal))
	writable(a, mux, "/proposals",
		func(ctx context.Context, caller auth.Identity, _ int64, in workbench.ProposalInput) (any, error) {
			return wb.CreateProposal(ctx, caller, in)
		},
		func(ctx context.Context, caller auth.Identity, id int64, in workbench.ProposalInput) (any, error) {
			return wb.UpdateProposal(ctx, caller, id, in)
		},
		wb.DeleteProposal)
	mux.HandleFunc("POST /proposals/{id}/favorite", byID(a, http.StatusOK, wb.FavoriteProposal))

	mux.HandleFunc("GET /tasks", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		return wb.Tasks(r.Context(), caller)
	}))
	mux.HandleFunc("GET /tasks/{id}", byID(a, http.StatusOK, wb.Task))
	writable(a, mux, "/tasks", wb.SaveTask, wb.SaveTask, wb.DeleteTask)
	mux.HandleFunc("POST /tasks/{id}/favorite", byID(a, http.StatusOK, wb.FavoriteTask))

	writable(a, mux, "/subtasks", wb.SaveSubTask, wb.SaveSubTask, wb.DeleteSubTask)
}

// byID serves fn for the row named by the id path segment.
func byID[T any](a *API, status int, fn func(ctx context.Context, caller auth.Identity, id int64) (T, error)) http.HandlerFunc {
	return a.handle(status, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		return fn(r.Context(), caller, id)
	})
}

// writable registers create, update and delete under path for services that
// take the row id separately from the body. create receives id zero.
func writable[In, R1, R2 any](
	a *API,
	mux *http.ServeMux,
	path string,
	create func(context.Context, auth.Identity, int64, In) (R1, error),
	update func(context.Context, auth.Identity, int64, In) (R2, error),
	del func(context.Context, auth.Identity, int64) error,
) {
	mux.HandleFunc("POST "+path, a.handle(http.StatusCreated, func(r *http.Request, caller auth.Identity) (any, error) {
		var in In
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return create(r.Context(), caller, 0, in)
	}))
	mux.HandleFunc("POST "+path+"/{id}", a.handle(http.StatusOK, func(r *http.Request, caller auth.Identity) (any, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		var in In
		if err := decode(r, &in); err != nil {
			return nil, err
		}
		return update(r.Context(), caller, id, in)
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
