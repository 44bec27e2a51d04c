package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/auth"
)

const maxBodyBytes = 1 << 20

// envelope wraps every JSON response.
type envelope struct {
	Success  bool        `json:"success"`
	Response any         `json:"response"`
	Code     apperr.Kind `json:"code,omitempty"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.WithError(err).Warn("failed to write response")
	}
}

// writeError maps err onto its status. Unclassified errors are logged and
// reported as an opaque internal error.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindSystem {
		a.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	a.writeJSON(w, kind.HTTPStatus(), envelope{Success: false, Response: apperr.Message(err), Code: kind})
}

// endpoint receives the caller resolved by the auth middleware.
type endpoint func(r *http.Request, caller auth.Identity) (any, error)

// handle runs fn and writes its result with status on success.
func (a *API) handle(status int, fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		out, err := fn(r, auth.FromContext(r.Context()))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.writeJSON(w, status, envelope{Success: true, Response: out})
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Wrap(apperr.KindValidation, err, fmt.Sprintf("invalid request body: %v", err))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}

// queryID reads an optional numeric query parameter.
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.Validation("invalid %s %q", name, raw)
	}
	return &id, nil
}

// deleted is the response body of a successful delete.
func deleted(id int64) map[string]int64 { return map[string]int64{"deleted": id} }
