package api

import (
	"net/http"
	"strconv"
	"strings"

	"protectbox/internal/auth"
	"protectbox/internal/model"
	"protectbox/internal/service"
	"protectbox/internal/store"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) createRequest(w http.ResponseWriter, r *http.Request) {
	var in service.CreateRequestInput
	if !d.decode(w, r, &in) {
		return
	}
	if actor, ok := auth.ActorFrom(r.Context()); ok {
		in.SubmittedBy = actor.ID
	}

	req, err := d.Requests.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (d Dependencies) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RequestFilter{
		Status:         model.RequestStatus(strings.ToUpper(q.Get("status"))),
		DocumentNumber: q.Get("document"),
		Text:           q.Get("q"),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "active must be true or false", d.Log)
			return
		}
		f.Active = &active
	}

	items, err := d.Requests.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	if items == nil {
		items = []model.ProtectionRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (d Dependencies) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := d.Requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) fileRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	req, err := d.Requests.File(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) deactivateRequest(w http.ResponseWriter, r *http.Request) {
	if _, ok := d.requireActor(w, r); !ok {
		return
	}
	req, err := d.Requests.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
