package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"protectbox/internal/mission"
	"protectbox/internal/service"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) missionInbox(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("filter")
	if name == "" {
		name = string(mission.FilterWork)
	}
	f, ok := mission.ParseFilter(name)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_filter", "filter must be one of PENDING WORK CANCELLED RETURNED", d.Log)
		return
	}

	box, err := d.Missions.Inbox(r.Context(), actor, f)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, box)
}

func (d Dependencies) getMission(w http.ResponseWriter, r *http.Request) {
	m, err := d.Missions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (d Dependencies) dispatchMission(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	t, ok := mission.ParseTransition(chi.URLParam(r, "transition"))
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown_transition", "no such transition: "+chi.URLParam(r, "transition"), d.Log)
		return
	}
	var in service.DispatchInput
	// the body is optional for transitions without a payload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	m, err := d.Missions.Dispatch(r.Context(), actor, chi.URLParam(r, "id"), t, in)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (d Dependencies) missionExtension(w http.ResponseWriter, r *http.Request) {
	st, err := d.Missions.ExtensionStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (d Dependencies) missionReason(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	reason, found, err := d.Missions.Reason(r.Context(), chi.URLParam(r, "id"), tag)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	resp := map[string]interface{}{"tag": tag, "found": found}
	if found {
		resp["reason"] = reason
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d Dependencies) missionDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := d.Missions.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	d.writeDocument(w, r, doc)
}
