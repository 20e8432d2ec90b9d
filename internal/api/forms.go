package api

import (
	"context"
	"io"
	"net/http"

	"protectbox/internal/forms"
	"protectbox/internal/render"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (d Dependencies) startInterview(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	f, err := d.Forms.StartInterview(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (d Dependencies) startITVR(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	f, err := d.Forms.StartITVR(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// formView answers ?mode=audit (read-only) and ?mode=edit with the HTML
// rendering of a form. It reports false when no mode was asked for.
func (d Dependencies) formView(w http.ResponseWriter, r *http.Request, view func(ctx context.Context, id string, audit bool) (render.Form, error)) bool {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		return false
	}
	if mode != "audit" && mode != "edit" {
		WriteError(w, http.StatusBadRequest, "invalid_mode", "mode must be audit or edit", d.Log)
		return true
	}

	form, err := view(r.Context(), chi.URLParam(r, "id"), mode == "audit")
	if err != nil {
		writeServiceError(w, err, d.Log)
		return true
	}
	out, err := form.HTML()
	if err != nil {
		d.Log.Error("Failed to render form", zap.String("title", form.Title), zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "render_failed", "failed to render form", d.Log)
		return true
	}
	w.Header().Set("Content-Type", render.FormatHTML.ContentType())
	io.WriteString(w, out)
	return true
}

func (d Dependencies) getInterview(w http.ResponseWriter, r *http.Request) {
	if d.formView(w, r, d.Forms.InterviewView) {
		return
	}
	f, err := d.Forms.GetInterview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (d Dependencies) saveInterview(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	var in forms.InterviewForm
	if !d.decode(w, r, &in) {
		return
	}

	f, err := d.Forms.SaveInterview(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type itvrResponse struct {
	Form  *forms.ITVRForm `json:"form"`
	Score forms.Score     `json:"score"`
}

func (d Dependencies) getITVR(w http.ResponseWriter, r *http.Request) {
	if d.formView(w, r, d.Forms.ITVRView) {
		return
	}
	f, sc, err := d.Forms.Score(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, itvrResponse{Form: f, Score: sc})
}

func (d Dependencies) saveITVR(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	var in forms.ITVRForm
	if !d.decode(w, r, &in) {
		return
	}

	f, sc, err := d.Forms.SaveITVR(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, itvrResponse{Form: f, Score: sc})
}

func (d Dependencies) summarizeITVR(w http.ResponseWriter, r *http.Request) {
	if _, ok := d.requireActor(w, r); !ok {
		return
	}
	f, err := d.Forms.Summarize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"formId": f.ID, "summary": f.Summary})
}

func (d Dependencies) itvrDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := d.Forms.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	d.writeDocument(w, r, doc)
}
