package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"protectbox/internal/model"
	"protectbox/internal/service"
	"protectbox/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartMemory is how much of an upload is buffered before spilling to disk
const multipartMemory = 32 << 20

func (d Dependencies) beginOpening(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	var draft model.CaseDraft
	if !d.decode(w, r, &draft) {
		return
	}

	res, err := d.Cases.BeginOpening(r.Context(), actor, draft)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	status := http.StatusCreated
	if res.Case == nil {
		// parked on the duplicate gate
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (d Dependencies) getOpening(w http.ResponseWriter, r *http.Request) {
	o, err := d.Cases.GetOpening(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (d Dependencies) resolveOpening(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	var body struct {
		Decision string `json:"decision"`
	}
	if !d.decode(w, r, &body) {
		return
	}

	res, err := d.Cases.ResolveOpening(r.Context(), actor, chi.URLParam(r, "id"), body.Decision)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (d Dependencies) getCase(w http.ResponseWriter, r *http.Request) {
	c, err := d.Cases.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, d.Cases.View(c))
}

func (d Dependencies) updateCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := d.requireActor(w, r)
	if !ok {
		return
	}
	var in service.UpdateCaseInput
	if !d.decode(w, r, &in) {
		return
	}

	c, err := d.Cases.Update(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, d.Cases.View(c))
}

func (d Dependencies) addFamilyMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := d.requireActor(w, r); !ok {
		return
	}
	var in service.FamilyMemberInput
	if !d.decode(w, r, &in) {
		return
	}

	c, err := d.Cases.AddFamilyMember(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, d.Cases.View(c))
}

func (d Dependencies) updateFamilyMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := d.requireActor(w, r); !ok {
		return
	}
	var in service.FamilyMemberInput
	if !d.decode(w, r, &in) {
		return
	}

	c, err := d.Cases.UpdateFamilyMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "memberId"), in)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, d.Cases.View(c))
}

func (d Dependencies) toggleFamilyMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := d.requireActor(w, r); !ok {
		return
	}
	c, err := d.Cases.ToggleFamilyMember(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "memberId"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, d.Cases.View(c))
}

// uploadAttachments takes a multipart batch under the "files" field. The
// response reports every file as accepted or rejected.
func (d Dependencies) uploadAttachments(w http.ResponseWriter, r *http.Request) {
	if _, ok := d.requireActor(w, r); !ok {
		return
	}
	limit := d.Cases.Policy().MaxBatchBytes()
	if limit > 0 {
		if r.ContentLength > limit {
			writeTooLarge(w, limit, d.Log)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeTooLarge(w, limit, d.Log)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "expected a multipart form", d.Log)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		WriteError(w, http.StatusBadRequest, "invalid_request", "no files in field \"files\"", d.Log)
		return
	}
	if len(headers) > storage.MaxBatchFiles {
		WriteError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("at most %d files per upload", storage.MaxBatchFiles), d.Log)
		return
	}

	uploads := make([]service.Upload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			d.Log.Warn("Failed to open upload", zap.String("name", h.Filename), zap.Error(err))
			WriteError(w, http.StatusBadRequest, "invalid_request", "unreadable file "+h.Filename, d.Log)
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{
			Candidate: storage.Candidate{
				Name:        h.Filename,
				ContentType: h.Header.Get("Content-Type"),
				Size:        h.Size,
			},
			Body: f,
		})
	}

	report, err := d.Cases.AddAttachments(r.Context(), chi.URLParam(r, "id"), uploads)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeTooLarge(w http.ResponseWriter, limit int64, log *zap.Logger) {
	WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Sprintf("upload exceeds %d bytes", limit), log)
}

func (d Dependencies) caseDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := d.Cases.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	d.writeDocument(w, r, doc)
}
