package api

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"

	"protectbox/internal/refdata"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// getFile streams a stored attachment back. Object names come from
// storage.ObjectName, so the path is case/attachment/file.
func (d Dependencies) getFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "object name required", d.Log)
		return
	}

	rc, err := d.Files.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			WriteError(w, http.StatusNotFound, "not_found", "file not found", d.Log)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), d.Log)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if _, err := io.Copy(w, rc); err != nil {
		d.Log.Warn("Failed to stream file", zap.String("name", name), zap.Error(err))
	}
}

func (d Dependencies) lookupRegistry(w http.ResponseWriter, r *http.Request) {
	rec, found, err := d.Registry.Lookup(r.Context(), chi.URLParam(r, "document"))
	if err != nil {
		WriteError(w, http.StatusBadGateway, "lookup_failed", err.Error(), d.Log)
		return
	}
	resp := map[string]interface{}{"found": found}
	if found {
		resp["record"] = rec
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d Dependencies) lookupCriminal(w http.ResponseWriter, r *http.Request) {
	cases, found, err := d.Criminal.Lookup(r.Context(), chi.URLParam(r, "document"))
	if err != nil {
		WriteError(w, http.StatusBadGateway, "lookup_failed", err.Error(), d.Log)
		return
	}
	resp := map[string]interface{}{"found": found}
	if found {
		resp["cases"] = cases
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d Dependencies) getRefdata(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	if name == "officials" && r.URL.Query().Get("regional") != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"table": name, "items": refdata.OfficialsIn(r.URL.Query().Get("regional"))})
		return
	}
	table, ok := refdata.Table(name)
	if !ok {
		WriteError(w, http.StatusNotFound, "not_found", "no reference table "+name, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"table": name, "items": table})
}
