package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"protectbox/internal/auth"
	"protectbox/internal/model"
	"protectbox/internal/render"
	"protectbox/internal/service"

	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, code int, errCode, message string, log *zap.Logger) {
	writeErrorResponse(w, code, ErrorResponse{Error: errCode, Code: errCode, Message: message}, log)
}

func writeErrorResponse(w http.ResponseWriter, code int, resp ErrorResponse, log *zap.Logger) {
	if code >= http.StatusInternalServerError {
		log.Error("API error", zap.String("code", resp.Code), zap.String("message", resp.Message))
	} else {
		log.Info("API error", zap.String("code", resp.Code), zap.String("message", resp.Message))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

// statusFor maps a service error code to its HTTP status
func statusFor(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeVersionConflict, service.CodeGuardRejected:
		return http.StatusConflict
	case service.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeServiceError classifies err and writes the matching response
func writeServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	code := service.Code(err)
	resp := ErrorResponse{Error: code, Code: code, Message: err.Error()}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeErrorResponse(w, statusFor(code), resp, log)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (d Dependencies) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return false
	}
	return true
}

// requireActor returns the request's actor or answers 401
func (d Dependencies) requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "an identified actor is required", d.Log)
		return model.Actor{}, false
	}
	return actor, true
}

func (d Dependencies) writeDocument(w http.ResponseWriter, r *http.Request, doc render.Document) {
	format, ok := render.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_format", "format must be html or text", d.Log)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if err := render.Write(w, doc, format); err != nil {
		d.Log.Error("Failed to render document", zap.String("title", doc.Title), zap.Error(err))
	}
}

// RequestLogger logs HTTP requests and responses
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket upgrades need the raw ResponseWriter
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
