package api

import (
	"net/http"

	"protectbox/internal/auth"
	"protectbox/internal/lookup"
	"protectbox/internal/service"
	"protectbox/internal/storage"
	"protectbox/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Dependencies struct {
	Requests *service.RequestService
	Cases    *service.CaseService
	Missions *service.MissionService
	Forms    *service.FormService
	Registry lookup.CivilRegistry
	Criminal lookup.CriminalCases
	Files    storage.Storage
	Auth     *auth.JWTConfig
	Hub      *ws.Hub
	Log      *zap.Logger
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(d.Log))
	// anonymous requests pass; handlers that act on state require an actor
	r.Use(d.Auth.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// stored attachments, addressed by storage.ObjectName
	r.Get("/files/*", d.getFile)

	// WebSocket endpoint
	r.Get("/ws", d.wsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/requests", d.createRequest)
		r.Get("/requests", d.listRequests)
		r.Get("/requests/{id}", d.getRequest)
		r.Post("/requests/{id}/file", d.fileRequest)
		r.Post("/requests/{id}/deactivate", d.deactivateRequest)

		r.Post("/cases/openings", d.beginOpening)
		r.Get("/cases/openings/{id}", d.getOpening)
		r.Post("/cases/openings/{id}/resolve", d.resolveOpening)
		r.Get("/cases/{id}", d.getCase)
		r.Put("/cases/{id}", d.updateCase)
		r.Post("/cases/{id}/family", d.addFamilyMember)
		r.Put("/cases/{id}/family/{memberId}", d.updateFamilyMember)
		r.Post("/cases/{id}/family/{memberId}/toggle", d.toggleFamilyMember)
		r.Post("/cases/{id}/attachments", d.uploadAttachments)
		r.Get("/cases/{id}/document", d.caseDocument)

		r.Get("/missions", d.missionInbox)
		r.Get("/missions/{id}", d.getMission)
		r.Post("/missions/{id}/commands/{transition}", d.dispatchMission)
		r.Get("/missions/{id}/extension", d.missionExtension)
		r.Get("/missions/{id}/reason/{tag}", d.missionReason)
		r.Get("/missions/{id}/document", d.missionDocument)
		r.Post("/missions/{id}/forms/interview", d.startInterview)
		r.Post("/missions/{id}/forms/itvr", d.startITVR)

		r.Get("/forms/interview/{id}", d.getInterview)
		r.Put("/forms/interview/{id}", d.saveInterview)
		r.Get("/forms/itvr/{id}", d.getITVR)
		r.Put("/forms/itvr/{id}", d.saveITVR)
		r.Post("/forms/itvr/{id}/summary", d.summarizeITVR)
		r.Get("/forms/itvr/{id}/document", d.itvrDocument)

		r.Get("/lookups/registry/{document}", d.lookupRegistry)
		r.Get("/lookups/criminal/{document}", d.lookupCriminal)
		r.Get("/refdata/{table}", d.getRefdata)
	})

	return r
}
