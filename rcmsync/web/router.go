// Package web exposes the operator control plane: health, status, run
// control and configuration. It reads and writes state the orchestrator
// owns; it holds none of its own.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/Fadil369/brainsait-rcm-sub002/middleware"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/audit"
)

// Version is stamped at build time.
var Version = "latest"

func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewTransactionID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/_health", api.Health)
	r.Get("/_version", api.GetVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", api.GetStatus)
		r.Post("/start", api.StartSync)
		r.Post("/stop", api.StopSync)
		r.Post("/trigger", api.TriggerSync)
		r.Get("/config", api.GetConfig)
		r.Patch("/config", api.UpdateConfig)
		r.Get("/audit/recent", api.RecentAudit)
	})

	return r
}

// API carries the control plane's collaborators.
type API struct {
	service     SyncService
	auditReader audit.Reader
}

func NewAPI(service SyncService, auditReader audit.Reader) *API {
	return &API{service: service, auditReader: auditReader}
}
