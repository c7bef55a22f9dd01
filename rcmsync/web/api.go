package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/Fadil369/brainsait-rcm-sub002/log"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
)

// SyncService is the orchestrator surface the control plane drives.
type SyncService interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
	TriggerManualSync(ctx context.Context) (*models.SyncRunResult, error)
	Status() models.IntegrationStatus
	Config() models.SyncConfig
	UpdateConfig(cfg models.SyncConfig) error
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (a *API) GetVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"version": Version})
}

func (a *API) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, a.service.Status())
}

func (a *API) StartSync(w http.ResponseWriter, r *http.Request) {
	// Start performs an immediate run before arming the timer; run it off
	// the request goroutine so the control plane stays responsive.
	go a.service.Start(context.WithoutCancel(r.Context()))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "starting"})
}

func (a *API) StopSync(w http.ResponseWriter, r *http.Request) {
	a.service.Stop(r.Context())
	render.JSON(w, r, map[string]string{"status": "stopped"})
}

func (a *API) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.TriggerManualSync(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrSyncInProgress) {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, errorResponse{Error: err.Error()})
			return
		}
		log.API.WithError(err).Error("manual sync failed")
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	render.JSON(w, r, result)
}

func (a *API) GetConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, a.service.Config())
}

// UpdateConfig applies a partial configuration update: only the keys present
// in the request body change.
func (a *API) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid JSON body"})
		return
	}

	cfg := a.service.Config()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	if err := decoder.Decode(patch); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}

	if err := a.service.UpdateConfig(cfg); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	render.JSON(w, r, cfg)
}

func (a *API) RecentAudit(w http.ResponseWriter, r *http.Request) {
	if a.auditReader == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: "audit store not configured"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := a.auditReader.Recent(r.Context(), limit)
	if err != nil {
		log.API.WithError(err).Error("audit query failed")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "audit query failed"})
		return
	}
	render.JSON(w, r, events)
}
