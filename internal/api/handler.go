package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/alerts"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/client"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/config"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/engine"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/hub"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/store"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/tracker"
)

const maxBatchSize = 500

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	store  *store.Store
	alerts *alerts.Manager
	hub    *hub.Hub
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, st *store.Store, am *alerts.Manager, h *hub.Hub, loader *config.Loader) http.Handler {
	hd := &Handler{eng: eng, store: st, alerts: am, hub: h, loader: loader, mux: http.NewServeMux()}

	hd.mux.HandleFunc("GET /v1/state", hd.snapshot)
	hd.mux.HandleFunc("POST /v1/positions", hd.ingestPositions)

	hd.mux.HandleFunc("GET /v1/entities", hd.listEntities)
	hd.mux.HandleFunc("POST /v1/entities", hd.createEntity)
	hd.mux.HandleFunc("GET /v1/entities/{id}", hd.getEntity)
	hd.mux.HandleFunc("PUT /v1/entities/{id}/health", hd.updateEntityHealth)
	hd.mux.HandleFunc("DELETE /v1/entities/{id}", hd.deleteEntity)

	hd.mux.HandleFunc("GET /v1/resources", hd.listResources)
	hd.mux.HandleFunc("POST /v1/resources", hd.createResource)
	hd.mux.HandleFunc("DELETE /v1/resources/{id}", hd.deleteResource)

	hd.mux.HandleFunc("GET /v1/boundaries", hd.listBoundaries)
	hd.mux.HandleFunc("POST /v1/boundaries/reload", hd.reloadBoundaries)

	hd.mux.HandleFunc("GET /v1/notifications", hd.listNotifications)
	hd.mux.HandleFunc("POST /v1/notifications/{id}/read", hd.markNotificationRead)
	hd.mux.HandleFunc("POST /v1/notifications/read-all", hd.markAllNotificationsRead)
	hd.mux.HandleFunc("DELETE /v1/notifications/{id}", hd.removeNotification)
	hd.mux.HandleFunc("DELETE /v1/notifications", hd.clearNotifications)

	hd.mux.HandleFunc("GET /v1/stream", hd.stream)
	hd.mux.HandleFunc("GET /healthz", hd.healthz)
	hd.mux.HandleFunc("GET /readyz", hd.readyz)
	hd.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(hd.mux)
}

// GET /v1/state — the bulk read a reconciler uses as its sync base.
// Bypasses the event stream entirely.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, client.Snapshot{
		Entities:      h.store.Entities(),
		Boundaries:    h.store.Boundaries(),
		Resources:     h.store.Resources(),
		Notifications: h.alerts.List(alerts.Filter{}),
		Timestamp:     time.Now().UTC(),
	})
}

// positionReading is the ingest wire format. Collars buffer readings
// locally and upload in batches.
type positionReading struct {
	EntityID  string    `json:"entity_id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

func (p positionReading) valid() error {
	if p.EntityID == "" {
		return errors.New("entity_id required")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return errors.New("lat out of range")
	}
	if p.Lng < -180 || p.Lng > 180 {
		return errors.New("lng out of range")
	}
	return nil
}

// POST /v1/positions — async batch ingestion of position samples.
func (h *Handler) ingestPositions(w http.ResponseWriter, r *http.Request) {
	var readings []positionReading
	if err := json.NewDecoder(r.Body).Decode(&readings); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: expected array: %s", err))
		return
	}
	if len(readings) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one reading")
		return
	}
	if len(readings) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(readings), maxBatchSize))
		return
	}

	now := time.Now().UTC()
	queued := 0
	for _, p := range readings {
		if err := p.valid(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ts := p.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if h.eng.Submit(tracker.Sample{
			EntityID:  p.EntityID,
			Position:  orb.Point{p.Lng, p.Lat},
			Timestamp: ts,
		}) {
			queued++
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"total":    len(readings),
		"queued":   queued,
		"rejected": len(readings) - queued,
	})
}

// ── Entities ──────────────────────────────────────────────────────────

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entities": h.store.Entities()})
}

type entityRequest struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Age    int     `json:"age"`
	Health string  `json:"health"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	var req entityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	health := model.HealthStatus(req.Health)
	if req.Health == "" {
		health = model.Healthy
	}
	if !health.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown health status %q", req.Health))
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeError(w, http.StatusBadRequest, "coordinate out of range")
		return
	}
	now := time.Now().UTC()
	ent := model.Entity{
		ID:         req.ID,
		Name:       req.Name,
		Age:        req.Age,
		Health:     health,
		Position:   orb.Point{req.Lng, req.Lat},
		LastUpdate: now,
		CreatedAt:  now,
	}
	h.store.PutEntity(ent)
	writeJSON(w, http.StatusCreated, ent)
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	ent, err := h.store.Entity(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

func (h *Handler) updateEntityHealth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Health string `json:"health"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	health := model.HealthStatus(req.Health)
	if !health.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown health status %q", req.Health))
		return
	}
	id := r.PathValue("id")
	if err := h.store.UpdateEntityHealth(id, health); err != nil {
		writeStoreError(w, err)
		return
	}
	ent, _ := h.store.Entity(id)
	writeJSON(w, http.StatusOK, ent)
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	h.store.DeleteEntity(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// ── Resources ─────────────────────────────────────────────────────────

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"resources": h.store.Resources()})
}

type resourceRequest struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Kind string  `json:"kind"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

func (h *Handler) createResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Name == "" || req.Kind == "" {
		writeError(w, http.StatusBadRequest, "name and kind are required")
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeError(w, http.StatusBadRequest, "coordinate out of range")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	res := model.Resource{
		ID:       req.ID,
		Name:     req.Name,
		Kind:     req.Kind,
		Position: orb.Point{req.Lng, req.Lat},
	}
	h.store.PutResource(res)
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) deleteResource(w http.ResponseWriter, r *http.Request) {
	h.store.DeleteResource(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// ── Boundaries ────────────────────────────────────────────────────────

func (h *Handler) listBoundaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"boundaries": h.store.Boundaries()})
}

// POST /v1/boundaries/reload — re-read the config and swap the active
// fence set. The loader's change callbacks re-seed the store and the
// tracker atomically.
func (h *Handler) reloadBoundaries(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":         true,
		"boundaries_count": len(cfg.Boundaries),
	})
}

// ── Notifications ─────────────────────────────────────────────────────

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	f := alerts.Filter{
		Category:   alerts.Category(r.URL.Query().Get("category")),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	}
	if raw := r.URL.Query().Get("since_seconds"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			writeError(w, http.StatusBadRequest, "since_seconds must be a non-negative integer")
			return
		}
		f.Since = time.Now().Add(-time.Duration(secs) * time.Second)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": h.alerts.List(f),
		"unread":        h.alerts.UnreadCount(),
	})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	h.alerts.MarkRead(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	h.alerts.MarkAllRead()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeNotification(w http.ResponseWriter, r *http.Request) {
	h.alerts.Remove(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearNotifications(w http.ResponseWriter, r *http.Request) {
	cleared := h.alerts.Clear(nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": cleared})
}

// ── Probes ────────────────────────────────────────────────────────────

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the ingest queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.ReportQueueGauge()
	status := http.StatusOK
	state := "ready"
	if util > 0.8 {
		status = http.StatusServiceUnavailable
		state = "overloaded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":            state,
		"queue_utilization": util,
		"subscribers":       h.hub.ActiveConnections(),
	})
}
