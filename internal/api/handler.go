// Package api exposes the HTTP surface: the report dashboard, the
// campaign send endpoint and the open/click tracking routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/osteele/liquid"

	"github.com/ignite/mailtrack/internal/campaign"
	"github.com/ignite/mailtrack/internal/metrics"
	"github.com/ignite/mailtrack/internal/pkg/distlock"
	"github.com/ignite/mailtrack/internal/registry"
)

// 1x1 transparent PNG
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// Tracker is the event-recording and reporting slice of the registry.
type Tracker interface {
	RecordOpen(ctx context.Context, recipientID int64, ip, userAgent string) (bool, error)
	RecordClick(ctx context.Context, token, ip, userAgent string) (string, error)
	Report(ctx context.Context) (*registry.Report, error)
}

// Sender runs a full campaign send.
type Sender interface {
	SendCampaign(ctx context.Context) (*campaign.Report, error)
}

type Handler struct {
	tracker      Tracker
	sender       Sender
	dashboardTpl *liquid.Template
	newSendLock  func() distlock.Lock
}

// NewHandler creates the HTTP handler set.
func NewHandler(tracker Tracker, sender Sender) (*Handler, error) {
	tpl, err := liquid.NewEngine().ParseString(dashboardTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	return &Handler{tracker: tracker, sender: sender, dashboardTpl: tpl}, nil
}

// SetSendLockFactory guards the send endpoint with a distributed lock,
// so overlapping send-all requests (or a second server instance) don't
// double-send the campaign. Each request acquires a fresh lock.
func (h *Handler) SetSendLockFactory(factory func() distlock.Lock) {
	h.newSendLock = factory
}

// Routes mounts all endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	r.Get("/dashboard", h.HandleDashboard)
	r.Post("/api/send-all-emails", h.HandleSendAll)
	r.Get("/tracker/{recipientID}.png", h.HandleOpen)
	r.Get("/click/{token}", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	r.Handle("/metrics", metrics.Handler())
	return r
}

// HandleOpen records an open event and serves the pixel. The response is
// the identical image for known ids, unknown ids, malformed ids and
// store failures; the pixel must not reveal which ids exist.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "recipientID")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		h.servePixel(w)
		return
	}

	recorded, err := h.tracker.RecordOpen(r.Context(), id, realIP(r), r.UserAgent())
	if err != nil {
		log.Printf("[Tracking] Failed to record open for %d: %v", id, err)
	} else if recorded {
		metrics.OpensRecorded.Inc()
		log.Printf("OPEN recipient=%d", id)
	}

	h.servePixel(w)
}

// HandleClick records a click event and redirects to the link's target.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	target, err := h.tracker.RecordClick(r.Context(), token, realIP(r), r.UserAgent())
	if errors.Is(err, registry.ErrLinkNotFound) {
		http.Error(w, "Invalid link", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[Tracking] Failed to record click: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	metrics.ClicksRecorded.Inc()
	log.Printf("CLICK token=%s url=%s", token, target)
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleSendAll runs the campaign against the full roster. Per-recipient
// failures come back in the report body; only a roster-level failure is
// an error response.
func (h *Handler) HandleSendAll(w http.ResponseWriter, r *http.Request) {
	if h.newSendLock != nil {
		lock := h.newSendLock()
		acquired, err := lock.Acquire(r.Context())
		if err != nil {
			log.Printf("[API] Send lock error: %v", err)
		} else if !acquired {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"status": "error",
				"error":  "a campaign send is already in progress",
			})
			return
		} else {
			defer lock.Release(r.Context())
		}
	}

	report, err := h.sender.SendCampaign(r.Context())
	if err != nil {
		log.Printf("[API] Campaign send failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	failed := make([]map[string]string, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, map[string]string{
			"email": f.Email,
			"error": f.Err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    failed,
	})
}

// HandleDashboard renders the report tables.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	report, err := h.tracker.Report(r.Context())
	if err != nil {
		log.Printf("[API] Failed to load report: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	html, err := h.dashboardTpl.RenderString(dashboardBindings(report))
	if err != nil {
		log.Printf("[API] Failed to render dashboard: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelPNG)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
