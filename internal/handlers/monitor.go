package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/musefactory/mediacache/internal/ledger"
	"github.com/musefactory/mediacache/internal/monitor"
	"github.com/musefactory/mediacache/internal/storage"
)

// MonitorHandler serves the GET /monitor usage dashboard behind a shared
// access code.
type MonitorHandler struct {
	selector   *storage.Selector
	usage      *ledger.Ledger
	accessCode string
}

// NewMonitorHandler builds a MonitorHandler. usage may be nil.
func NewMonitorHandler(selector *storage.Selector, usage *ledger.Ledger, accessCode string) *MonitorHandler {
	return &MonitorHandler{selector: selector, usage: usage, accessCode: accessCode}
}

// Monitor renders the usage dashboard. The access code is accepted as a
// bearer token or a ?code query parameter; an unconfigured code disables
// the endpoint entirely.
func (h *MonitorHandler) Monitor(w http.ResponseWriter, r *http.Request) {
	if h.accessCode == "" {
		http.NotFound(w, r)
		return
	}
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	store := h.selector.Default()
	if store == nil {
		http.Error(w, "no storage provider configured", http.StatusServiceUnavailable)
		return
	}

	report, err := monitor.BuildReport(r.Context(), store, h.usage)
	if err != nil {
		slog.Error("Building usage report failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := monitor.RenderHTML(w, report); err != nil {
		slog.Debug("Rendering usage report failed", "error", err)
	}
}

func (h *MonitorHandler) authorized(r *http.Request) bool {
	supplied := r.URL.Query().Get("code")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		supplied = strings.TrimPrefix(auth, "Bearer ")
	}
	if supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(h.accessCode)) == 1
}
