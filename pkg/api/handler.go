// Package api provides plain net/http JSON handlers over the screen-time
// engine, for local companion UIs and agents. Mount the handler on any
// router; it only needs a ServeMux-compatible pattern scheme.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/screenpaw/screenpaw/pkg/screenpaw"
)

const maxBodyBytes = 1 << 16

// Handler provides HTTP endpoints for engine inspection and actions
type Handler struct {
	config Config
}

// Routes returns a ServeMux with all endpoints mounted:
//
//	GET  /status                 balance, streak, degraded flag, app states
//	GET  /transactions           current week's ledger entries
//	GET  /distractions           today's filtered usage ranking
//	POST /apps                   add a monitored app
//	POST /apps/{id}/extend       raise today's limit (1 credit unless waived)
//	POST /apps/{id}/unblock      lift a block (1 credit)
//	POST /fee                    pay the accountability fee
//	POST /usage                  record a local usage estimate
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", h.GetStatus)
	mux.HandleFunc("GET /transactions", h.GetTransactions)
	mux.HandleFunc("GET /distractions", h.GetDistractions)
	mux.HandleFunc("POST /apps", h.AddApp)
	mux.HandleFunc("POST /apps/{id}/extend", h.ExtendLimit)
	mux.HandleFunc("POST /apps/{id}/unblock", h.Unblock)
	mux.HandleFunc("POST /fee", h.PayFee)
	mux.HandleFunc("POST /usage", h.RecordUsage)
	return mux
}

// GetStatus returns the engine's complete observable state
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	balance, err := h.config.Engine.CurrentBalance(ctx)
	if err != nil {
		h.handleError(w, err)
		return
	}
	streak, err := h.config.Engine.Streak(ctx)
	if err != nil {
		h.handleError(w, err)
		return
	}
	goals, err := h.config.Engine.MonitoredApps(ctx)
	if err != nil {
		h.handleError(w, err)
		return
	}

	apps := make([]AppStatus, 0, len(goals))
	for _, goal := range goals {
		state, err := h.config.Engine.BlockingState(ctx, goal.AppID)
		if err != nil {
			// One app failing to derive must not hide the rest
			continue
		}
		apps = append(apps, AppStatus{
			AppID:        goal.AppID,
			DisplayName:  goal.DisplayName,
			LimitMinutes: goal.DailyLimitMinutes,
			State:        string(state),
		})
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		CreditsRemaining: balance,
		CurrentStreak:    streak.CurrentStreak,
		LongestStreak:    streak.LongestStreak,
		UsageDegraded:    h.config.Engine.UsageDegraded(),
		TotalUsage:       h.config.Engine.TotalUsageMinutes(),
		Apps:             apps,
	})
}

// GetTransactions returns the current week's ledger entries, oldest first
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.config.Engine.TransactionHistory(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}

	entries := make([]TransactionEntry, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, TransactionEntry{
			Amount:    tx.Amount,
			Reason:    string(tx.Reason),
			AppID:     tx.AppID,
			Timestamp: tx.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetDistractions returns today's usage ranking with placeholders and
// zero-minute apps filtered out
func (h *Handler) GetDistractions(w http.ResponseWriter, r *http.Request) {
	ranked := h.config.Engine.TopDistractions()
	entries := make([]DistractionEntry, 0, len(ranked))
	for _, app := range ranked {
		entries = append(entries, DistractionEntry{Name: app.Name, Minutes: app.Minutes})
	}
	writeJSON(w, http.StatusOK, entries)
}

// AddApp registers an app for monitoring
func (h *Handler) AddApp(w http.ResponseWriter, r *http.Request) {
	var req AddAppRequest
	if !h.decode(w, r, &req) {
		return
	}

	goal, err := h.config.Engine.AddMonitoredApp(r.Context(), req.AppID, req.DisplayName, req.LimitMinutes)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AppStatus{
		AppID:        goal.AppID,
		DisplayName:  goal.DisplayName,
		LimitMinutes: goal.DailyLimitMinutes,
		State:        string(screenpaw.StateActive),
	})
}

// ExtendLimit raises the app's limit for the rest of today
func (h *Handler) ExtendLimit(w http.ResponseWriter, r *http.Request) {
	var req ExtendRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.config.Engine.ExtendLimit(r.Context(), r.PathValue("id"), req.LimitMinutes); err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "extended"})
}

// Unblock spends a credit to lift the block on an app
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Engine.UnblockWithCredit(r.Context(), r.PathValue("id")); err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

// PayFee pays the accountability fee, restoring the full weekly balance
func (h *Handler) PayFee(w http.ResponseWriter, r *http.Request) {
	if err := h.config.Engine.PayAccountabilityFee(r.Context()); err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// RecordUsage feeds a locally tracked usage estimate
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.config.Engine.RecordUsageSnapshot(r.Context(), req.AppID, req.Minutes); err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "expected application/json"})
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// handleError maps engine errors to HTTP statuses. Domain rejections are
// client errors; an invariant violation or halted ledger is a 500 that must
// stay loud.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	if h.config.OnError != nil {
		status, body := h.config.OnError(err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, screenpaw.ErrUnknownApp):
		return http.StatusNotFound
	case errors.Is(err, screenpaw.ErrDuplicateApp):
		return http.StatusConflict
	case errors.Is(err, screenpaw.ErrLimitNotIncreasing),
		errors.Is(err, screenpaw.ErrInvalidLimit),
		errors.Is(err, screenpaw.ErrAppNotBlocked),
		errors.Is(err, screenpaw.ErrFeeAlreadyPaid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, screenpaw.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Response already committed; an encode failure has nowhere to go
	_ = json.NewEncoder(w).Encode(body)
}
