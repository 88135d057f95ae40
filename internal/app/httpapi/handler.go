// Package httpapi exposes the marketplace REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/pixelhaven/marketplace/internal/app"
	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/domain/plan"
	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/metrics"
	"github.com/pixelhaven/marketplace/internal/app/services/contributors"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/internal/middleware"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// Options configures the HTTP surface.
type Options struct {
	Auth       Authenticator
	AdminGuard *middleware.AdminGuard
	Log        *logger.Logger
}

type handler struct {
	app  *app.Application
	auth Authenticator
	log  *logger.Logger
}

// NewHandler returns a router exposing the REST API. Session resolution
// is expected to have run already; handlers read the user ID from the
// request context.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, auth: opts.Auth, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/signin", h.signIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", h.signOut).Methods(http.MethodPost)

	api.HandleFunc("/assets", h.listApprovedAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets", h.submitAsset).Methods(http.MethodPost)
	api.HandleFunc("/assets/mine", h.listMyAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}", h.getAsset).Methods(http.MethodGet)

	api.HandleFunc("/contributors/apply", h.applyContributor).Methods(http.MethodPost)

	api.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", h.markNotificationRead).Methods(http.MethodPost)

	api.HandleFunc("/plans", h.listPlans).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions", h.subscribe).Methods(http.MethodPost)
	api.HandleFunc("/subscriptions", h.cancelSubscription).Methods(http.MethodDelete)

	admin := api.PathPrefix("/admin").Subrouter()
	if opts.AdminGuard != nil {
		admin.Use(opts.AdminGuard.API)
	}
	admin.HandleFunc("/assets/pending", h.listPendingAssets).Methods(http.MethodGet)
	admin.HandleFunc("/assets/{id}/approve", h.approveAsset).Methods(http.MethodPost)
	admin.HandleFunc("/assets/{id}/reject", h.rejectAsset).Methods(http.MethodPost)
	admin.HandleFunc("/applications", h.listApplications).Methods(http.MethodGet)
	admin.HandleFunc("/applications/{id}/approve", h.approveApplication).Methods(http.MethodPost)
	admin.HandleFunc("/applications/{id}/reject", h.rejectApplication).Methods(http.MethodPost)
	admin.HandleFunc("/contributors/{id}/tier", h.setContributorTier).Methods(http.MethodPut)
	admin.HandleFunc("/plans", h.createPlan).Methods(http.MethodPost)
	admin.HandleFunc("/plans/{id}/discounts", h.addDiscountWindow).Methods(http.MethodPost)
	admin.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth ---

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerr.Validation("invalid request body"))
		return
	}
	if h.auth == nil {
		writeError(w, svcerr.Dependency("sign-in is not configured", nil))
		return
	}

	userID, err := h.auth.VerifyToken(r.Context(), payload.AccessToken)
	if err != nil {
		h.log.WithError(err).Info("token verification failed")
		writeError(w, svcerr.Unauthenticated("invalid access token"))
		return
	}

	token, sess, err := h.app.Sessions.Issue(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": sess.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	if token := bearerOrCookie(r); token != "" {
		if err := h.app.Sessions.Revoke(r.Context(), token); err != nil {
			h.log.WithError(err).Warn("session revoke failed")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- catalog ---

func (h *handler) listApprovedAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.app.Catalog.ListApproved(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *handler) getAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.app.Catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) submitAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title       string `json:"title"`
		Kind        string `json:"kind"`
		StoragePath string `json:"storage_path"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerr.Validation("invalid request body"))
		return
	}
	a, err := h.app.Catalog.Submit(r.Context(), middleware.GetUserID(r.Context()), payload.Title, asset.Kind(payload.Kind), payload.StoragePath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *handler) listMyAssets(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, svcerr.Unauthenticated(""))
		return
	}
	assets, err := h.app.Catalog.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *handler) listPendingAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.app.Catalog.ListPending(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// --- moderation ---

func (h *handler) approveAsset(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]
	a, err := h.app.Moderation.Approve(r.Context(), middleware.GetUserID(r.Context()), assetID)
	metrics.RecordModerationDecision("approve", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Asset approved",
		"asset_id": a.ID,
	})
}

func (h *handler) rejectAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerr.Validation("invalid request body"))
		return
	}
	assetID := mux.Vars(r)["id"]
	a, err := h.app.Moderation.Reject(r.Context(), middleware.GetUserID(r.Context()), assetID, payload.Reason)
	metrics.RecordModerationDecision("reject", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Asset rejected",
		"asset_id": a.ID,
	})
}

// --- contributors ---

func (h *handler) applyContributor(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message      string `json:"message"`
		PortfolioURL string `json:"portfolio_url"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerr.Validation("invalid request body"))
		return
	}
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, svcerr.Unauthenticated(""))
		return
	}

	p, err := h.app.Contributors.Apply(r.Context(), userID, payload.Message, payload.PortfolioURL)
	if errors.Is(err, contributors.ErrAlreadyPending) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"pending": true,
			"message": "application already submitted",
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"pending": true,
		"profile": p,
	})
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.app.Contributors.ListPending(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *handler) approveApplication(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Contributors.ApproveApplication(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) rejectApplication(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Contributors.RejectApplication(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) setContributorTier(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tier string `json:"tier"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerr.Validation("invalid request body"))
		return
	}
	p, err := h.app.Contributors.SetTier(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], profile.Tier(payload.Tier))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- notifications ---

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, svcerr.Unauthenticated(""))
		return
	}
	items, err := h.app.Notifications.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, svcerr.Unauthenticated(""))
		return
	}
	if err := h.app.Notifications.MarkRead(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- plans and subscriptions ---

func (h *handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.app.Subscriptions.ListPlans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *handler) createPlan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name          string `json:"name"`
		PriceCents    int64  `json:"price_cents"`
		Interval      string `json:"interval"`
		DownloadLimit int    `json:"download_limit"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerr.Validation("invalid request body"))
		return
	}
	created, err := h.app.Subscriptions.CreatePlan(r.Context(), middleware.GetUserID(r.Context()), payload.Name, payload.PriceCents, plan.Interval(payload.Interval), payload.DownloadLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) addDiscountWindow(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Percent  int       `json:"percent"`
		StartsAt time.Time `json:"starts_at"`
		EndsAt   time.Time `json:"ends_at"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerr.Validation("invalid request body"))
		return
	}
	window, err := h.app.Subscriptions.AddDiscountWindow(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], payload.Percent, payload.StartsAt, payload.EndsAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, window)
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PlanID string `json:"plan_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerr.Validation("invalid request body"))
		return
	}
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, svcerr.Unauthenticated(""))
		return
	}
	sub, err := h.app.Subscriptions.Subscribe(r.Context(), userID, payload.PlanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *handler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, svcerr.Unauthenticated(""))
		return
	}
	if err := h.app.Subscriptions.Cancel(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- audit ---

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, svcerr.Validation("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.app.Audit.List(limit))
}

// --- helpers ---

func bearerOrCookie(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	if cookie, err := r.Cookie(middleware.TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps the service error taxonomy onto HTTP. Unknown errors
// stay opaque.
func writeError(w http.ResponseWriter, err error) {
	se := svcerr.GetServiceError(err)
	if se == nil {
		se = svcerr.Dependency("", err)
	}
	payload := map[string]interface{}{
		"error":  se.Message,
		"status": se.HTTPStatus,
	}
	if len(se.Details) > 0 {
		payload["details"] = se.Details
	}
	writeJSON(w, se.HTTPStatus, payload)
}
