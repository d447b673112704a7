// Package handler exposes the fraud engine over HTTP: internal event
// ingestion from the auth service and the operator-facing admin API.
package handler

import (
	"encoding/json"
	"net/http"

	"refnet/internal/domain"
	"refnet/internal/fraud"
	"refnet/internal/middleware"
	"refnet/pkg/cache"
	"refnet/pkg/config"
	"refnet/pkg/errors"
	"refnet/pkg/logger"
	"refnet/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const dashboardCacheKey = "fraud:dashboard_stats"

type FraudHandler struct {
	service   *fraud.Service
	validator *validator.Validator
	cache     *cache.RedisCache
	cfg       config.FraudConfig
	logger    logger.Logger
}

func NewFraudHandler(service *fraud.Service, val *validator.Validator, c *cache.RedisCache, cfg config.FraudConfig, log logger.Logger) *FraudHandler {
	return &FraudHandler{service: service, validator: val, cache: c, cfg: cfg, logger: log}
}

// LoginSuccessRequest is posted by the auth service after each successful
// login.
type LoginSuccessRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	IPAddress string `json:"ip_address" validate:"required"`
	UserAgent string `json:"user_agent"`
}

// LoginSuccess accepts the event and responds before any fraud work runs.
func (h *FraudHandler) LoginSuccess(w http.ResponseWriter, r *http.Request) {
	var req LoginSuccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	h.service.OnLoginSuccess(userID, req.IPAddress, req.UserAgent)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// LoginFailureRequest is posted by the auth service on failed attempts.
type LoginFailureRequest struct {
	Email     string `json:"email" validate:"required,email"`
	IPAddress string `json:"ip_address" validate:"required"`
	UserAgent string `json:"user_agent"`
	Reason    string `json:"reason" validate:"required"`
}

func (h *FraudHandler) LoginFailure(w http.ResponseWriter, r *http.Request) {
	var req LoginFailureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	h.service.OnLoginFailure(req.Email, req.IPAddress, req.UserAgent, req.Reason)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Dashboard serves the operator rollups, cached for a short TTL.
func (h *FraudHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		var cached domain.DashboardStats
		if err := h.cache.Get(r.Context(), dashboardCacheKey, &cached); err == nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch dashboard stats")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), dashboardCacheKey, stats, h.cfg.DashboardCacheTTL); err != nil {
			h.logger.Warn("failed to cache dashboard stats", map[string]interface{}{"error": err.Error()})
		}
	}
	respondJSON(w, http.StatusOK, stats)
}

// RelatedAccounts serves the shared-IP/shared-device graph for one user.
func (h *FraudHandler) RelatedAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	related, err := h.service.FindRelatedAccounts(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to find related accounts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"related": related,
	})
}

// UserProfile serves the review view of one account.
func (h *FraudHandler) UserProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.service.UserProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch user profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// Rules lists the configured fraud rules.
func (h *FraudHandler) Rules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.Rules(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch fraud rules")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

// Score recomputes the user's risk score on demand.
func (h *FraudHandler) Score(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	assessment, err := h.service.CalculateRiskScore(r.Context(), userID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to calculate risk score")
		return
	}
	respondJSON(w, http.StatusOK, assessment)
}

// FlagRequest is the admin flag action body.
type FlagRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

func (h *FraudHandler) Flag(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := h.validator.ValidateStructured(req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	reviewer := reviewerFromContext(r)
	if err := h.service.FlagUser(r.Context(), userID, validator.Sanitize(req.Reason), reviewer); err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to flag user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "flagged"})
}

// UnflagRequest is the admin unflag action body.
type UnflagRequest struct {
	Notes *string `json:"notes"`
}

func (h *FraudHandler) Unflag(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UnflagRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	reviewer := reviewerFromContext(r)
	if err := h.service.UnflagUser(r.Context(), userID, reviewer, req.Notes); err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to unflag user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "unflagged"})
}

// Alerts lists fraud alerts, filterable by ?status=pending|resolved.
func (h *FraudHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	status := domain.AlertStatus(r.URL.Query().Get("status"))
	if status != "" && status != domain.AlertStatusPending && status != domain.AlertStatusResolved {
		respondError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	limit, offset := parsePagination(r)
	alerts, total, err := h.service.Alerts(r.Context(), status, limit, offset)
	if err != nil {
		if errors.Is(err, errors.ErrSchemaNotProvisioned) {
			respondJSON(w, http.StatusOK, map[string]interface{}{"alerts": []domain.FraudAlert{}, "total": 0})
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch alerts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  total,
	})
}

// SecurityEvents lists the flag/unflag audit trail.
func (h *FraudHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	events, total, err := h.service.SecurityEvents(r.Context(), limit, offset)
	if err != nil {
		if errors.Is(err, errors.ErrSchemaNotProvisioned) {
			respondJSON(w, http.StatusOK, map[string]interface{}{"events": []domain.SecurityEvent{}, "total": 0})
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch security events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return uuid.Nil, false
	}
	return id, true
}

func reviewerFromContext(r *http.Request) string {
	if adminID, ok := middleware.UserIDFromContext(r.Context()); ok {
		return adminID.String()
	}
	return fraud.SystemReviewer
}
