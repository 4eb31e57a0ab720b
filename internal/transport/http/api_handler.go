package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"histosaga-service/internal/app"
	"histosaga-service/internal/domain"
)

// APIHandler serves the account, profile and sync endpoints.
type APIHandler struct {
	accounts   *app.AccountService
	profiles   *app.ProfileService
	reconciler *app.Reconciler
	remote     app.ConnectivitySource
	log        *zap.Logger
}

func NewAPIHandler(accounts *app.AccountService, profiles *app.ProfileService, reconciler *app.Reconciler, remote app.ConnectivitySource, log *zap.Logger) *APIHandler {
	return &APIHandler{accounts: accounts, profiles: profiles, reconciler: reconciler, remote: remote, log: log}
}

// Register mounts the routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/password-reset", h.requestReset)
	mux.HandleFunc("POST /api/password-reset/verify", h.verifyReset)
	mux.HandleFunc("POST /api/password-reset/confirm", h.confirmReset)
	mux.HandleFunc("GET /api/users/{id}/profile", h.profile)
	mux.HandleFunc("GET /api/users/{id}/subjects/{subject}/activities", h.activities)
	mux.HandleFunc("POST /api/sync", h.sync)
}

type loginRequest struct {
	Username string `json:"usuario"`
	Password string `json:"senha"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"codigo"`
}

type confirmRequest struct {
	UserID          string `json:"userId"`
	Password        string `json:"senha"`
	PasswordConfirm string `json:"confirmarSenha"`
}

type healthResponse struct {
	Status string `json:"status"`
	Remote bool   `json:"remote"`
}

func (h *APIHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Remote: h.remote.Online()})
}

func (h *APIHandler) register(w http.ResponseWriter, r *http.Request) {
	var reg app.Registration
	if !decode(w, r, &reg) {
		return
	}
	user, err := h.accounts.Register(r.Context(), reg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	userID, err := h.accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"userId": userID})
}

func (h *APIHandler) verifyReset(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.VerifyResetCode(r.Context(), req.UserID, req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.UserID, req.Password, req.PasswordConfirm); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.Profile(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) activities(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.profiles.Activities(r.Context(), r.PathValue("id"), r.PathValue("subject"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *APIHandler) sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "validation":
		var verr *domain.ValidationError
		errors.As(err, &verr)
		writeJSON(w, http.StatusUnprocessableEntity, verr)
		return
	case "not_found":
		status = http.StatusNotFound
	case "invalid_credentials":
		status = http.StatusUnauthorized
	case "reset_code", "invalid_state", "empty_activity":
		status = http.StatusBadRequest
	case "unavailable":
		status = http.StatusServiceUnavailable
	default:
		h.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorPayload{Code: code, Message: err.Error()})
}
