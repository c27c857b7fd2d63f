package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ktindi/document-pipeline-api/internal/auth"
	"github.com/ktindi/document-pipeline-api/internal/models"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

type AuthHandler struct {
	auth   *auth.Service
	logger *utils.Logger
}

func NewAuthHandler(authService *auth.Service, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		logger: logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, utils.NewBadRequestError("Invalid request body"))
		return
	}

	if !h.auth.Authenticate(req.Username, req.Password) {
		h.respondError(w, utils.NewUnauthorizedError("Invalid credentials"))
		return
	}

	token, err := h.auth.CreateToken(req.Username)
	if err != nil {
		h.logger.Error("Failed to create token", "error", err)
		h.respondError(w, utils.NewInternalError("Failed to create token"))
		return
	}

	h.respondJSON(w, http.StatusOK, models.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

func (h *AuthHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *AuthHandler) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch e := err.(type) {
	case *utils.AppError:
		status = e.StatusCode
		message = e.Message
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
