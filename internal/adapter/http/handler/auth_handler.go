package handler

import (
	"net/http"

	"github.com/iho/wagerledger/internal/domain"
	"github.com/iho/wagerledger/internal/infrastructure/auth"
)

// AuthHandler issues bearer tokens for local development. Production tokens
// come from the platform's identity provider.
type AuthHandler struct {
	jwtManager *auth.JWTManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(jwtManager *auth.JWTManager) *AuthHandler {
	return &AuthHandler{
		jwtManager: jwtManager,
	}
}

// TokenRequest represents a token request.
type TokenRequest struct {
	UserID string `json:"userId"`
}

// TokenResponse represents an issued token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IssueToken signs a token for the requested user.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := domain.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id", err.Error())
		return
	}

	token, err := h.jwtManager.Generate(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token", "")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Me returns the user the request was resolved to.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"userId": userID})
}
