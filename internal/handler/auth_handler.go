package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomodoro/daemon/internal/apperr"
	"pomodoro/daemon/internal/service"
)

// AuthHandler serves the account endpoints. The daemon holds a single
// local account: Register provisions it exactly once and conflicts ever
// after, Login issues the bearer token every timer trigger requires.
type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func bindCredentials(c *gin.Context) (credentials, bool) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		writeError(c, apperr.BadRequest("invalid_json", "invalid request body"))
		return credentials{}, false
	}
	return creds, true
}

func (h *AuthHandler) Register(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		return
	}

	result, apiErr := h.authService.Register(c.Request.Context(), creds.Email, creds.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		return
	}

	result, apiErr := h.authService.Login(c.Request.Context(), creds.Email, creds.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, result)
}
