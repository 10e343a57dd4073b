package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/berrihq/berri-api/internal/dto"
	"github.com/berrihq/berri-api/internal/models"
	"github.com/berrihq/berri-api/internal/service"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
	"github.com/berrihq/berri-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, input service.LoginInput) (string, *models.User, error)
}

// AuthHandler serves the login endpoint.
type AuthHandler struct {
	service authService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "auth service not configured"))
		return
	}
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid login payload"))
		return
	}
	token, user, err := h.service.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "user": user}, nil)
}
