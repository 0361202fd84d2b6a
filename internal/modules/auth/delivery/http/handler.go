package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"kmbp.app/ratingbot/internal/modules/auth/dto"
	authService "kmbp.app/ratingbot/internal/modules/auth/service"
	"kmbp.app/ratingbot/pkg/response"
)

type AuthHandler struct {
	service authService.AuthService
}

func NewAuthHandler(service authService.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
