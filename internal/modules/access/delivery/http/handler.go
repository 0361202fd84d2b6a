package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"kmbp.app/ratingbot/internal/entity"
	accessService "kmbp.app/ratingbot/internal/modules/access/service"
	commonDto "kmbp.app/ratingbot/pkg/dto"
	"kmbp.app/ratingbot/pkg/response"
)

type BanHandler struct {
	service accessService.AccessService
}

func NewBanHandler(service accessService.AccessService) *BanHandler {
	return &BanHandler{service: service}
}

func (h *BanHandler) GetBans(c *gin.Context) {
	bans, err := h.service.List(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, commonDto.ListResponse[entity.BannedUser]{Data: bans})
}

func (h *BanHandler) Unban(c *gin.Context) {
	var param commonDto.UserIDParam
	if err := c.ShouldBindUri(&param); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	if err := h.service.Unban(c.Request.Context(), param.UserID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user unbanned"})
}
