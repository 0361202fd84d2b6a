package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"kmbp.app/ratingbot/internal/entity"
	ledgerDto "kmbp.app/ratingbot/internal/modules/ledger/dto"
	ledgerService "kmbp.app/ratingbot/internal/modules/ledger/service"
	commonDto "kmbp.app/ratingbot/pkg/dto"
	"kmbp.app/ratingbot/pkg/response"
)

const defaultHistoryLimit = 20

type LedgerHandler struct {
	service ledgerService.LedgerService
}

func NewLedgerHandler(service ledgerService.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

func (h *LedgerHandler) GetWeeklyTop(c *gin.Context) {
	entries, err := h.service.WeeklyTop(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, commonDto.ListResponse[ledgerDto.WeeklyEntry]{Data: entries})
}

func (h *LedgerHandler) GetHistory(c *gin.Context) {
	var param commonDto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		response.ResponseBindError(c, err)
		return
	}
	var query commonDto.LimitQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseBindError(c, err)
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultHistoryLimit
	}

	history, err := h.service.History(c.Request.Context(), param.ID, query.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, commonDto.ListResponse[entity.RatingHistory]{Data: history})
}

func (h *LedgerHandler) GetStats(c *gin.Context) {
	var param commonDto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), param.ID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (h *LedgerHandler) VerifyProject(c *gin.Context) {
	var param commonDto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	result, err := h.service.Verify(c.Request.Context(), param.ID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
