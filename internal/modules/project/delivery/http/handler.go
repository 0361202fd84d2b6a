package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"kmbp.app/ratingbot/internal/entity"
	projectDto "kmbp.app/ratingbot/internal/modules/project/dto"
	projectService "kmbp.app/ratingbot/internal/modules/project/service"
	commonDto "kmbp.app/ratingbot/pkg/dto"
	"kmbp.app/ratingbot/pkg/response"
	"kmbp.app/ratingbot/pkg/sanitizer"
)

type ProjectHandler struct {
	service projectService.ProjectService
}

func NewProjectHandler(service projectService.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// GetProjects lists every project by score. With ?category= it returns one
// page of that category, batched exactly like the chat listing.
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	var query projectDto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	if query.Category == "" {
		projects, err := h.service.ListAll(c.Request.Context())
		if err != nil {
			response.ResponseError(c, err)
			return
		}
		c.JSON(http.StatusOK, commonDto.ListResponse[entity.Project]{Data: projects})
		return
	}

	page, err := h.service.ListPage(c.Request.Context(), query.Category, query.Offset)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.ListResponse[projectDto.ProjectCard]{
		Data: page.Items,
		Meta: &commonDto.PaginationMeta{
			Offset:  page.Offset,
			Limit:   page.PageSize,
			Total:   page.Total,
			HasMore: page.HasMore,
		},
	})
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	var param commonDto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		response.ResponseBindError(c, err)
		return
	}

	card, err := h.service.Get(c.Request.Context(), param.ID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	card.DescriptionHTML = sanitizer.Markdown(card.Description)

	c.JSON(http.StatusOK, gin.H{"data": card})
}
