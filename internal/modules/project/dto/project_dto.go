package dto

import "kmbp.app/ratingbot/internal/entity"

type ProjectCard struct {
	entity.Project
	PhotoFileID     string `json:"-"`
	ImageURL        string `json:"image_url,omitempty"`
	DescriptionHTML string `json:"description_html,omitempty"`
}

// ProjectPage is one batch of a category listing. NextOffset is only
// meaningful when HasMore is set.
type ProjectPage struct {
	Category   string        `json:"category"`
	Items      []ProjectCard `json:"items"`
	Total      int64         `json:"total"`
	Offset     int           `json:"offset"`
	PageSize   int           `json:"page_size"`
	HasMore    bool          `json:"has_more"`
	NextOffset int           `json:"next_offset"`
	First      bool          `json:"first"`
}

// ShownRange returns the 1-based bounds of the page inside the category.
func (p *ProjectPage) ShownRange() (from, to int) {
	return p.Offset + 1, p.Offset + len(p.Items)
}

type PageQuery struct {
	Category string `form:"category"`
	Offset   int    `form:"offset" binding:"min=0"`
}
