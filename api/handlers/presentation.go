package handlers

import (
	"github.com/Aidin1998/catalogue/api/responses"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/gin-gonic/gin"
)

// EditPresentation lists the items of a presentation the viewer may write
func (h *Handler) EditPresentation(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	p, items, err := h.presentations.Presentation(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, "presentation_edit.html", gin.H{
		"presentation": p,
		"items":        items,
	})
}
