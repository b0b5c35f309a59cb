package handlers

import (
	"github.com/Aidin1998/catalogue/api/responses"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/internal/data"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/gin-gonic/gin"
)

type pageQuery struct {
	Page int `form:"page" binding:"omitempty,min=1"`
	Size int `form:"size" binding:"omitempty,min=1,max=500"`
}

// Collections lists the collections the viewer may read
func (h *Handler) Collections(c *gin.Context) {
	collections, err := h.data.Collections(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, "collections.html", gin.H{"collections": collections})
}

// Collection shows one collection and a page of its visible records
func (h *Handler) Collection(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, errors.Invalid.Explain("invalid page request").Wrap(err))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Size == 0 {
		q.Size = data.DefaultPageSize
	}

	ctx := c.Request.Context()
	collection, err := h.data.Collection(ctx, auth.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	records, err := h.data.CollectionRecords(ctx, collection, q.Page, q.Size)
	if err != nil {
		h.fail(c, err)
		return
	}

	responses.Success(c, "collection.html", gin.H{
		"collection": collection,
		"records":    records.Items,
		"pagination": responses.CreatePaginationMeta(records.Page, records.Size, records.Total),
	})
}

// Record shows a record with its media and field values
func (h *Handler) Record(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	view, err := h.data.RecordView(c.Request.Context(), auth.CurrentUser(c), id, c.Query("fieldset"))
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, "record.html", view)
}
