package handlers

import (
	"net/http"

	"github.com/Aidin1998/catalogue/api/responses"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/internal/data"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const editTemplate = "record_edit.html"

type editContext struct {
	Owner      string `json:"owner"`
	Collection string `json:"collection"`
	Label      string `json:"label"`
}

type editPage struct {
	Record   *models.Record        `json:"record"`
	Context  editContext           `json:"context"`
	ReadOnly []models.FieldValue   `json:"readonly"`
	Forms    []data.FieldValueForm `json:"forms"`
	Fields   []data.FieldGroup     `json:"fields"`
	Errors   map[string]string     `json:"errors,omitempty"`
	// Prefix names the formset fields, e.g. fv-0-value.
	Prefix string `json:"prefix"`
}

type editRequest struct {
	OverrideValues bool                  `json:"override_values"`
	Override       []string              `json:"override"`
	Forms          []data.FieldValueForm `json:"forms"`
}

func editParams(c *gin.Context) (owner, collection string) {
	return c.Param("owner"), c.Param("collection")
}

func newEditPage(view *data.EditView, forms []data.FieldValueForm) *editPage {
	return &editPage{
		Record: view.Record,
		Context: editContext{
			Owner:      view.Context.OwnerName(),
			Collection: view.Context.CollectionName(),
			Label:      view.Context.Label(),
		},
		ReadOnly: view.ReadOnly,
		Forms:    forms,
		Fields:   view.Fields,
		Prefix:   data.FormPrefix,
	}
}

// EditRecord shows the field value editor of a record in the requested context
func (h *Handler) EditRecord(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	owner, collection := editParams(c)

	view, err := h.data.EditView(c.Request.Context(), auth.CurrentUser(c), id, owner, collection)
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, editTemplate, newEditPage(view, initialForms(view.Values)))
}

// SaveRecord either overrides global values in the context or saves the field value
// formset, then redirects back to the editor
func (h *Handler) SaveRecord(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	owner, collection := editParams(c)
	ctx := c.Request.Context()
	viewer := auth.CurrentUser(c)

	var req editRequest
	if isJSON(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, errors.Invalid.Explain("malformed request body").Wrap(err))
			return
		}
	} else {
		_, req.OverrideValues = c.GetPostForm("override_values")
		if req.OverrideValues {
			req.Override = c.PostFormArray("override")
		} else if req.Forms, err = bindFormset(c); err != nil {
			h.formsetInvalid(c, id, owner, collection, req.Forms, err)
			return
		}
	}

	if req.OverrideValues {
		ids, err := parseIDs("override", req.Override)
		if err != nil {
			h.fail(c, err)
			return
		}
		if err := h.data.OverrideValues(ctx, viewer, id, owner, collection, ids); err != nil {
			h.fail(c, err)
			return
		}
		responses.SeeOther(c, c.Request.URL.Path)
		return
	}

	if err := h.data.SaveFieldValues(ctx, viewer, id, owner, collection, req.Forms); err != nil {
		h.formsetInvalid(c, id, owner, collection, req.Forms, err)
		return
	}
	responses.SeeOther(c, c.Request.URL.Path)
}

// formsetInvalid re-renders the editor with the submitted forms for browsers.
func (h *Handler) formsetInvalid(c *gin.Context, id uuid.UUID, owner, collection string, forms []data.FieldValueForm, err error) {
	if !errors.Is(err, errors.Invalid) || !responses.WantsHTML(c) {
		h.fail(c, err)
		return
	}
	view, viewErr := h.data.EditView(c.Request.Context(), auth.CurrentUser(c), id, owner, collection)
	if viewErr != nil {
		h.fail(c, viewErr)
		return
	}
	page := newEditPage(view, forms)
	page.Errors = responses.FieldErrors(err)
	responses.Render(c, http.StatusBadRequest, editTemplate, page)
}
