package handlers

import (
	"context"
	"net/http"

	"github.com/Aidin1998/catalogue/api/responses"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/internal/presentation"
	"github.com/Aidin1998/catalogue/internal/session"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const selectedTemplate = "selected.html"

// SelectedPath is the page listing the session's selected records.
const SelectedPath = "/data/selected"

type selectionRequest struct {
	IDs []string `form:"record" json:"ids" binding:"required,min=1"`
}

type selectedPage struct {
	Selected []uuid.UUID           `json:"selected"`
	Records  []models.Record       `json:"records"`
	Choices  []presentation.Choice `json:"choices"`
	Form     presentation.AddForm  `json:"form"`
	Errors   map[string]string     `json:"errors,omitempty"`
}

func (h *Handler) selectedPage(c *gin.Context, form presentation.AddForm) (*selectedPage, error) {
	ctx := c.Request.Context()
	viewer := auth.CurrentUser(c)

	ids, err := h.selections.Selected(ctx, session.ID(c))
	if err != nil {
		return nil, err
	}
	records, err := h.data.SelectedRecords(ctx, viewer, ids)
	if err != nil {
		return nil, err
	}

	page := &selectedPage{Selected: ids, Records: records, Form: form}
	if viewer != nil {
		if page.Choices, err = h.presentations.Choices(ctx, viewer); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// Selected shows the selected records and the add-to-presentation form
func (h *Handler) Selected(c *gin.Context) {
	page, err := h.selectedPage(c, presentation.AddForm{})
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, selectedTemplate, page)
}

// AddSelectedToPresentation appends the selected records to the chosen presentation
// and redirects to its editor
func (h *Handler) AddSelectedToPresentation(c *gin.Context) {
	var form presentation.AddForm
	if err := c.ShouldBind(&form); err != nil {
		h.fail(c, errors.Invalid.Explain("invalid form").Wrap(err))
		return
	}

	page, err := h.selectedPage(c, form)
	if err != nil {
		h.fail(c, err)
		return
	}

	p, err := h.presentations.AddRecords(c.Request.Context(), auth.CurrentUser(c), form, page.Records)
	if err != nil {
		if errors.Is(err, errors.Invalid) && responses.WantsHTML(c) {
			page.Errors = responses.FieldErrors(err)
			responses.Render(c, http.StatusBadRequest, selectedTemplate, page)
			return
		}
		h.fail(c, err)
		return
	}
	responses.SeeOther(c, p.EditURL())
}

// SelectRecords adds records to the session's selection
func (h *Handler) SelectRecords(c *gin.Context) {
	h.changeSelection(c, h.selections.Add)
}

// DeselectRecords removes records from the session's selection
func (h *Handler) DeselectRecords(c *gin.Context) {
	h.changeSelection(c, h.selections.Remove)
}

// ClearSelection empties the session's selection
func (h *Handler) ClearSelection(c *gin.Context) {
	if err := h.selections.Clear(c.Request.Context(), session.ID(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.selectionChanged(c)
}

func (h *Handler) changeSelection(c *gin.Context, apply func(ctx context.Context, sessionID string, ids ...uuid.UUID) error) {
	var req selectionRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, errors.Invalid.Explain("no records given").
			WithField("required", "record", "This field is required."))
		return
	}
	ids, err := parseIDs("record", req.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := apply(c.Request.Context(), session.ID(c), ids...); err != nil {
		h.fail(c, err)
		return
	}
	h.selectionChanged(c)
}

// selectionChanged sends browsers back to the selection page and answers API clients
// with the current selection.
func (h *Handler) selectionChanged(c *gin.Context) {
	if responses.WantsHTML(c) {
		responses.SeeOther(c, SelectedPath)
		return
	}
	ids, err := h.selections.Selected(c.Request.Context(), session.ID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	responses.Success(c, selectedTemplate, gin.H{"selected": ids})
}
