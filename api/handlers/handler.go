package handlers

import (
	"github.com/Aidin1998/catalogue/api/responses"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/internal/data"
	"github.com/Aidin1998/catalogue/internal/presentation"
	"github.com/Aidin1998/catalogue/internal/session"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CookieConfig controls the cookies handlers set.
type CookieConfig struct {
	Secure bool
	// TokenMaxAge is the lifetime of the auth token cookie in seconds.
	TokenMaxAge int
}

// Handler serves the catalogue routes
type Handler struct {
	logger        *zap.Logger
	auth          *auth.Service
	data          *data.Service
	presentations *presentation.Service
	selections    session.SelectionStore
	cookies       CookieConfig
}

// New creates a Handler
func New(
	logger *zap.Logger,
	authSvc *auth.Service,
	dataSvc *data.Service,
	presSvc *presentation.Service,
	selections session.SelectionStore,
	cookies CookieConfig,
) *Handler {
	return &Handler{
		logger:        logger,
		auth:          authSvc,
		data:          dataSvc,
		presentations: presSvc,
		selections:    selections,
		cookies:       cookies,
	}
}

// pathID parses the :id parameter. A malformed id names nothing, so it is not found.
func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.NotFound.Explain("not found")
	}
	return id, nil
}

// parseIDs parses ids, reporting the first malformed one against field.
func parseIDs(field string, raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, errors.Invalid.Explain("invalid identifier").
				WithField("invalid", field, "Enter a valid UUID.")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	if status := errors.HTTPStatus(err); status >= 500 {
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	responses.Error(c, err)
}

func isJSON(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEJSON
}
