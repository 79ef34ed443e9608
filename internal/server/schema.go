package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"optipress/internal/schemaorg"
	"optipress/internal/store"
)

type SchemaHandler struct {
	Store     *store.Store
	Generator schemaorg.Generator
	SiteName  string
}

func (h *SchemaHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/:id/schema/generate", h.generate)
	g.POST("/:id/schema/approve", h.approve)
}

func (h *SchemaHandler) ownedDraft(c echo.Context) (store.Draft, error) {
	userID := c.Get("user_id").(string)
	d, ok, err := h.Store.GetDraft(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return store.Draft{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return store.Draft{}, echo.NewHTTPError(http.StatusNotFound, "draft not found")
	}
	return d, nil
}

// generate produces JSON-LD for a draft, stores it unapproved and
// returns it alongside the structural check so the caller can review
// before approving.
func (h *SchemaHandler) generate(c echo.Context) error {
	d, err := h.ownedDraft(c)
	if err != nil {
		return err
	}
	var req SchemaGenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ContentType) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content_type required")
	}
	body := d.OptimizedBody
	if body == "" {
		body = d.OriginalBody
	}
	payload, err := h.Generator.Generate(c.Request().Context(), d.Permalink, req.ContentType, body, req.AcceptedEntities, h.SiteName)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	check, err := schemaorg.Validate(payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "generated structured data is not valid JSON: "+err.Error())
	}
	if err := h.Store.UpsertSchemaDraft(c.Request().Context(), d.ID, req.ContentType, payload, false); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"payload": payload,
		"check":   check,
	})
}

// approve marks a reviewed payload as the one publish may embed. Only
// structurally valid JSON-LD can be approved.
func (h *SchemaHandler) approve(c echo.Context) error {
	d, err := h.ownedDraft(c)
	if err != nil {
		return err
	}
	var req SchemaApproveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ContentType) == "" || strings.TrimSpace(req.Payload) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content_type and payload required")
	}
	check, err := schemaorg.Validate(req.Payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "payload is not valid JSON: "+err.Error())
	}
	if !check.Valid {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "structured data failed validation",
			"issues": check.Issues,
		})
	}
	if err := h.Store.UpsertSchemaDraft(c.Request().Context(), d.ID, req.ContentType, req.Payload, true); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}
