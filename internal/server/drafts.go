package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"optipress/internal/diff"
	"optipress/internal/search"
	"optipress/internal/store"
)

type DraftsHandler struct {
	Store *store.Store
	Index *search.Index
}

func (h *DraftsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.GET("/:id/diff", h.diff)
}

func (h *DraftsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListDrafts(c.Request().Context(), userID, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *DraftsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req DraftCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	d, err := h.Store.CreateDraft(c.Request().Context(), store.Draft{
		UserID:       userID,
		Title:        req.Title,
		OriginalBody: req.OriginalBody,
		ReauditCron:  req.ReauditCron,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.Index != nil {
		_ = h.Index.IndexDraft(d)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": d.ID})
}

func (h *DraftsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	d, ok, err := h.Store.GetDraft(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "draft not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DraftsHandler) update(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id := c.Param("id")
	var req DraftUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.Store.UpdateDraftBodies(c.Request().Context(), id, userID, req.OriginalBody, req.OptimizedBody); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if h.Index != nil {
		if d, ok, err := h.Store.GetDraft(c.Request().Context(), id, userID); err == nil && ok {
			_ = h.Index.IndexDraft(d)
		}
	}
	return c.NoContent(http.StatusOK)
}

// diff renders the original vs optimized body side by side. The
// granularity query parameter selects line or word tokens.
func (h *DraftsHandler) diff(c echo.Context) error {
	userID := c.Get("user_id").(string)
	d, ok, err := h.Store.GetDraft(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "draft not found")
	}
	granularity := diff.Granularity(c.QueryParam("granularity"))
	if granularity == "" {
		granularity = diff.GranularityLine
	}
	view, err := diff.Present(d.OriginalBody, d.OptimizedBody, granularity)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}
