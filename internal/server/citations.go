package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"optipress/internal/anchor"
	"optipress/internal/store"
)

type CitationsHandler struct {
	Store *store.Store
}

func (h *CitationsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/:id/citations", h.list)
	g.POST("/:id/citations", h.add)
	g.DELETE("/:id/citations/:cid", h.remove)
	g.POST("/:id/citations/preview", h.preview)
}

func (h *CitationsHandler) ownedDraft(c echo.Context) (store.Draft, error) {
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

func (h *CitationsHandler) list(c echo.Context) error {
	d, err := h.ownedDraft(c)
	if err != nil {
		return err
	}
	items, err := h.Store.ListCitations(c.Request().Context(), d.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CitationsHandler) add(c echo.Context) error {
	d, err := h.ownedDraft(c)
	if err != nil {
		return err
	}
	var req CitationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url required")
	}
	cit, err := h.Store.AddCitation(c.Request().Context(), d.ID, anchor.Citation{
		Title:      req.Title,
		URL:        req.URL,
		AnchorText: req.AnchorText,
		NoFollow:   req.NoFollow,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, cit)
}

func (h *CitationsHandler) remove(c echo.Context) error {
	d, err := h.ownedDraft(c)
	if err != nil {
		return err
	}
	if err := h.Store.DeleteCitation(c.Request().Context(), d.ID, c.Param("cid")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

// preview runs anchor insertion over the optimized body without
// persisting anything, so the caller can review placements.
func (h *CitationsHandler) preview(c echo.Context) error {
	d, err := h.ownedDraft(c)
	if err != nil {
		return err
	}
	var req AnchorPreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	citations, err := h.Store.ListCitations(c.Request().Context(), d.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	body := d.OptimizedBody
	if body == "" {
		body = d.OriginalBody
	}
	pending := unusedCitations(citations)
	updated, resolved := anchor.InsertAnchors(body, pending)
	if req.AppendReferences {
		updated = anchor.AppendReferences(updated, resolved)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"content":   updated,
		"citations": resolved,
	})
}

// unusedCitations filters out citations already anchored so repeated
// runs do not produce nested links.
func unusedCitations(citations []anchor.Citation) []anchor.Citation {
	var out []anchor.Citation
	for _, c := range citations {
		if !c.Used {
			out = append(out, c)
		}
	}
	return out
}
