package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"optipress/internal/anchor"
	"optipress/internal/publisher"
	"optipress/internal/store"
	"optipress/internal/telemetry"
	"optipress/internal/verify"
)

type PublishHandler struct {
	Store     *store.Store
	Publisher publisher.Publisher
	Verifier  *verify.Verifier
	Metrics   *telemetry.Metrics
	SiteName  string
	Logger    *log.Logger
}

func (h *PublishHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/:id/publish", h.publish)
	g.GET("/:id/impacts", h.impacts)
}

// publish anchors pending citations, pushes the draft to the CMS and
// kicks off background verification. Publishing failures surface to
// the caller; verification failures never do.
func (h *PublishHandler) publish(c echo.Context) error {
	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()

	d, ok, err := h.Store.GetDraft(ctx, c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "draft not found")
	}

	var req PublishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	source := verify.SchemaSource(req.SchemaSource)
	switch source {
	case "", verify.SchemaNone:
		source = verify.SchemaNone
	case verify.SchemaInserted, verify.SchemaGenerated:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown schema_source %q", req.SchemaSource))
	}

	body := d.OptimizedBody
	if body == "" {
		body = d.OriginalBody
	}

	citations, err := h.Store.ListCitations(ctx, d.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	body, resolved := anchor.InsertAnchors(body, unusedCitations(citations))
	if req.AppendReferences {
		all := append(resolved, usedCitations(citations)...)
		body = anchor.AppendReferences(body, all)
	}

	var schemaDraft string
	if source == verify.SchemaInserted {
		payload, found, err := h.Store.GetApprovedSchemaDraft(ctx, d.ID, req.ContentType)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !found {
			return echo.NewHTTPError(http.StatusConflict, "no approved structured data for draft")
		}
		schemaDraft = payload
		body += "\n<script type=\"application/ld+json\">" + payload + "</script>"
	}

	res, err := h.Publisher.Publish(ctx, d.Title, body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if h.Metrics != nil {
		h.Metrics.PublishesTotal.Inc()
	}

	if err := h.Store.UpdateDraftBodies(ctx, d.ID, userID, d.OriginalBody, body); err != nil {
		h.Logger.Printf("persist body %s: %v", d.ID, err)
	}
	if err := h.Store.SaveCitationUsage(ctx, d.ID, resolved); err != nil {
		h.Logger.Printf("persist citation usage %s: %v", d.ID, err)
	}
	if err := h.Store.SetDraftPublished(ctx, d.ID, res.Permalink, time.Now().UTC()); err != nil {
		h.Logger.Printf("persist permalink %s: %v", d.ID, err)
	}
	if req.ReauditCron != "" {
		if err := h.Store.SetDraftReauditCron(ctx, d.ID, userID, req.ReauditCron); err != nil {
			h.Logger.Printf("persist reaudit cron %s: %v", d.ID, err)
		}
	}

	params := verify.Params{
		UserID:           userID,
		DraftID:          d.ID,
		SchemaSource:     source,
		SchemaDraft:      schemaDraft,
		ContentType:      req.ContentType,
		AcceptedEntities: req.AcceptedEntities,
		SiteName:         h.SiteName,
		Body:             body,
		PreScore:         d.Score,
		PreURL:           req.PreviewURL,
		Permalink:        res.Permalink,
	}
	go h.Verifier.VerifyAfterPublish(context.Background(), params)

	return c.JSON(http.StatusAccepted, PublishResponse{PostID: res.ID, Permalink: res.Permalink})
}

func (h *PublishHandler) impacts(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListImpacts(c.Request().Context(), userID, c.Param("id"), 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func usedCitations(citations []anchor.Citation) []anchor.Citation {
	var out []anchor.Citation
	for _, c := range citations {
		if c.Used {
			out = append(out, c)
		}
	}
	return out
}
