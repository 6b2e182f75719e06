package fiber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
	"view-analytics-service/internal/analytics/core/usecase"
	"view-analytics-service/internal/platform/logger"

	"github.com/gofiber/fiber/v2"
)

type QueryUseCase interface {
	Grouped(ctx context.Context, in usecase.GroupedInput) ([]domain.Row, error)
	Top(ctx context.Context, in usecase.TopInput) ([]domain.Row, error)
	Performance(ctx context.Context, in usecase.PerformanceInput) ([]domain.Row, error)
}

type AnalyticsHandler struct {
	uc  QueryUseCase
	log logger.Logger
}

func NewAnalyticsHandler(uc QueryUseCase, log logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{uc: uc, log: log}
}

// RegisterRoutes mounts the analytics endpoints on r.
func (h *AnalyticsHandler) RegisterRoutes(r fiber.Router) {
	g := r.Group("/analytics")
	g.Post("/blog-views/:by", h.GroupedViews)
	g.Post("/top/:kind", h.Top)
	g.Post("/performance", h.Performance)
}

// GroupedViews godoc
// @Summary Blog views grouped by country or author
// @Description x is the group, y the number of blogs and z the number of views. The summary source counts blogs once per day.
// @Tags Analytics
// @Accept json
// @Produce json
// @Param by path string true "Group by: country | author"
// @Param source query string false "Data source: summary | raw"
// @Param request body QueryRequest false "Filter payload"
// @Success 200 {array} RowResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/blog-views/{by} [post]
func (h *AnalyticsHandler) GroupedViews(c *fiber.Ctx) error {
	req, where, err := parseQuery(c)
	if err != nil {
		return h.writeError(c, err)
	}

	rows, err := h.uc.Grouped(c.UserContext(), usecase.GroupedInput{
		By:     c.Params("by"),
		Source: firstNonEmpty(c.Query("source"), req.Source),
		Filter: where,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(http.StatusOK).JSON(rows)
}

// Top godoc
// @Summary Top blogs, authors or countries by views
// @Description x is the entity, y its views and z the distinct countries (blogs) or distinct blogs (authors, countries)
// @Tags Analytics
// @Accept json
// @Produce json
// @Param kind path string true "Entity: blog | author | country"
// @Param limit query int false "Number of rows (1-100, default 10)"
// @Param request body QueryRequest false "Filter payload"
// @Success 200 {array} RowResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/top/{kind} [post]
func (h *AnalyticsHandler) Top(c *fiber.Ctx) error {
	req, where, err := parseQuery(c)
	if err != nil {
		return h.writeError(c, err)
	}

	limit := req.Limit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_parameter",
				Message: "limit must be an integer",
			})
		}
	}

	rows, err := h.uc.Top(c.UserContext(), usecase.TopInput{
		Kind:   c.Params("kind"),
		Limit:  limit,
		Filter: where,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(http.StatusOK).JSON(rows)
}

// Performance godoc
// @Summary Views over time with growth
// @Description x is the bucket start and blog count, y the views and z the growth in percent against the previous bucket (null after an empty bucket)
// @Tags Analytics
// @Accept json
// @Produce json
// @Param range query string false "Bucket: day | week | month | year | auto"
// @Param request body QueryRequest false "Filter payload"
// @Success 200 {array} RowResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analytics/performance [post]
func (h *AnalyticsHandler) Performance(c *fiber.Ctx) error {
	req, where, err := parseQuery(c)
	if err != nil {
		return h.writeError(c, err)
	}

	rows, err := h.uc.Performance(c.UserContext(), usecase.PerformanceInput{
		Range:  firstNonEmpty(c.Query("range"), req.Range),
		Filter: where,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(http.StatusOK).JSON(rows)
}

var errInvalidJSON = errors.New("request body is not a JSON object")

// parseQuery decodes the body into the flat fields and the optional tree,
// combined under AND.
func parseQuery(c *fiber.Ctx) (QueryRequest, filter.Node, error) {
	var req QueryRequest

	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return req, nil, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, nil, errInvalidJSON
	}

	tree, err := filter.ParseTree(body)
	if err != nil {
		return req, nil, err
	}
	return req, filter.AllOf(req.flat().Node(), tree), nil
}

func (h *AnalyticsHandler) writeError(c *fiber.Ctx, err error) error {
	var code string
	switch {
	case errors.Is(err, errInvalidJSON):
		code = "invalid_json"
	case errors.Is(err, filter.ErrForbiddenField):
		code = "forbidden_field"
	case errors.Is(err, filter.ErrUnknownOperator):
		code = "unknown_operator"
	case errors.Is(err, filter.ErrTypeMismatch):
		code = "type_mismatch"
	case errors.Is(err, filter.ErrTreeTooDeep):
		code = "tree_too_deep"
	case errors.Is(err, filter.ErrMalformedFilter):
		code = "malformed_filter"
	case errors.Is(err, usecase.ErrInvalidParameter):
		code = "invalid_parameter"
	default:
		h.log.Error("Analytics query failed", logger.String("path", c.Path()), logger.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: "internal_server_error",
		})
	}

	resp := ErrorResponse{Error: code}
	if code != "invalid_json" {
		resp.Message = err.Error()
	}
	return c.Status(http.StatusBadRequest).JSON(resp)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
