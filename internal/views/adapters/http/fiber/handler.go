package fiber

import (
	"context"
	"errors"
	"net/http"

	"view-analytics-service/internal/platform/logger"
	"view-analytics-service/internal/views/core/ports"
	"view-analytics-service/internal/views/core/usecase"

	"github.com/gofiber/fiber/v2"
)

type RecordViewUseCase interface {
	Execute(ctx context.Context, in usecase.RecordViewInput) error
	BulkRecord(ctx context.Context, in usecase.BulkRecordInput) (usecase.BulkRecordResult, error)
}

type ViewHandler struct {
	recordUC RecordViewUseCase
	log      logger.Logger
}

func NewViewHandler(recordUC RecordViewUseCase, log logger.Logger) *ViewHandler {
	return &ViewHandler{recordUC: recordUC, log: log}
}

// RegisterRoutes mounts the view endpoints on r.
func (h *ViewHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/views", h.RecordView)
	r.Post("/views/bulk", h.BulkRecordViews)
}

// RecordView godoc
// @Summary Record a blog view
// @Description Stores a single view event; the author is resolved from the blog
// @Tags Views
// @Accept json
// @Produce json
// @Param request body RecordViewRequest true "View payload"
// @Success 201 {object} RecordViewResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Unknown blog or country"
// @Failure 500 {object} ErrorResponse
// @Router /views [post]
func (h *ViewHandler) RecordView(c *fiber.Ctx) error {
	var req RecordViewRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid_json",
		})
	}

	if err := h.recordUC.Execute(c.UserContext(), toInput(req)); err != nil {
		return h.writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(RecordViewResponse{Status: "recorded"})
}

// BulkRecordViews godoc
// @Summary Bulk record blog views
// @Description Validates every view first, then stores them in order
// @Tags Views
// @Accept json
// @Produce json
// @Param request body BulkRecordViewsRequest true "Bulk view payload"
// @Success 201 {object} BulkRecordViewsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Unknown blog or country"
// @Failure 500 {object} ErrorResponse
// @Router /views/bulk [post]
func (h *ViewHandler) BulkRecordViews(c *fiber.Ctx) error {
	var req BulkRecordViewsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid_json",
		})
	}

	if len(req.Views) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "views_list_required",
		})
	}

	inputs := make([]usecase.RecordViewInput, len(req.Views))
	for i, v := range req.Views {
		inputs[i] = toInput(v)
	}

	result, err := h.recordUC.BulkRecord(
		c.UserContext(),
		usecase.BulkRecordInput{Views: inputs},
	)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(BulkRecordViewsResponse{Recorded: result.Recorded})
}

func toInput(req RecordViewRequest) usecase.RecordViewInput {
	return usecase.RecordViewInput{
		BlogID:      req.BlogID,
		CountryCode: req.CountryCode,
		ViewerID:    req.ViewerID,
		Timestamp:   req.Timestamp,
	}
}

func (h *ViewHandler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidView),
		errors.Is(err, usecase.ErrFutureTime):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_view",
			Message: err.Error(),
		})
	case errors.Is(err, ports.ErrUnknownReference):
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Error:   "unknown_reference",
			Message: err.Error(),
		})
	default:
		h.log.Error("Recording views failed", logger.String("path", c.Path()), logger.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: "internal_server_error",
		})
	}
}
