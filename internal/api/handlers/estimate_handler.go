package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/metrics"
	"github.com/apartment-estimator/backend/internal/middleware/validation"
	"github.com/apartment-estimator/backend/internal/web"
	"github.com/apartment-estimator/backend/pkg/logger"
)

type EstimateHandler struct {
	service     *estimation.Service
	renderer    *web.Renderer
	defaultCity string
}

func NewEstimateHandler(service *estimation.Service, renderer *web.Renderer, defaultCity string) *EstimateHandler {
	return &EstimateHandler{
		service:     service,
		renderer:    renderer,
		defaultCity: defaultCity,
	}
}

func (h *EstimateHandler) ShowForm(c *fiber.Ctx) error {
	html, err := h.renderer.Form(h.service.Provider().Cities().Names(), h.defaultCity)
	if err != nil {
		logger.Error("Failed to render form", zap.Error(err))
		return h.RenderError(c, fiber.StatusInternalServerError, "Failed to render form")
	}
	c.Type("html", "utf-8")
	return c.Send(html)
}

// SubmitForm estimates a form submission and answers with the result page.
func (h *EstimateHandler) SubmitForm(c *fiber.Ctx) error {
	raw, ok := validation.Input(c)
	if !ok {
		return h.RenderError(c, fiber.StatusBadRequest, "Missing form data")
	}

	report, err := h.service.Estimate(c.UserContext(), raw)
	if err != nil {
		status, code := Classify(err)
		metrics.RequestErrors.WithLabelValues(code).Inc()
		logger.Warn("Estimation failed", zap.Error(err), zap.String("code", code))
		return h.RenderError(c, status, clientMessage(status, err))
	}

	html, err := h.renderer.Result(report)
	if err != nil {
		logger.Error("Failed to render result", zap.Error(err), zap.String("estimate_id", report.ID))
		return h.RenderError(c, fiber.StatusInternalServerError, "Failed to render result")
	}
	c.Set(fiber.HeaderXRequestID, report.ID)
	c.Type("html", "utf-8")
	return c.Send(html)
}

func (h *EstimateHandler) SubmitJSON(c *fiber.Ctx) error {
	raw, ok := validation.Input(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "bad_request", Error: "Invalid request body"})
	}

	report, err := h.service.Estimate(c.UserContext(), raw)
	if err != nil {
		logger.Warn("Estimation failed", zap.Error(err))
		return sendError(c, err)
	}

	c.Set(fiber.HeaderXRequestID, report.ID)
	return c.JSON(SuccessResponse{Success: true, Data: NewEstimateResponse(report)})
}

// RenderError writes an HTML error page. It also serves as the validation
// middleware's error hook for form routes.
func (h *EstimateHandler) RenderError(c *fiber.Ctx, status int, message string) error {
	html, err := h.renderer.Error(status, message)
	if err != nil {
		return c.Status(status).SendString(message)
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(html)
}
