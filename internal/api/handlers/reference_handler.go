package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/apartment-estimator/backend/internal/diagnostics"
	"github.com/apartment-estimator/backend/internal/reference"
)

type ReferenceHandler struct {
	provider *reference.Provider
}

func NewReferenceHandler(provider *reference.Provider) *ReferenceHandler {
	return &ReferenceHandler{provider: provider}
}

func (h *ReferenceHandler) ListCities(c *fiber.Ctx) error {
	return c.JSON(SuccessResponse{Success: true, Data: h.provider.Cities().All()})
}

// ListModels reports the loaded artifacts with their error-distribution summaries.
func (h *ReferenceHandler) ListModels(c *fiber.Ctx) error {
	return c.JSON(SuccessResponse{Success: true, Data: diagnostics.SummarizeProvider(h.provider)})
}
