package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/metrics"
	"github.com/apartment-estimator/backend/internal/reference"
)

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// MoneyRange carries a point estimate and its 90% bounds as fixed-point strings.
type MoneyRange struct {
	Point string `json:"point"`
	Lower string `json:"lower"`
	Upper string `json:"upper"`
}

type EstimateResponse struct {
	ID               string                  `json:"id"`
	Location         estimation.LocationInfo `json:"location"`
	Category         string                  `json:"category"`
	Area             float64                 `json:"area"`
	Buy              MoneyRange              `json:"buy"`
	Rent             MoneyRange              `json:"rent"`
	BuyPerArea       MoneyRange              `json:"buy_per_area"`
	RentPerArea      MoneyRange              `json:"rent_per_area"`
	BuyToRent        string                  `json:"buy_to_rent"`
	RentToBuyPercent string                  `json:"rent_to_buy_percent"`
	Diagnostics      []estimation.Diagnostic `json:"diagnostics"`
	Cached           bool                    `json:"cached"`
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func moneyRange(r estimation.Result) MoneyRange {
	return MoneyRange{Point: money(r.Point), Lower: money(r.Lower), Upper: money(r.Upper)}
}

func NewEstimateResponse(r *estimation.Report) EstimateResponse {
	return EstimateResponse{
		ID:               r.ID,
		Location:         r.Location,
		Category:         r.Category,
		Area:             r.Area,
		Buy:              moneyRange(r.Buy),
		Rent:             moneyRange(r.Rent),
		BuyPerArea:       moneyRange(r.Derived.BuyPerArea),
		RentPerArea:      moneyRange(r.Derived.RentPerArea),
		BuyToRent:        decimal.NewFromFloat(r.Derived.BuyToRent).StringFixed(1),
		RentToBuyPercent: decimal.NewFromFloat(r.Derived.RentToBuyPercent).StringFixed(2),
		Diagnostics:      r.Diagnostics,
		Cached:           r.Cached,
	}
}

// Classify maps a pipeline error to an HTTP status and a stable error code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, features.ErrUnknownCity):
		return fiber.StatusUnprocessableEntity, "unknown_city"
	case errors.Is(err, features.ErrInvalidNumber):
		return fiber.StatusUnprocessableEntity, "invalid_number"
	case errors.Is(err, estimation.ErrInvalidArea):
		return fiber.StatusUnprocessableEntity, "invalid_area"
	case errors.Is(err, estimation.ErrOutOfRange):
		return fiber.StatusUnprocessableEntity, "out_of_range"
	case errors.Is(err, reference.ErrArtifactMissing):
		return fiber.StatusInternalServerError, "artifact_missing"
	case errors.Is(err, estimation.ErrInsufficientErrorData):
		return fiber.StatusInternalServerError, "insufficient_error_data"
	case errors.Is(err, estimation.ErrPrediction):
		return fiber.StatusInternalServerError, "prediction_failed"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}

// clientMessage hides internal failure detail from callers.
func clientMessage(status int, err error) string {
	if status >= fiber.StatusInternalServerError {
		return "Failed to estimate prices"
	}
	return err.Error()
}

func sendError(c *fiber.Ctx, err error) error {
	status, code := Classify(err)
	metrics.RequestErrors.WithLabelValues(code).Inc()
	return c.Status(status).JSON(ErrorResponse{Code: code, Error: clientMessage(status, err)})
}
