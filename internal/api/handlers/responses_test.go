package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/reference"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{features.ErrUnknownCity, fiber.StatusUnprocessableEntity, "unknown_city"},
		{features.ErrInvalidNumber, fiber.StatusUnprocessableEntity, "invalid_number"},
		{estimation.ErrInvalidArea, fiber.StatusUnprocessableEntity, "invalid_area"},
		{estimation.ErrOutOfRange, fiber.StatusUnprocessableEntity, "out_of_range"},
		{reference.ErrArtifactMissing, fiber.StatusInternalServerError, "artifact_missing"},
		{estimation.ErrInsufficientErrorData, fiber.StatusInternalServerError, "insufficient_error_data"},
		{estimation.ErrPrediction, fiber.StatusInternalServerError, "prediction_failed"},
		{errors.New("disk on fire"), fiber.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := Classify(fmt.Errorf("failed to estimate: %w", tt.err))
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestClientMessageHidesServerErrors(t *testing.T) {
	err := fmt.Errorf("%w: buy model panicked", estimation.ErrPrediction)
	assert.Equal(t, "Failed to estimate prices", clientMessage(fiber.StatusInternalServerError, err))
	assert.Equal(t, err.Error(), clientMessage(fiber.StatusUnprocessableEntity, err))
}
