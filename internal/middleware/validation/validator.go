package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/metrics"
)

// InputKey is the fiber.Ctx local under which the parsed submission is stored.
const InputKey = "estimate_input"

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrMalformedBody          = errors.New("malformed request body")
	ErrIncomplete             = errors.New("please fill out all necessary fields to make an estimation")
)

type Config struct {
	MaxFields      int
	MaxValueLength int
	Logger         *zap.Logger
	// OnError renders a rejected submission. Defaults to a JSON error body.
	OnError func(c *fiber.Ctx, status int, err error) error
}

// Middleware parses an estimation submission (form or JSON), rejects
// incomplete ones and stores the result under InputKey.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxFields <= 0 {
		cfg.MaxFields = 64
	}
	if cfg.MaxValueLength <= 0 {
		cfg.MaxValueLength = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.OnError == nil {
		cfg.OnError = func(c *fiber.Ctx, status int, err error) error {
			return c.Status(status).JSON(fiber.Map{"success": false, "error": err.Error()})
		}
	}

	return func(c *fiber.Ctx) error {
		raw, err := ParseInput(c)
		if err != nil {
			status := fiber.StatusBadRequest
			if errors.Is(err, ErrUnsupportedContentType) {
				status = fiber.StatusUnsupportedMediaType
			}
			metrics.RequestErrors.WithLabelValues("bad_request").Inc()
			return cfg.OnError(c, status, err)
		}

		if len(raw) > cfg.MaxFields {
			metrics.RequestErrors.WithLabelValues("bad_request").Inc()
			return cfg.OnError(c, fiber.StatusBadRequest, fmt.Errorf("%w: too many fields", ErrMalformedBody))
		}
		for k, v := range raw {
			if len(k) > cfg.MaxValueLength || len(v) > cfg.MaxValueLength {
				metrics.RequestErrors.WithLabelValues("bad_request").Inc()
				return cfg.OnError(c, fiber.StatusBadRequest, fmt.Errorf("%w: field %q too long", ErrMalformedBody, truncate(k, 32)))
			}
		}

		if missing := Missing(raw); len(missing) > 0 {
			cfg.Logger.Debug("Incomplete estimation request",
				zap.String("ip", c.IP()),
				zap.Strings("missing", missing),
			)
			metrics.RequestErrors.WithLabelValues("incomplete").Inc()
			return cfg.OnError(c, fiber.StatusUnprocessableEntity,
				fmt.Errorf("%w (missing: %s)", ErrIncomplete, strings.Join(missing, ", ")))
		}

		c.Locals(InputKey, raw)
		return c.Next()
	}
}

// Input returns the submission stored by Middleware.
func Input(c *fiber.Ctx) (features.RawInput, bool) {
	raw, ok := c.Locals(InputKey).(features.RawInput)
	return raw, ok
}

// ParseInput reads the request body into a RawInput. Form posts keep the
// first value of each field; JSON bodies may use strings, numbers or booleans.
func ParseInput(c *fiber.Ctx) (features.RawInput, error) {
	ct := strings.ToLower(c.Get(fiber.HeaderContentType))

	switch {
	case strings.HasPrefix(ct, fiber.MIMEApplicationForm):
		raw := features.RawInput{}
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			key := string(k)
			if _, seen := raw[key]; !seen {
				raw[key] = sanitize(string(v))
			}
		})
		return raw, nil

	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedBody, err)
		}
		raw := features.RawInput{}
		for k, vs := range form.Value {
			if len(vs) > 0 {
				raw[k] = sanitize(vs[0])
			}
		}
		return raw, nil

	case strings.HasPrefix(ct, fiber.MIMEApplicationJSON):
		return ParseJSON(c.Body())

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, ct)
	}
}

// ParseJSON decodes a flat JSON object into a RawInput. Booleans follow
// checkbox semantics: true becomes "1" and false drops the field.
func ParseJSON(body []byte) (features.RawInput, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}

	raw := make(features.RawInput, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case nil:
		case string:
			raw[k] = sanitize(val)
		case float64:
			raw[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			if val {
				raw[k] = "1"
			}
		default:
			return nil, fmt.Errorf("%w: field %q must be a string, number or boolean", ErrMalformedBody, k)
		}
	}
	return raw, nil
}

// Missing lists the fields a submission needs before an estimate can be
// attempted: a location in the chosen mode plus area, rooms and year.
func Missing(raw features.RawInput) []string {
	var missing []string
	need := func(field string) {
		if strings.TrimSpace(raw[field]) == "" {
			missing = append(missing, field)
		}
	}

	switch raw[features.FieldLocationMode] {
	case features.LocationByCity:
		need(features.FieldCity)
	case features.LocationByCoordinates:
		need(features.FieldLatitude)
		need(features.FieldLongitude)
	default:
		missing = append(missing, features.FieldLocationMode)
	}

	need(features.FieldArea)
	need(features.FieldRooms)
	need(features.FieldYear)
	return missing
}

func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
