package validation

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apartment-estimator/backend/internal/features"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Post("/", Middleware(Config{}), func(c *fiber.Ctx) error {
		raw, ok := Input(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(raw)
	})
	return app
}

func do(t *testing.T, app *fiber.App, contentType, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return resp.StatusCode, out
}

func TestFormSubmission(t *testing.T) {
	form := url.Values{
		"chooseLocation": {"cityname"},
		"Cityname":       {"Aachen"},
		"Category":       {"Apartment"},
		"Area":           {" 100 "},
		"Rooms":          {"4"},
		"Year":           {"2010"},
		"Balcony":        {"1"},
	}
	status, out := do(t, newApp(), fiber.MIMEApplicationForm, form.Encode())
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Aachen", out["Cityname"])
	assert.Equal(t, "100", out["Area"])
	assert.Equal(t, "1", out["Balcony"])
}

func TestJSONSubmission(t *testing.T) {
	body := `{"chooseLocation":"coordinates","Latitude":51.2,"Longitude":6.78,"Area":80,"Rooms":3,"Year":1990,"Garden":true,"Loggia":false,"Cityname":null}`
	status, out := do(t, newApp(), fiber.MIMEApplicationJSON, body)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "51.2", out["Latitude"])
	assert.Equal(t, "1", out["Garden"])
	assert.NotContains(t, out, "Loggia")
	assert.NotContains(t, out, "Cityname")
}

func TestRejections(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"unsupported type", "text/plain", "hello", fiber.StatusUnsupportedMediaType},
		{"malformed json", fiber.MIMEApplicationJSON, "{", fiber.StatusBadRequest},
		{"nested json", fiber.MIMEApplicationJSON, `{"Area":[1]}`, fiber.StatusBadRequest},
		{"no location mode", fiber.MIMEApplicationJSON, `{"Area":80,"Rooms":3,"Year":1990}`, fiber.StatusUnprocessableEntity},
		{"city missing", fiber.MIMEApplicationForm, "chooseLocation=cityname&Cityname=&Area=1&Rooms=1&Year=2000", fiber.StatusUnprocessableEntity},
		{"longitude missing", fiber.MIMEApplicationForm, "chooseLocation=coordinates&Latitude=51&Area=1&Rooms=1&Year=2000", fiber.StatusUnprocessableEntity},
		{"value too long", fiber.MIMEApplicationJSON, `{"Cityname":"` + strings.Repeat("x", 300) + `"}`, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := do(t, newApp(), tt.contentType, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, false, out["success"])
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestMissing(t *testing.T) {
	assert.Empty(t, Missing(features.RawInput{
		"chooseLocation": "cityname", "Cityname": "Bonn", "Area": "50", "Rooms": "2", "Year": "1970",
	}))
	assert.Equal(t, []string{"Latitude", "Longitude", "Area", "Rooms", "Year"},
		Missing(features.RawInput{"chooseLocation": "coordinates"}))
}
