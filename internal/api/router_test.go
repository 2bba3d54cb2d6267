package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apartment-estimator/backend/internal/api/handlers"
	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/model"
	"github.com/apartment-estimator/backend/internal/reference"
	"github.com/apartment-estimator/backend/internal/web"
	"github.com/apartment-estimator/backend/pkg/config"
)

// -0.2, -0.1, 0.1, 0.2 and 17 zeros: q05 = -0.1, q95 = 0.1.
func signedErrors() []float64 {
	errs := []float64{-0.2, -0.1, 0.1, 0.2}
	for i := 0; i < 17; i++ {
		errs = append(errs, 0)
	}
	return errs
}

func constantArtifact(t *testing.T, cat reference.Category, price float64) *reference.ModelArtifact {
	t.Helper()
	columns := features.DefaultMapping.FeatureNames()
	m, err := model.NewLinear(math.Log(price), nil, columns)
	require.NoError(t, err)
	return &reference.ModelArtifact{
		Category:        cat,
		Model:           m,
		ExpectedColumns: columns,
		ErrorsAbs:       []float64{0.1, 0.2},
		ErrorsSigned:    signedErrors(),
		Checksum:        string(cat),
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type brokenModel struct{ n int }

func (m brokenModel) Predict([]float64) (float64, error) { return 0, errors.New("tree 3 references node 99") }
func (m brokenModel) NumFeatures() int                   { return m.n }

type appFixture struct {
	buy, rent         *reference.ModelArtifact
	checks            map[string]handlers.Pinger
	requestsPerMinute int
}

func newFixtureApp(t *testing.T, f appFixture) *fiber.App {
	t.Helper()
	if f.buy == nil {
		f.buy = constantArtifact(t, reference.CategoryBuy, 300000)
	}
	if f.rent == nil {
		f.rent = constantArtifact(t, reference.CategoryRent, 1000)
	}
	if f.requestsPerMinute == 0 {
		f.requestsPerMinute = 1000
	}

	cities, err := reference.NewCityTable([]reference.City{
		{Name: "Aachen", Latitude: 50.7753, Longitude: 6.0839},
		{Name: "Bonn", Latitude: 50.7374, Longitude: 7.0982},
	})
	require.NoError(t, err)

	provider, err := reference.NewProvider(cities, map[reference.Category]*reference.ModelArtifact{
		reference.CategoryBuy:  f.buy,
		reference.CategoryRent: f.rent,
	})
	require.NoError(t, err)

	builder := features.NewBuilder(cities, provider.Schemas(), nil)
	renderer, err := web.NewRenderer("en", nil)
	require.NoError(t, err)

	app, stop := NewApp(Deps{
		Service:     estimation.NewService(provider, builder, nil),
		Renderer:    renderer,
		Server:      config.ServerConfig{BodyLimit: 64 * 1024},
		RateLimit:   config.RateLimitConfig{RequestsPerMinute: f.requestsPerMinute},
		DefaultCity: "Aachen",
		Checks:      f.checks,
	})
	t.Cleanup(stop)
	return app
}

func newTestApp(t *testing.T, checks map[string]handlers.Pinger) *fiber.App {
	t.Helper()
	return newFixtureApp(t, appFixture{checks: checks})
}

func aachenForm() url.Values {
	return url.Values{
		"chooseLocation": {"cityname"},
		"Cityname":       {"Aachen"},
		"Category":       {"Apartment"},
		"Area":           {"100"},
		"Rooms":          {"4"},
		"Year":           {"2010"},
		"Maintained":     {"1"},
		"Balcony":        {"1"},
	}
}

func postForm(t *testing.T, app *fiber.App, form url.Values) (*http.Response, *goquery.Document) {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	resp, err := app.Test(req)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return resp, doc
}

func getJSON(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return resp.StatusCode, out
}

func postJSON(t *testing.T, app *fiber.App, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/estimate", strings.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return getJSON(t, app, req)
}

func TestFormPage(t *testing.T) {
	app := newTestApp(t, nil)
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Find(`select[name="Cityname"] option`).Length())
	assert.Equal(t, "Aachen", doc.Find(`select[name="Cityname"] option[selected]`).Text())
}

func TestFormSubmission(t *testing.T) {
	resp, doc := postForm(t, newTestApp(t, nil), aachenForm())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	config := doc.Find("#configuration").Text()
	assert.Contains(t, config, "Aachen")
	assert.Contains(t, config, "Yes")
	assert.NotContains(t, config, "chooseLocation")

	rows := doc.Find("#estimates tr")
	buy := rows.Eq(1).Find("td")
	assert.Equal(t, "300,000 €", buy.Eq(0).Text())
	assert.Equal(t, "271,451 €", buy.Eq(1).Text())
	assert.Equal(t, "331,551 €", buy.Eq(2).Text())
	assert.Equal(t, "3,000 €/m²", rows.Eq(2).Find("td").First().Text())
	assert.Equal(t, "1,000 €", rows.Eq(3).Find("td").First().Text())
	assert.Equal(t, "10.0 €/m²", rows.Eq(4).Find("td").First().Text())
	assert.Equal(t, "25", rows.Eq(5).Find("td").Text())
	assert.Equal(t, "4.0%", rows.Eq(6).Find("td").Text())
}

func TestFormErrors(t *testing.T) {
	app := newTestApp(t, nil)

	unknown := aachenForm()
	unknown.Set("Cityname", "Atlantis")
	resp, doc := postForm(t, app, unknown)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, doc.Find("#message").Text(), "Atlantis")

	incomplete := aachenForm()
	incomplete.Del("Year")
	resp, doc = postForm(t, app, incomplete)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, doc.Find("#message").Text(), "Year")
}

func TestJSONEstimate(t *testing.T) {
	status, out := postJSON(t, newTestApp(t, nil),
		`{"chooseLocation":"coordinates","Latitude":50.94,"Longitude":6.96,"Category":"Loft","Area":100,"Rooms":3,"Year":1990}`)
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, true, out["success"])

	data := out["data"].(map[string]any)
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "Loft", data["category"])
	assert.Equal(t, "300000.00", data["buy"].(map[string]any)["point"])
	assert.Equal(t, "271451.23", data["buy"].(map[string]any)["lower"])
	assert.Equal(t, "1000.00", data["rent"].(map[string]any)["point"])
	assert.Equal(t, "10.00", data["rent_per_area"].(map[string]any)["point"])
	assert.Equal(t, "25.0", data["buy_to_rent"])
	assert.Equal(t, "4.00", data["rent_to_buy_percent"])

	location := data["location"].(map[string]any)
	assert.Equal(t, "coordinates", location["mode"])
	assert.Equal(t, "Bonn", location["nearest_city"])
	assert.Equal(t, true, location["in_region"])
}

func TestJSONErrors(t *testing.T) {
	app := newTestApp(t, nil)
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown city", `{"chooseLocation":"cityname","Cityname":"Atlantis","Area":100,"Rooms":3,"Year":1990}`, 422, "unknown_city"},
		{"invalid number", `{"chooseLocation":"cityname","Cityname":"Bonn","Area":"big","Rooms":3,"Year":1990}`, 422, "invalid_number"},
		{"zero area", `{"chooseLocation":"cityname","Cityname":"Bonn","Area":0,"Rooms":3,"Year":1990}`, 422, "invalid_area"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := postJSON(t, app, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.code, out["code"])
		})
	}
}

func TestJSONEstimateOutOfRange(t *testing.T) {
	columns := features.DefaultMapping.FeatureNames()
	buyModel, err := model.NewLinear(math.Log(300000), map[string]float64{features.FeatureArea: 1}, columns)
	require.NoError(t, err)
	buy := constantArtifact(t, reference.CategoryBuy, 300000)
	buy.Model = buyModel

	app := newFixtureApp(t, appFixture{buy: buy})
	status, out := postJSON(t, app,
		`{"chooseLocation":"cityname","Cityname":"Bonn","Category":"Loft","Area":"1e308","Rooms":3,"Year":1990}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "out_of_range", out["code"])
	assert.Contains(t, out["error"], "check the submitted values")
}

func TestFormRateLimitRendersErrorPage(t *testing.T) {
	app := newFixtureApp(t, appFixture{requestsPerMinute: 1})

	resp, _ := postForm(t, app, aachenForm())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, doc := postForm(t, app, aachenForm())
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Contains(t, doc.Find("#message").Text(), "Rate limit exceeded")

	status, out := postJSON(t, app,
		`{"chooseLocation":"cityname","Cityname":"Bonn","Category":"Loft","Area":100,"Rooms":3,"Year":1990}`)
	assert.Equal(t, fiber.StatusOK, status, out)
}

func TestReferenceEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	status, out := getJSON(t, app, httptest.NewRequest("GET", "/api/v1/cities", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out["data"], 2)

	status, out = getJSON(t, app, httptest.NewRequest("GET", "/api/v1/models", nil))
	assert.Equal(t, fiber.StatusOK, status)
	models := out["data"].([]any)
	require.Len(t, models, 2)
	assert.Equal(t, "buy", models[0].(map[string]any)["category"])
}

func TestHealthAndReadiness(t *testing.T) {
	status, out := getJSON(t, newTestApp(t, nil), httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "healthy", out["status"])

	status, out = getJSON(t, newTestApp(t, nil), httptest.NewRequest("GET", "/api/v1/ready", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", out["status"])

	app := newTestApp(t, map[string]handlers.Pinger{"redis": failingPinger{}})
	status, out = getJSON(t, app, httptest.NewRequest("GET", "/api/v1/ready", nil))
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Contains(t, out["failed"], "redis")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	resp, err := newTestApp(t, nil).Test(httptest.NewRequest("GET", "/ws/estimate", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
