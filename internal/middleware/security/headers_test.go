package security

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaders(t *testing.T) {
	tests := []struct {
		name     string
		cfg      HeadersConfig
		wantHSTS bool
		wantCSP  string
	}{
		{"production", HeadersConfig{}, true, "connect-src 'self';"},
		{"development with origins", HeadersConfig{IsDevelopment: true, AllowedOrigins: []string{"http://localhost:3000"}}, false, "connect-src 'self' http://localhost:3000;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(HeadersMiddleware(tt.cfg))
			app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)

			assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Contains(t, resp.Header.Get("Content-Security-Policy"), tt.wantCSP)
			assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "form-action 'self'")
			assert.Equal(t, tt.wantHSTS, resp.Header.Get("Strict-Transport-Security") != "")
		})
	}
}
