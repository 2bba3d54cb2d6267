package api

import (
	"net"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apartment-estimator/backend/internal/features"
	"github.com/apartment-estimator/backend/internal/reference"
)

// dialEstimate serves app on a loopback port and opens /ws/estimate.
func dialEstimate(t *testing.T, app *fiber.App) *fastws.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/estimate", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *fastws.Conn, msg any) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(msg))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func bonnInput() map[string]any {
	return map[string]any{
		"chooseLocation": "cityname",
		"Cityname":       "Bonn",
		"Category":       "Apartment",
		"Area":           100,
		"Rooms":          3,
		"Year":           1990,
		"Balcony":        true,
	}
}

func TestWebSocketEstimate(t *testing.T) {
	conn := dialEstimate(t, newTestApp(t, nil))

	reply := exchange(t, conn, map[string]any{"type": "estimate", "input": bonnInput()})
	require.Equal(t, "result", reply["type"], reply)
	result := reply["result"].(map[string]any)
	assert.Equal(t, "300000.00", result["buy"].(map[string]any)["point"])
	assert.Equal(t, "1000.00", result["rent"].(map[string]any)["point"])
	assert.Equal(t, "25.0", result["buy_to_rent"])

	incomplete := bonnInput()
	delete(incomplete, "Year")
	delete(incomplete, "Cityname")
	reply = exchange(t, conn, map[string]any{"type": "estimate", "input": incomplete})
	assert.Equal(t, "incomplete", reply["type"])
	assert.ElementsMatch(t, []any{"Cityname", "Year"}, reply["missing"])

	unknown := bonnInput()
	unknown["Cityname"] = "Atlantis"
	reply = exchange(t, conn, map[string]any{"type": "estimate", "input": unknown})
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "unknown_city", reply["code"])
	assert.Contains(t, reply["error"], "Atlantis")

	reply = exchange(t, conn, map[string]any{"type": "subscribe"})
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "bad_request", reply["code"])

	// The connection survives rejected messages.
	reply = exchange(t, conn, map[string]any{"type": "estimate", "input": bonnInput()})
	assert.Equal(t, "result", reply["type"])
}

func TestWebSocketHidesInternalFailures(t *testing.T) {
	rent := constantArtifact(t, reference.CategoryRent, 1000)
	rent.Model = brokenModel{n: len(features.DefaultMapping.FeatureNames())}
	conn := dialEstimate(t, newFixtureApp(t, appFixture{rent: rent}))

	reply := exchange(t, conn, map[string]any{"type": "estimate", "input": bonnInput()})
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "prediction_failed", reply["code"])
	assert.Equal(t, "Failed to estimate prices", reply["error"])
	assert.NotContains(t, reply["error"], "node 99")
}
