package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/apartment-estimator/backend/internal/estimation"
	"github.com/apartment-estimator/backend/internal/middleware/validation"
	"github.com/apartment-estimator/backend/pkg/logger"
)

type WebSocketHandler struct {
	service *estimation.Service
}

func NewWebSocketHandler(service *estimation.Service) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
	}
}

type wsRequest struct {
	Type  string          `json:"type"`
	Input json.RawMessage `json:"input"`
}

// HandleConnection answers each {"type":"estimate","input":{...}} message with
// a "result" or "error" message, so a client can re-estimate as the user edits.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsRequest
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "estimate" {
			h.sendError(c, "bad_request", "unsupported message type")
			continue
		}

		if err := h.estimate(c, msg.Input); err != nil {
			logger.Error("Failed to write WebSocket message", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) estimate(c *websocket.Conn, input json.RawMessage) error {
	raw, err := validation.ParseJSON(input)
	if err != nil {
		return h.sendError(c, "bad_request", err.Error())
	}
	if missing := validation.Missing(raw); len(missing) > 0 {
		return c.WriteJSON(map[string]any{
			"type":    "incomplete",
			"missing": missing,
		})
	}

	report, err := h.service.Estimate(context.Background(), raw)
	if err != nil {
		status, code := Classify(err)
		return h.sendError(c, code, clientMessage(status, err))
	}

	return c.WriteJSON(map[string]any{
		"type":   "result",
		"result": NewEstimateResponse(report),
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, code, message string) error {
	return c.WriteJSON(map[string]any{
		"type":  "error",
		"code":  code,
		"error": message,
	})
}
