package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/linkhub/pkg/events"
)

// EventsHandler streams job and linking events
type EventsHandler struct {
	broker    *events.Broker
	heartbeat time.Duration
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(broker *events.Broker) *EventsHandler {
	return &EventsHandler{broker: broker, heartbeat: 30 * time.Second}
}

// Events handles GET /events (SSE stream)
// @Summary      Subscribe to events
// @Description  Server-Sent Events stream of job_completed and linking_completed events
// @Tags         events
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /events [get]
func (h *EventsHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	eventChan := h.broker.Subscribe()
	defer h.broker.Unsubscribe(eventChan)

	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case evt, ok := <-eventChan:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, string(evt.Type), evt)
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}
