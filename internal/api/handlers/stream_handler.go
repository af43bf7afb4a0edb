package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/andresuchdata/shelfwise/internal/api/middleware"
	"github.com/andresuchdata/shelfwise/internal/realtime"
	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 25 * time.Second

// StreamHandler pushes realtime events over server-sent events
type StreamHandler struct {
	broker    realtime.Broker
	keepAlive time.Duration
}

func NewStreamHandler(broker realtime.Broker) *StreamHandler {
	return &StreamHandler{broker: broker, keepAlive: keepAliveInterval}
}

// StreamProduct follows prediction updates of one product
func (h *StreamHandler) StreamProduct(c *gin.Context) {
	h.stream(c, realtime.ProductTopic(middleware.StoreID(c), c.Param("productId")))
}

// StreamDashboard follows dashboard refresh hints of the store
func (h *StreamHandler) StreamDashboard(c *gin.Context) {
	h.stream(c, realtime.DashboardTopic(middleware.StoreID(c)))
}

// StreamAlerts follows urgent alert broadcasts of the store
func (h *StreamHandler) StreamAlerts(c *gin.Context) {
	h.stream(c, realtime.AlertsTopic(middleware.StoreID(c)))
}

func (h *StreamHandler) stream(c *gin.Context, topic string) {
	events, cancel := h.broker.Subscribe(topic)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(evt.Type, evt)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
