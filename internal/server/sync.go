package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/monorkin/airgradient-dashboard/internal/datasync"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type streamEvent struct {
	Type     string               `json:"type"`
	Progress *datasync.Progress   `json:"progress,omitempty"`
	Result   *datasync.SyncResult `json:"result,omitempty"`
}

// syncOptions validates the location id and the optional date window.
// It writes the 400 response itself and returns false on invalid input.
func syncOptions(c *gin.Context) (datasync.SyncOptions, bool) {
	locationID, err := strconv.Atoi(c.Param("locationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid locationId"})
		return datasync.SyncOptions{}, false
	}

	from := c.Query("from")
	to := c.Query("to")

	if from != "" {
		if _, err := datasync.ParseTimestamp(from); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date format. Use ISO 8601 format."})
			return datasync.SyncOptions{}, false
		}
	}

	if to != "" {
		if _, err := datasync.ParseTimestamp(to); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date format. Use ISO 8601 format."})
			return datasync.SyncOptions{}, false
		}
	}

	return datasync.SyncOptions{
		LocationID: locationID,
		From:       from,
		To:         to,
	}, true
}

// SyncLocation runs a sync for one location. The response is 200 when
// every record was stored and 207 otherwise. A client disconnect does not
// abort a running sync.
func (handler *Handler) SyncLocation(c *gin.Context) {
	options, ok := syncOptions(c)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	result := handler.sync.SyncLocationData(ctx, options, nil)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusMultiStatus
	}

	c.JSON(status, result)
}

// StreamSyncLocation runs a sync over a websocket, sending a "progress"
// event for every progress update and a final "result" event.
func (handler *Handler) StreamSyncLocation(c *gin.Context) {
	options, ok := syncOptions(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		handler.logger.Warn("WebSocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	send := func(event streamEvent) {
		if err := conn.WriteJSON(event); err != nil {
			handler.logger.Debug("Failed to write sync event", "type", event.Type, "error", err)
		}
	}

	ctx := context.WithoutCancel(c.Request.Context())
	result := handler.sync.SyncLocationData(ctx, options, func(progress datasync.Progress) {
		send(streamEvent{Type: "progress", Progress: &progress})
	})

	send(streamEvent{Type: "result", Result: &result})

	err = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		handler.logger.Debug("Failed to close websocket", "error", err)
	}
}
