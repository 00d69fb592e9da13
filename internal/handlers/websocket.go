package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/requestdata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/socket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventsHandler streams a call's status events to an observer. The
// participant middleware has already pinned the room.
func EventsHandler(hub *socket.Hub, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil || rd.Room == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("Failed to upgrade to websocket", "error", err)
			return
		}
		// The request context ends when this handler returns.
		ctx, cancel := context.WithCancel(context.Background())
		client := socket.NewClient(conn, hub, uuid.New(), cancel, log.With("room", rd.Room))
		hub.Subscribe(client, []string{socket.SessionChannel(rd.Room)})

		go client.WriteLoop(ctx)
		go client.ReadLoop(ctx)
	}
}
