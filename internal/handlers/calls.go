package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/clinic-voice-scheduler/internal/agent"
	"github.com/slotter-org/clinic-voice-scheduler/internal/services"
	"github.com/slotter-org/clinic-voice-scheduler/internal/tools"
	"github.com/slotter-org/clinic-voice-scheduler/internal/types"
)

// CallWorker is the part of the agent worker the HTTP layer drives.
type CallWorker interface {
	Start(room string) error
	Stop(ctx context.Context, room string) error
	Invoke(ctx context.Context, room, name string, args []byte) (string, error)
	AddMessage(ctx context.Context, room string, role types.ChatRole, content string) error
	State(room string) (*agent.Snapshot, error)
	Rooms() []string
}

const (
	maxToolArgs = 16 << 10
	stopTimeout = 10 * time.Second
)

type CallHandler struct {
	worker CallWorker
}

func NewCallHandler(worker CallWorker) *CallHandler {
	return &CallHandler{worker: worker}
}

func (ch *CallHandler) StartCall(c *gin.Context) {
	var req struct {
		Room string `json:"room"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	if req.Room == "" {
		room, err := services.NewRoomName()
		if err != nil {
			abortWith(c, err)
			return
		}
		req.Room = room
	}
	if err := ch.worker.Start(req.Room); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": req.Room})
}

func (ch *CallHandler) ListCalls(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": ch.worker.Rooms()})
}

func (ch *CallHandler) StopCall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), stopTimeout)
	defer cancel()
	if err := ch.worker.Stop(ctx, c.Param("room")); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// InvokeTool passes the raw body through as the tool's arguments. The reply
// is always a sentence; only an unknown room is an HTTP error.
func (ch *CallHandler) InvokeTool(c *gin.Context) {
	args, err := io.ReadAll(io.LimitReader(c.Request.Body, maxToolArgs))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read arguments"})
		return
	}
	reply, err := ch.worker.Invoke(c.Request.Context(), c.Param("room"), c.Param("name"), args)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (ch *CallHandler) AddMessage(c *gin.Context) {
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := ch.worker.AddMessage(c.Request.Context(), c.Param("room"), types.ChatRole(req.Role), req.Content); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (ch *CallHandler) GetState(c *gin.Context) {
	snap, err := ch.worker.State(c.Param("room"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (ch *CallHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": tools.Catalog()})
}
