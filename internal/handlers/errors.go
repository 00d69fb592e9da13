package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
)

func statusFor(err error) int {
	switch errordata.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "precondition":
		return http.StatusPreconditionFailed
	case "conflict":
		return http.StatusConflict
	case "invalid_input":
		return http.StatusBadRequest
	case "timeout":
		return http.StatusGatewayTimeout
	case "upstream_unavailable":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": errordata.Kind(err)})
}
