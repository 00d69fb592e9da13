package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/clinic-voice-scheduler/internal/services"
)

type TokenHandler struct {
	tokenService services.TokenService
}

func NewTokenHandler(tokenService services.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

func (th *TokenHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Token server is running. Request /getToken?name=<you> to join a call."})
}

// GetToken mints a participant token for a fresh room.
func (th *TokenHandler) GetToken(c *gin.Context) {
	grant, err := th.tokenService.Issue(c.DefaultQuery("name", "User"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, grant)
}
