package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/requestdata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/services"
)

type AuthMiddleware struct {
	log          *logger.Logger
	agentKey     string
	tokenService services.TokenService
}

func NewAuthMiddleware(log *logger.Logger, agentKey string, tokenService services.TokenService) *AuthMiddleware {
	middlewareLogger := log.With("middleware", "AuthMiddleware")
	return &AuthMiddleware{log: middlewareLogger, agentKey: agentKey, tokenService: tokenService}
}

// RequireAgentKey guards the worker control routes with a shared bearer key.
func (am *AuthMiddleware) RequireAgentKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := extractBearer(c)
		if key == "" || am.agentKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(am.agentKey)) != 1 {
			am.log.Warn("Rejected agent request", "path", c.FullPath(), "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid agent key"})
			return
		}
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{TokenString: key, Agent: true})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireParticipant accepts an access token from the Authorization header
// or the token query parameter, since browsers cannot set headers on a
// websocket upgrade. The token's room must match the :room path parameter.
func (am *AuthMiddleware) RequireParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		claims, err := am.tokenService.Parse(tokenString)
		if err != nil {
			am.log.Debug("Participant token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		if room := c.Param("room"); room != "" && room != claims.Video.Room {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token does not grant this room"})
			return
		}
		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{
			TokenString: tokenString,
			Participant: claims.Subject,
			Room:        claims.Video.Room,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

func extractTokenFromAll(c *gin.Context) string {
	if token := extractBearer(c); token != "" {
		return token
	}
	return c.Query("token")
}
