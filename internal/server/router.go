package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/slotter-org/clinic-voice-scheduler/internal/handlers"
	"github.com/slotter-org/clinic-voice-scheduler/internal/middleware"
)

type RouterConfig struct {
	AllowOrigins   []string
	TokenHandler   *handlers.TokenHandler
	CallHandler    *handlers.CallHandler
	AuthMiddleware *middleware.AuthMiddleware
	TokenLimiter   *middleware.RateLimiter
	EventsHandler  gin.HandlerFunc
	ReadyHandler   gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	//-----------------------------------------
	// Cors Setup
	//-----------------------------------------
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
	}
	if len(cfg.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))

	//-----------------------------------------
	// Health Routes
	//-----------------------------------------
	router.GET("/healthz", handlers.Healthz)
	if cfg.ReadyHandler != nil {
		router.GET("/readyz", cfg.ReadyHandler)
	}

	//-----------------------------------------
	// Token Routes
	//-----------------------------------------
	router.GET("/", cfg.TokenHandler.Root)
	tokenRoute := router.Group("/getToken")
	if cfg.TokenLimiter != nil {
		tokenRoute.Use(cfg.TokenLimiter.Middleware())
	}
	tokenRoute.GET("", cfg.TokenHandler.GetToken)

	api := router.Group("/api")

	//------------------------------------------
	// Observer Routes
	//------------------------------------------
	api.GET("/calls/:room/events", cfg.AuthMiddleware.RequireParticipant(), cfg.EventsHandler)

	//------------------------------------------
	// Agent Routes
	//------------------------------------------
	agent := api.Group("/")
	agent.Use(cfg.AuthMiddleware.RequireAgentKey())
	agent.GET("/tools", cfg.CallHandler.ListTools)
	agent.GET("/calls", cfg.CallHandler.ListCalls)
	agent.POST("/calls", cfg.CallHandler.StartCall)
	agent.DELETE("/calls/:room", cfg.CallHandler.StopCall)
	agent.GET("/calls/:room/state", cfg.CallHandler.GetState)
	agent.POST("/calls/:room/tools/:name", cfg.CallHandler.InvokeTool)
	agent.POST("/calls/:room/messages", cfg.CallHandler.AddMessage)

	return router
}
