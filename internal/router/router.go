package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomodoro/daemon/internal/handler"
	"pomodoro/daemon/internal/middleware"
	"pomodoro/daemon/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	timerHandler *handler.TimerHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	t := api.Group("/timer")
	t.Use(middleware.Auth(authService))
	t.GET("/state", timerHandler.GetState)
	t.POST("/start", timerHandler.Start)
	t.POST("/pause", timerHandler.Pause)
	t.POST("/toggle", timerHandler.Toggle)
	t.POST("/skip", timerHandler.Skip)
	t.POST("/phase/reset", timerHandler.ResetPhase)
	t.POST("/cycle/reset", timerHandler.ResetCycle)
	t.POST("/phase/:index/start", timerHandler.StartPhase)
	t.POST("/resume-signal", timerHandler.ResumeSignal)
	t.POST("/flow/start", timerHandler.StartFlow)
	t.POST("/flow/stop", timerHandler.StopFlow)
	t.POST("/cadence", timerHandler.SetCadence)
	t.GET("/history", timerHandler.GetHistory)
	t.GET("/snapshot", timerHandler.GetSnapshot)

	return engine
}
