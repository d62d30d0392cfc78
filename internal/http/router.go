package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/clinicflow/backend/internal/config"
	"github.com/clinicflow/backend/internal/db"
	"github.com/clinicflow/backend/internal/engine"
	"github.com/clinicflow/backend/internal/http/handlers"
	"github.com/clinicflow/backend/internal/http/middleware"
	"github.com/clinicflow/backend/internal/ws"

	_ "github.com/clinicflow/backend/docs"
)

func Router(cfg config.Config, eng *engine.Engine, archive *db.Archive, hub *ws.Hub, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Engine:    eng,
		Archive:   archive,
		Hub:       hub,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/visits", h.CheckIn)
		api.POST("/visits/:id/triage-complete", h.TriageComplete)
		api.POST("/visits/:id/call-in", h.CallIn)
		api.POST("/visits/:id/complete", h.Complete)
		api.GET("/visits", h.VisitsList)
		api.GET("/visits/:id", h.VisitDetails)
		api.GET("/clinicians", h.CliniciansList)
		api.PUT("/clinicians/:id/availability", h.SetAvailability)
	}

	if hub != nil {
		api.GET("/ws", func(c *gin.Context) {
			hub.Serve(c.Writer, c.Request)
		})
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/rebalance", h.Rebalance)
		admin.POST("/visits/:id/abandon", h.Abandon)
		admin.POST("/clinicians", h.CreateClinician)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
