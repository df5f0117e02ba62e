package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/urmzd/linkhub/pkg/api/handlers"
	"github.com/urmzd/linkhub/pkg/events"
	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/schema"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine    *gin.Engine
	house     *house.House
	broker    *events.Broker
	validator *schema.Validator
	history   handlers.JobHistory
}

// NewRouter creates a new API router. history may be nil to disable the
// finished-run endpoints.
func NewRouter(h *house.House, broker *events.Broker, validator *schema.Validator, history handlers.JobHistory) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:    engine,
		house:     h,
		broker:    broker,
		validator: validator,
		history:   history,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	healthHandler := handlers.NewHealthHandler(r.house)
	r.engine.GET("/health", healthHandler.Health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		devicesHandler := handlers.NewDevicesHandler(r.house)
		devices := v1.Group("/devices")
		{
			devices.GET("", devicesHandler.ListDevices)
			devices.POST("", devicesHandler.AddDevice)
			devices.GET("/:id", devicesHandler.GetDevice)
			devices.DELETE("/:id", devicesHandler.RemoveDevice)
			devices.GET("/:id/links", devicesHandler.GetLinks)
		}

		jobsHandler := handlers.NewJobsHandler(r.house, r.validator, r.history)
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobsHandler.ListJobs)
			jobs.GET("/:kind", jobsHandler.GetJob)
			jobs.POST("/:kind", jobsHandler.ScheduleJob)
			jobs.DELETE("/:kind", jobsHandler.CancelJob)
		}
		v1.GET("/runs/:id", jobsHandler.GetRun)

		linkingHandler := handlers.NewLinkingHandler(r.house, r.validator)
		v1.POST("/linking", linkingHandler.Link)

		eventsHandler := handlers.NewEventsHandler(r.broker)
		v1.GET("/events", eventsHandler.Events)
	}
}

// Handler exposes the engine for http.Server and tests.
func (r *Router) Handler() http.Handler {
	return r.engine
}
