package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the id RequestLogger tags each request with.
const RequestIDHeader = "X-Request-ID"

// quietRoutes are polled or held open by clients; they log at debug level.
var quietRoutes = map[string]bool{
	"/health":        true,
	"/api/v1/health": true,
	"/api/v1/events": true,
	"/swagger/*any":  true,
	"/docs":          true,
}

// SetupMiddleware installs recovery, request logging and CORS.
func SetupMiddleware(r *gin.Engine) {
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// RequestLogger logs one line per request, tagged with the job kind or
// device address the route targets. A client-supplied request id is kept.
// The event stream logs its lifetime as duration rather than latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()

		var evt *zerolog.Event
		switch {
		case status >= 500:
			evt = log.Error()
		case status >= 400:
			evt = log.Warn()
		case quietRoutes[route] || route == "":
			evt = log.Debug()
		default:
			evt = log.Info()
		}

		evt = evt.
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("client_ip", c.ClientIP())
		if kind := c.Param("kind"); kind != "" {
			evt = evt.Str("job_kind", kind)
		}
		if dev := c.Param("id"); dev != "" {
			evt = evt.Str("target", dev)
		}
		if route == "/api/v1/events" {
			evt = evt.Dur("stream", time.Since(start))
		} else {
			evt = evt.Dur("latency", time.Since(start))
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Msg("request")
	}
}
