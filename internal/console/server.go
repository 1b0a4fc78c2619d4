package console

import (
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/markerctl/internal/auth"
	"github.com/danmuck/markerctl/internal/lsl"
	"github.com/danmuck/markerctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Dispatcher is the slice of the marker channel the console needs.
type Dispatcher interface {
	Submit(text string)
	Ready() bool
}

// Config holds the console surface settings.
type Config struct {
	Addr        string
	CorsOrigins []string
	AuthToken   string
}

// Server is the HTTP control surface an experimenter (or a local panel)
// uses to emit markers and read status reports.
type Server struct {
	cfg      Config
	stream   lsl.StreamInfo
	dispatch Dispatcher
	statuses *StatusLog
	router   *gin.Engine
	appeared time.Time
}

func Appear(cfg Config, stream lsl.StreamInfo, dispatch Dispatcher, statuses *StatusLog) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		cfg:      cfg,
		stream:   stream,
		dispatch: dispatch,
		statuses: statuses,
		router:   r,
		appeared: time.Now(),
	}
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "markerctl",
			"version": "0.0.1",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  s.dispatch.Ready(),
			"uptime": time.Since(s.appeared).String(),
			"stream": s.stream.Name,
		})
	})

	s.router.GET("/api/stream", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":           s.stream.Name,
			"type":           s.stream.Type,
			"channel_count":  s.stream.ChannelCount,
			"nominal_srate":  s.stream.NominalSRate,
			"channel_format": s.stream.ChannelFormat,
			"source_id":      s.stream.SourceID,
		})
	})

	s.router.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"reports": s.statuses.Recent(),
		})
	})

	guard := auth.BearerMiddleware(s.validator())
	s.router.POST("/api/markers", guard, s.submitMarker)
}

// HTTPServer wraps the router for a lifecycle owner to run and stop.
func (s *Server) HTTPServer() *http.Server {
	s.RegisterRoutes()
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type markerRequest struct {
	Marker string `json:"marker"`
}

// submitMarker is the UI-layer boundary: text validation happens here,
// never in the dispatch channel.
func (s *Server) submitMarker(c *gin.Context) {
	var req markerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	text := strings.TrimSpace(req.Marker)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "marker text required"})
		return
	}

	ready := s.dispatch.Ready()
	observability.RecordMarkerSubmission(s.stream.Name, ready)
	s.dispatch.Submit(text)

	c.JSON(http.StatusAccepted, gin.H{
		"marker": text,
		"ready":  ready,
	})
}

func (s *Server) validator() auth.Validator {
	if strings.TrimSpace(s.cfg.AuthToken) == "" {
		return nil
	}
	return auth.StaticToken{Token: s.cfg.AuthToken}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
