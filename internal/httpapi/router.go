package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"memestats-backend/internal/observability"
	"memestats-backend/internal/ratelimit"
	"memestats-backend/internal/stats"
	"memestats-backend/internal/storage"
	"memestats-backend/internal/upload"
)

// StatsProvider serves the current token statistics snapshot.
type StatsProvider interface {
	GetStats(ctx context.Context) (stats.Snapshot, error)
}

// Options wires the API's collaborators.
type Options struct {
	Stats          StatsProvider
	Memes          storage.MemeStore
	Objects        upload.ObjectStore
	MaxUploadBytes int64
	Hub            *Hub // nil disables the live feed endpoint

	CORSOrigins []string

	// RateLimit is applied to all /api routes when Counter is non-nil.
	RateLimitCounter ratelimit.Counter
	RateLimit        ratelimit.Limit

	Metrics *observability.Metrics // nil skips the /metrics route
	Logger  logrus.FieldLogger
}

// requestLogger logs each request at debug level with method, path, status
// and duration.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}

// NewRouter builds the gin engine with all routes and middleware attached.
func NewRouter(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(corsMiddleware(opts.CORSOrigins))

	h := &handlers{
		stats:          opts.Stats,
		memes:          opts.Memes,
		objects:        opts.Objects,
		maxUploadBytes: opts.MaxUploadBytes,
		log:            log,
	}

	r.GET("/health", h.health)

	api := r.Group("/api")
	if opts.RateLimitCounter != nil {
		api.Use(ratelimit.Middleware(opts.RateLimitCounter, opts.RateLimit, log))
	}
	api.GET("/token-stats", h.tokenStats)
	api.POST("/upload", h.uploadMeme)
	api.GET("/memes", h.listMemes)

	if opts.Hub != nil {
		r.GET("/ws/stats", opts.Hub.Handle)
	}

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(observability.Handler()))
	}

	return r
}
