package bridge

import (
	"net/http"
	"time"

	"github.com/formlab/modelbridge/internal/observability"
	"github.com/formlab/modelbridge/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// DefaultHTTPWait bounds how long the HTTP transport holds a request open
// waiting for a host turn.
const DefaultHTTPWait = 30 * time.Second

// HTTPTransport is the secondary request/response surface for the bridge.
// It shares the scheduler queue with the TCP listener, so envelope and
// dispatch semantics are identical on both transports.
type HTTPTransport struct {
	sched   *Scheduler
	wait    time.Duration
	router  *gin.Engine
	started time.Time
}

// NewHTTPTransport wires a gin router around the bridge's scheduler.
func NewHTTPTransport(b *Bridge, corsOrigins []string) *HTTPTransport {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	t := &HTTPTransport{
		sched:   b.Scheduler(),
		wait:    DefaultHTTPWait,
		router:  r,
		started: time.Now(),
	}
	t.registerRoutes()
	return t
}

// Router exposes the underlying engine for tests.
func (t *HTTPTransport) Router() *gin.Engine {
	return t.router
}

// Serve blocks running the HTTP transport on addr.
func (t *HTTPTransport) Serve(addr string) error {
	return t.router.Run(addr)
}

func (t *HTTPTransport) registerRoutes() {
	t.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(t.started).String(),
		})
	})

	t.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"queued": t.sched.Depth(),
		})
	})

	t.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	t.router.POST("/command", func(c *gin.Context) {
		var env protocol.CommandEnv
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, protocol.ErrorResponse(protocol.KindDecode, err.Error()))
			return
		}
		if err := env.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, protocol.ErrorResponse(protocol.KindDecode, err.Error()))
			return
		}

		call := t.sched.Enqueue(env)
		select {
		case resp := <-call.Done():
			c.JSON(http.StatusOK, resp)
		case <-time.After(t.wait):
			// The call stays queued and will complete on a later turn;
			// its result is discarded, matching a dropped TCP client.
			c.JSON(http.StatusOK, protocol.ErrorResponse(protocol.KindTimeout,
				"no host turn within the transport wait"))
		}
	})
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
