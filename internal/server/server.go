package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satchelworks/satchel/internal/ai"
	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/events"
	"github.com/satchelworks/satchel/internal/logging"
	"github.com/satchelworks/satchel/internal/monitoring"
	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/profile"
	"github.com/satchelworks/satchel/internal/ws"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	bus      *events.Bus
	streamer *ws.Streamer
	resolver *profile.Resolver
	ai       *ai.Client
}

// NewServer creates a server instance from configuration.
func NewServer(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		if cfg.Logging.Development {
			logger = logging.NewDevelopment()
		} else {
			logger = logging.NewDefault()
		}
	}
	logger = logger.Scoped("server")

	// A per-server registry keeps construction re-entrant (tests build
	// several servers in one process).
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	bus := events.NewBus()
	streamer := ws.NewStreamer(bus, logger, metrics)

	// Every stage failure on the shared bus feeds the service counters.
	bus.Subscribe("stage:error", func(ev events.Event) {
		if p, ok := ev.Payload.(pipeline.ErrorPayload); ok {
			metrics.RecordStageFailure(p.Stage, "fatal")
		}
	})
	bus.Subscribe("stage:recover", func(ev events.Event) {
		if p, ok := ev.Payload.(pipeline.RecoverPayload); ok {
			metrics.RecordStageFailure(p.Stage, "recovered")
		}
	})

	s := &Server{
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		bus:      bus,
		streamer: streamer,
		resolver: profile.NewResolver(cfg.Profiles.Dir),
		ai:       ai.NewClient(cfg.AI, logger),
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept", "Origin", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/stream", s.streamer.Handle)

	v1 := router.Group("/v1")
	v1.POST("/pack", s.handlePack)
	v1.GET("/profiles", s.handleProfiles)

	s.router = router
	return s
}

// Router returns the underlying gin engine, for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run(addr string) error {
	s.logger.Info("starting server", zap.String("addr", addr))
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains connections and detaches the event streamer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.streamer.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
