package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	// Domain
	"github.com/uniedit/videogen/internal/domain/video"

	// Inbound adapters
	videohttp "github.com/uniedit/videogen/internal/adapter/inbound/http/video"

	// Outbound adapters
	"github.com/uniedit/videogen/internal/adapter/outbound/genai"
	"github.com/uniedit/videogen/internal/adapter/outbound/memory"
	redisadapter "github.com/uniedit/videogen/internal/adapter/outbound/redis"
	s3adapter "github.com/uniedit/videogen/internal/adapter/outbound/s3"
	"github.com/uniedit/videogen/internal/infra/httpclient"

	// Shared infrastructure
	sharedcache "github.com/uniedit/videogen/internal/shared/cache"
	"github.com/uniedit/videogen/internal/shared/config"
	"github.com/uniedit/videogen/internal/shared/logger"
	"github.com/uniedit/videogen/internal/shared/metrics"
	"github.com/uniedit/videogen/internal/shared/middleware"
)

// App is the HTTP application.
type App struct {
	config    *config.Config
	redis     goredis.UniversalClient
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	service   *video.Service

	// Cleanup functions
	cleanupFuncs []func()
}

// New creates the application.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &App{
		config:    cfg,
		logger:    logger.New(logCfg),
		zapLogger: logger.NewZapLogger(logCfg),
		registry:  registry,
		metrics:   metrics.New("videogen", registry),
	}

	app.initInfrastructure(ctx)

	service, err := BuildService(ctx, cfg, Deps{
		Redis:   app.redis,
		Metrics: app.metrics,
		Logger:  app.zapLogger,
		Tracked: true,
	})
	if err != nil {
		app.Stop()
		return nil, fmt.Errorf("init video service: %w", err)
	}
	app.service = service
	app.cleanupFuncs = append(app.cleanupFuncs, service.Stop)

	app.router = app.setupRouter()
	app.registerRoutes()

	return app, nil
}

// initInfrastructure connects to Redis when it is enabled. The service keeps
// working without it.
func (a *App) initInfrastructure(ctx context.Context) {
	if !a.config.Redis.Enabled {
		return
	}
	client, err := sharedcache.NewRedisClient(ctx, &a.config.Redis)
	if err != nil {
		a.zapLogger.Warn("Redis connection failed, continuing without it", zap.Error(err))
		return
	}
	a.redis = client
}

// Deps are the optional collaborators of the video service.
type Deps struct {
	Redis   goredis.UniversalClient
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Tracked enables the submit-then-poll API by attaching a job store.
	Tracked bool
}

// BuildService wires the video generation service from configuration.
func BuildService(ctx context.Context, cfg *config.Config, deps Deps) (*video.Service, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	settings := &video.Settings{
		PollInterval:     cfg.Generation.PollInterval,
		Timeout:          cfg.Generation.Timeout,
		QueryTimeout:     cfg.Generation.QueryTimeout,
		MaxArtifactBytes: cfg.Generation.MaxArtifactBytes,
	}

	client, err := genai.NewClient(genai.Config{
		BaseURL:          cfg.Provider.BaseURL,
		FailureThreshold: cfg.Provider.FailureThreshold,
		BreakerInterval:  cfg.Provider.BreakerInterval,
		BreakerTimeout:   cfg.Provider.BreakerTimeout,
		MaxArtifactBytes: cfg.Generation.MaxArtifactBytes,
		ArtifactHosts:    cfg.Provider.ArtifactHosts,
	}, httpclient.New(cfg.HTTPClient), &cfg.Provider, deps.Metrics, log)
	if err != nil {
		return nil, err
	}

	var observer video.Observer
	if deps.Metrics != nil {
		observer = metrics.NewVideoObserver(deps.Metrics)
	}
	submitterOpts := []video.SubmitterOption{video.WithSubmitterModel(cfg.Provider.Model)}
	var pollerOpts []video.PollerOption
	if observer != nil {
		submitterOpts = append(submitterOpts, video.WithSubmitterObserver(observer))
		pollerOpts = append(pollerOpts, video.WithPollerObserver(observer))
	}

	var store video.JobStore
	if deps.Tracked {
		if deps.Redis != nil {
			store = redisadapter.NewJobStore(deps.Redis, cfg.Redis.JobTTL)
		} else {
			store = memory.NewJobStore(cfg.Redis.JobTTL)
		}
	}

	var archiver video.Archiver
	if cfg.Storage.Enabled() {
		s3Client, err := s3adapter.NewClient(ctx, &cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("init artifact storage: %w", err)
		}
		archiver = s3adapter.NewArtifactStore(s3Client, cfg.Storage.Bucket, cfg.Storage.Prefix, cfg.Storage.PublicURL)
	}

	return video.NewService(
		video.NewSubmitter(client, &cfg.Provider, settings, log, submitterOpts...),
		video.NewPoller(client, settings, log, pollerOpts...),
		video.NewMaterializer(client, settings, observer, log),
		store,
		archiver,
		log,
	), nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if a.config.Server.MaxBodyBytes > 0 {
		r.Use(maxBodyBytes(a.config.Server.MaxBodyBytes))
	}

	r.GET("/health", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return r
}

// registerRoutes registers all HTTP routes.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")

	var submitGuards []gin.HandlerFunc
	if a.config.RateLimit.Enabled && a.redis != nil {
		limiter := redisadapter.NewRateLimiter(a.redis)
		submitGuards = append(submitGuards, middleware.RateLimit(limiter, middleware.RateLimitConfig{
			Limit:  a.config.RateLimit.Limit,
			Window: a.config.RateLimit.Window,
			Log:    a.logger,
			KeyFunc: func(c *gin.Context) string {
				return "submit:" + c.ClientIP()
			},
		}))
	}

	videohttp.NewHandler(a.service).RegisterRoutes(v1, submitGuards...)
}

func (a *App) health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if _, err := a.config.Provider.Credential(); err != nil {
		status["provider"] = "unconfigured"
	}
	if a.redis != nil {
		if err := a.redis.Ping(c.Request.Context()).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, status)
}

func maxBodyBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the domain logger.
func (a *App) Logger() *zap.Logger {
	return a.zapLogger
}

// Stop stops background work and releases resources.
func (a *App) Stop() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if a.zapLogger != nil {
		_ = a.zapLogger.Sync()
	}

	if a.redis != nil {
		_ = sharedcache.Close(a.redis)
	}
}
