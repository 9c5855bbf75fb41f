package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/brandhub/internal/core/ports"
	"github.com/avatarctic/brandhub/internal/infrastructure/db"
	"github.com/avatarctic/brandhub/internal/infrastructure/health"
	customMiddleware "github.com/avatarctic/brandhub/internal/infrastructure/httpserver/middleware"
	"github.com/avatarctic/brandhub/internal/infrastructure/redis"
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	AllowedOrigins []string
	Environment    string
}

// ServerDeps lists everything the HTTP surface serves. Cache, Router and Monitor
// back the system endpoints and may be nil when the component is not configured.
type ServerDeps struct {
	BusinessService    ports.BusinessService
	BrandService       ports.BrandService
	AnalyticsService   ports.AnalyticsService
	RateLimiterService ports.RateLimiterService
	Cache              *redis.Store
	Router             *db.Router
	Monitor            *health.Monitor
}

type Server struct {
	echo         *echo.Echo
	config       *ServerConfig
	logger       *logrus.Logger
	businessSvc  ports.BusinessService
	brandSvc     ports.BrandService
	analyticsSvc ports.AnalyticsService
	cache        *redis.Store
	router       *db.Router
	monitor      *health.Monitor
	middleware   *customMiddleware.MiddlewareCollection
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true

	server := &Server{
		echo:         e,
		config:       serverConfig,
		logger:       logger,
		businessSvc:  deps.BusinessService,
		brandSvc:     deps.BrandService,
		analyticsSvc: deps.AnalyticsService,
		cache:        deps.Cache,
		router:       deps.Router,
		monitor:      deps.Monitor,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.BusinessService,
			deps.RateLimiterService,
			logger,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
