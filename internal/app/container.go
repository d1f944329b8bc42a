package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/api"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/metrics"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction    bool
	ProdOrigins     []string
	DBPool          *pgxpool.Pool
	Logger          *zap.Logger
	QueryBufferSize int
	// Registry receives the service collectors. Nil means a fresh registry.
	Registry *prometheus.Registry
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router             *gin.Engine
	ReservationService reservation.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := metrics.NewWithRegistry(registry)

	// Reservation Module
	reservationRepo := reservation.NewPgxRepository(cfg.DBPool, cfg.QueryBufferSize)
	reservationService := reservation.NewService(reservationRepo, log, m)

	// API Router Config
	routerParams := api.Config{
		IsProduction:       cfg.IsProduction,
		ProdOrigins:        cfg.ProdOrigins,
		Logger:             log,
		Gatherer:           registry,
		ReservationService: reservationService,
	}
	if cfg.DBPool != nil {
		routerParams.DB = cfg.DBPool
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:             router,
		ReservationService: reservationService,
	}
}
