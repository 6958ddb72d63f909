package server

import (
	"context"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/auth"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/config"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/db"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/store"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/stream"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/tracking"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Stream  *stream.Hub
	Auth    *auth.Service
	Runtime *tracking.Runtime
}

// NewServer builds the runtime over st and mounts the bridge. Application keys
// are checked against Postgres when db is set; otherwise every key is accepted.
func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, st store.Store) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	var q db.Querier
	if pg != nil {
		q = pg
	}
	authSvc := auth.NewService(cfg.JWTSecret, q)

	var validator tracking.KeyValidator
	if q != nil {
		validator = authSvc
	}

	hub := stream.NewHub(redisClient, stream.RedisChannel(cfg.DriverID))
	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Stream: hub,
		Auth:   authSvc,
		Runtime: tracking.New(hub, st, validator, tracking.Options{
			AnalysisTimeout:  cfg.AnalysisReorderTimeout,
			AnalysisCapacity: cfg.AnalysisBufferSize,
		}),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), s.Auth)
	tracking.RegisterRoutes(s.App.Group("/v1"), s.Runtime, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

// SetupFromConfig sets the runtime up for the configured driver. It does
// nothing when no driver or application key is configured.
func (s *Server) SetupFromConfig(ctx context.Context) error {
	if s.Cfg.DriverID == "" || s.Cfg.ApplicationKey == "" {
		return nil
	}
	return s.Runtime.Setup(ctx, tracking.Config{
		ApplicationKey:            s.Cfg.ApplicationKey,
		DriverID:                  s.Cfg.DriverID,
		Mode:                      trip.ParseMode(s.Cfg.DriveDetectionMode),
		Region:                    tracking.Region(s.Cfg.Region),
		MultipleAccidentCallbacks: s.Cfg.MultipleAccidentCallbacks,
	}, nil)
}

// Close flushes events already published to stream clients, then stops the
// runtime and the event stream.
func (s *Server) Close() error {
	s.Stream.Sync()
	err := s.Runtime.Close()
	s.Stream.Close()
	return err
}
