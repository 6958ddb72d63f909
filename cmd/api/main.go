package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/auth"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/config"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/db"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/logger"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/server"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	openStore       func(config.Config, *pgxpool.Pool) (store.Store, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, store.Store, <-chan os.Signal, ListenFunc) error
	args            []string
	stdout          io.Writer
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		openStore:       openStore,
		notify:          signal.Notify,
		run:             Run,
		args:            os.Args[1:],
		stdout:          os.Stdout,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Debug: cfg.LogDebug}); err != nil {
		logger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level, using info")
	}

	var pg *pgxpool.Pool
	if cfg.PostgresURL != "" {
		var err error
		pg, err = deps.connectPostgres(cfg)
		if err != nil {
			logger.Error().Err(err).Msg("postgres connection failed")
		}
	}
	if pg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := auth.NewService(cfg.JWTSecret, pg).Migrate(ctx); err != nil {
			logger.Error().Err(err).Msg("application key schema migration failed")
		}
		cancel()
	}

	if len(deps.args) > 0 && deps.args[0] == "create-key" {
		provisionKey(cfg, pg, deps)
		return
	}

	rdb := deps.connectRedis(cfg)

	st, err := deps.openStore(cfg, pg)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("open store failed")
		if pg != nil {
			pg.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		return
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, st, signals, nil); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
	}
}

func provisionKey(cfg config.Config, pg *pgxpool.Pool, deps mainDeps) {
	if pg == nil {
		logger.Error().Err(errNoPostgres).Msg("create-key needs the key database")
		return
	}
	defer pg.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := createKey(ctx, deps.args[1:], auth.NewService(cfg.JWTSecret, pg), deps.stdout); err != nil {
		logger.Error().Err(err).Msg("create application key failed")
	}
}

var errNoPostgres = errors.New("postgres store requires POSTGRES_URL")

// openStore picks the persisted state backend: the on-device SQLite file, or
// the Postgres mirror scoped to the configured driver.
func openStore(cfg config.Config, pg *pgxpool.Pool) (store.Store, error) {
	if cfg.StoreDriver != "postgres" {
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	if pg == nil {
		return nil, errNoPostgres
	}
	st := store.NewPostgres(pg, cfg.DriverID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP bridge and waits for termination signals. On the way out
// it stops the bridge and the runtime together, then releases the stores.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, st store.Store, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, pg, rdb, st)
	defer release(st, pg, rdb)

	if err := srv.SetupFromConfig(ctx); err != nil {
		logger.Warn().Err(err).Str("driver_id", cfg.DriverID).Msg("runtime setup from config failed")
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = srv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error { return shutdownFn(srv.App, gctx) })
	g.Go(srv.Close)
	return g.Wait()
}

func release(st store.Store, pg *pgxpool.Pool, rdb *redis.Client) {
	if st != nil {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("close store")
		}
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
