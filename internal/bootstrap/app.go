package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisstore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"dsr-backend/internal/files"
	"dsr-backend/internal/queue"
	"dsr-backend/internal/services/health"
	"dsr-backend/internal/shared/config"
	"dsr-backend/internal/shared/server"
	"dsr-backend/internal/shared/server/middleware"
	"dsr-backend/internal/shared/storage/db"
	"dsr-backend/internal/shared/storage/object"
	localstore "dsr-backend/internal/shared/storage/object/local"
	s3store "dsr-backend/internal/shared/storage/object/s3"
	"dsr-backend/internal/shared/telemetry"
	"dsr-backend/internal/users"
)

const redisPoolSize = 10

// App holds shared dependencies and the wired router.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Store        object.ObjectStore
	SessionStore sessions.Store
	FilesRepo    files.Repo
	UsersRepo    users.Repo
	FilesService *files.Service
	UsersService *users.Service
	FilesHandler *files.Handler
	UsersHandler *users.Handler
	Health       *health.Service
}

// Build prepares dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	telemetry.SetLevel(cfg.LogLevel)
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessionStore, err := buildSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:       cfg,
		DB:           sqlDB,
		Store:        store,
		SessionStore: sessionStore,
	}
	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:       app.Config,
		SessionStore: app.SessionStore,
		FilesHandler: app.FilesHandler,
		UsersHandler: app.UsersHandler,
		Health:       app.Health,
		RateLimiter:  middleware.NewRateLimiter(nil),
		ActiveUser:   app.UsersService.IsActive,
	})

	return app, nil
}

// Close releases the database pool, if any.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		ConnMaxIdleTime: cfg.DBConnIdleTime,
		PingTimeout:     cfg.DBPingTimeout,
	}
	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.LambdaOptions(opts))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.StorageDriver {
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			ForcePathStyle:  cfg.S3ForcePathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			KMSKeyID:        cfg.S3KMSKeyID,
			SSE:             cfg.S3SSE,
		})
	default:
		return localstore.New(cfg.UploadsPath)
	}
}

func buildSessionStore(cfg config.Config) (sessions.Store, error) {
	opts := sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	}
	secret := []byte(cfg.SessionSecret)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		ropt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		store, err := redisstore.NewStore(redisPoolSize, ropt.Network, ropt.Addr, ropt.Username, ropt.Password, secret)
		if err != nil {
			return nil, fmt.Errorf("connect session redis: %w", err)
		}
		store.Options(opts)
		return store, nil
	}

	store := cookie.NewStore(secret)
	store.Options(opts)
	return store, nil
}

func buildEvents(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.EventsQueueURL) == "" {
		return queue.Nop{}, nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.EventsQueueURL, cfg.EventsRegion)
	if err != nil {
		return nil, fmt.Errorf("file events queue: %w", err)
	}
	return client, nil
}

func buildServices(ctx context.Context, app *App) error {
	if app.DB != nil {
		app.FilesRepo = &files.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
	} else {
		app.FilesRepo = files.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	app.UsersService = users.NewService(app.UsersRepo)
	if err := app.UsersService.EnsureAdmin(ctx, app.Config.AdminUsername, app.Config.AdminPassword); err != nil {
		return err
	}
	app.FilesService = files.NewService(app.Store, app.FilesRepo, app.Config.MaxUploadBytes)
	events, err := buildEvents(ctx, app.Config)
	if err != nil {
		return err
	}
	app.FilesService.Events = events

	app.FilesHandler = files.NewHandler(app.FilesService)
	app.UsersHandler = users.NewHandler(app.UsersService)
	app.Health = health.NewService(app.DB, app.Store.Provider())
	return nil
}
