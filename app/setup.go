package app

import (
	"fmt"
	"log"

	"github.com/sahilchouksey/lms-api/api"
	"github.com/sahilchouksey/lms-api/config"
	"github.com/sahilchouksey/lms-api/database"
	"github.com/sahilchouksey/lms-api/router"
	"github.com/sahilchouksey/lms-api/services/cron"
	"github.com/sahilchouksey/lms-api/services/storage"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/cache"
	"github.com/sahilchouksey/lms-api/utils/metrics"
)

// SetupAndRunServer constructs every dependency in order, wires the route
// table and blocks serving HTTP until the listener fails. Optional pieces
// (Redis, Spaces) log a warning and leave their feature disabled instead of
// aborting startup.
func SetupAndRunServer() error {
	if err := config.LoadENV(); err != nil {
		// A missing .env is normal outside local development.
		log.Println("No .env file loaded:", err)
	}

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	store, err := database.StartGORM(cfg)
	if err != nil {
		log.Println("Check whether Postgres is running and the DB_* variables point at it")
		return err
	}

	if err := store.Init(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	db := store.GetDB()

	// Redis backs brute-force lockouts and course caching. Both degrade
	// gracefully, so a dead Redis only costs features, not startup.
	var redisCache *cache.RedisCache
	if cfg.Redis.URL != "" {
		redisCache, err = cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			log.Println("Redis unavailable, continuing without cache:", err)
			redisCache = nil
		}
	}

	revocations, err := auth.NewRevocationSet(cfg.Revocation.Backend, db, redisCache)
	if err != nil {
		return err
	}

	m := metrics.New()
	if sized, ok := revocations.(interface{ Size() int }); ok {
		m.RegisterRevocationSize(sized.Size)
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        cfg.JWT.Secret,
		Expiry:        cfg.JWT.AccessTokenExpiry,
		RefreshExpiry: cfg.JWT.RefreshTokenExpiry,
		Issuer:        cfg.JWT.Issuer,
	})

	// Playback tokens need a secret of their own; development falls back to
	// the JWT secret rather than requiring two env vars.
	if cfg.Playback.SigningSecret == "" {
		cfg.Playback.SigningSecret = cfg.JWT.Secret
	}

	var spaces *storage.SpacesClient
	if cfg.Storage.AccessKey != "" && cfg.Storage.SecretKey != "" && cfg.Storage.Bucket != "" {
		spaces, err = storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			CDNURL:    cfg.Storage.CDNDomain,
		})
		if err != nil {
			log.Println("Spaces unavailable, resource uploads disabled:", err)
			spaces = nil
		}
	} else {
		log.Println("Spaces credentials not set, resource uploads disabled")
	}

	var cronManager *cron.CronManager
	if cfg.Cron.Enabled {
		cronManager = cron.NewCronManager(db, revocations)
		if err := cronManager.Start(); err != nil {
			// Sweeps are hygiene, not correctness; the API still serves.
			log.Println("Warning: failed to start cron jobs:", err)
		}
	}

	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		_ = revocations.Close()
		if redisCache != nil {
			_ = redisCache.Close()
		}
		store.Close()
	}()

	server := api.NewAPIServer(fmt.Sprintf(":%d", cfg.Port))

	router.SetupRoutes(server.GetEngine(), router.Dependencies{
		Config:      cfg,
		DB:          db,
		RedisCache:  redisCache,
		JWTManager:  jwtManager,
		Revocations: revocations,
		Metrics:     m,
		Storage:     spaces,
	})

	return server.Run()
}
