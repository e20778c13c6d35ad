package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	// The profile zone must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/together/internal/auth"
	"github.com/MrSnakeDoc/together/internal/config"
	"github.com/MrSnakeDoc/together/internal/gallery"
	"github.com/MrSnakeDoc/together/internal/httpserver"
	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/journal"
	"github.com/MrSnakeDoc/together/internal/logger"
	"github.com/MrSnakeDoc/together/internal/profile"
	"github.com/MrSnakeDoc/together/internal/redis"
	"github.com/MrSnakeDoc/together/internal/scheduler"
	badgerstore "github.com/MrSnakeDoc/together/internal/store/badger"
	filestore "github.com/MrSnakeDoc/together/internal/store/file"
	redisstore "github.com/MrSnakeDoc/together/internal/store/redis"
	"github.com/MrSnakeDoc/together/internal/utils"
	"github.com/MrSnakeDoc/together/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	badger      *badgerstore.JournalDB
	sweeper     *scheduler.TempSweeper
}

// New builds every component from the environment. Only a broken
// configuration or an unusable local backend is fatal: an unreachable
// Redis at startup leaves the journal on its secondary until it comes back.
func New(ctx context.Context) (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	a := &App{cfg: cfg, logger: loggerClient}

	prof, err := profile.NewLoader(cfg.ProfileFile).Load()
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	cal, err := prof.Calendar(nil)
	if err != nil {
		return nil, fmt.Errorf("profile calendar: %w", err)
	}
	loggerClient.Info("profile loaded",
		logger.String("title", prof.Title),
		logger.String("start_date", prof.StartDate),
		logger.String("timezone", prof.Timezone))

	if cfg.RedisAddr != "" {
		a.redisClient, err = a.connectRedis(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		loggerClient.Info("no redis configured, journal runs on its local backend only")
	}

	secondary, err := a.buildJournalSecondary()
	if err != nil {
		a.close()
		return nil, err
	}
	journalStore := journal.NewStore(journal.Options{
		Primary:      a.journalPrimary(),
		Secondary:    secondary,
		Clock:        cal.Now,
		DateLayout:   cal.DateLayout(),
		ProbeTimeout: cfg.RedisPingTimeout,
		Logger:       loggerClient,
	})

	images, err := a.buildGalleryBackend(ctx, cal.Now)
	if err != nil {
		a.close()
		return nil, err
	}
	galleryStore := gallery.NewStore(gallery.Options{
		Backend:      images,
		MaxBytes:     cfg.MaxUploadBytes,
		ProbeTimeout: cfg.RedisPingTimeout,
		Logger:       loggerClient,
	})

	password, err := auth.NewPassword(cfg.PasswordHash, cfg.Password)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("password: %w", err)
	}
	sessions, err := auth.NewSessions(cfg.SecretKey, cfg.SessionTTL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("sessions: %w", err)
	}

	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		Profile:         prof,
		Calendar:        cal,
		Journal:         journalStore,
		Gallery:         galleryStore,
		Sessions:        sessions,
		Password:        password,
		RedisClient:     a.redisClient,
		Constrained:     cfg.Constrained,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		LoginRateLimit:  cfg.LoginRateLimit,
		LoginRateWindow: cfg.LoginRateWindow,
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a, nil
}

func (a *App) connectRedis(ctx context.Context) (*goredis.Client, error) {
	cfg := a.cfg
	a.logger.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
	}, a.logger)
	if client == nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if err != nil {
		a.logger.Warn("redis not ready, starting without it", logger.Error(err))
		return client, nil
	}
	a.logger.Info("Redis initialized successfully")
	return client, nil
}

// journalPrimary is nil, not a typed nil, without Redis.
func (a *App) journalPrimary() journal.Backend {
	if a.redisClient == nil {
		return nil
	}
	return redisstore.NewStore(a.redisClient).Journal()
}

func (a *App) buildJournalSecondary() (journal.Backend, error) {
	switch a.cfg.JournalFallback {
	case config.JournalFallbackBadger:
		db, err := badgerstore.Open(badgerstore.Options{Path: a.cfg.BadgerDir})
		if err != nil {
			return nil, fmt.Errorf("open badger journal: %w", err)
		}
		a.badger = db
		a.logger.Info("journal secondary: badger", logger.String("dir", a.cfg.BadgerDir))
		return db, nil
	default:
		f := filestore.NewJournalFile(a.cfg.JournalFile)
		if err := f.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("journal file: %w", err)
		}
		a.logger.Info("journal secondary: file", logger.String("path", f.Path()))
		return f, nil
	}
}

func (a *App) buildGalleryBackend(ctx context.Context, now func() time.Time) (gallery.Backend, error) {
	cfg := a.cfg
	switch cfg.ImageBackend {
	case config.ImageBackendS3:
		b, err := gallery.NewS3(ctx, gallery.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 images: %w", err)
		}
		a.logger.Info("images: s3", logger.String("bucket", cfg.S3Bucket), logger.String("prefix", cfg.S3Prefix))
		return b, nil

	case config.ImageBackendRedis:
		if a.redisClient == nil {
			return nil, fmt.Errorf("redis images: %w", redis.ErrNotReady)
		}
		a.logger.Info("images: redis")
		return redisstore.NewStore(a.redisClient, redisstore.WithClock(now)).Blobs(), nil

	default:
		local := gallery.NewLocal(cfg.ImageDir)
		if err := local.Ping(ctx); err != nil {
			return nil, fmt.Errorf("image directory: %w", err)
		}
		a.sweeper = scheduler.NewTempSweeper(local.Dir(), a.logger, cfg.SweepInterval, cfg.SweepMaxAge)
		a.logger.Info("images: local", logger.String("dir", local.Dir()))
		return local, nil
	}
}

func (a *App) Run() error {
	a.logger.Infof("💞 Starting Together v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Together %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.sweeper != nil {
		a.sweeper.Start(ctx)
		a.logger.Info("temp sweeper started", logger.Duration("interval", a.cfg.SweepInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.close()
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.close()
	a.logger.Info("✅ Together stopped cleanly")
	_ = a.logger.Sync()
	return nil
}

// close releases the long-lived handles. Safe on a partially built App.
func (a *App) close() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.badger != nil {
		utils.CloseLogged(a.badger, "badger", a.logger)
	}
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
}
