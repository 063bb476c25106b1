package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/unrolled/secure"
	"golang.org/x/sync/errgroup"

	"finance-tracker/internal/config"
	"finance-tracker/internal/fx"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/identity"
	"finance-tracker/internal/logging"
	"finance-tracker/internal/service"
	"finance-tracker/internal/session"
	"finance-tracker/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("godotenv.Load")
	}

	envConfig, err := config.ProcessEnvironmentVariables()
	if err != nil {
		logrus.WithError(err).Fatal("config.ProcessEnvironmentVariables")
	}

	logger := logging.SetupLogging(envConfig.LogLevel, os.Stdout)
	logger.Info("finance-tracker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, envConfig, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("finance-tracker stopped")
}

// dependencies are the collaborators the router is built from.
type dependencies struct {
	cfg          *config.Config
	log          *logrus.Logger
	db           *storage.DB
	sessions     *session.Manager
	provider     handlers.Provider
	transactions *service.TransactionService
	rates        *fx.Client
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	db, err := storage.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		store session.Store = db
		cache fx.Cache      = fx.NewMemoryCache()
	)
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		store = session.NewRedisStore(rdb, "")
		cache = fx.NewRedisCache(rdb)
		logger.WithField("addr", cfg.RedisAddr).Info("using redis for sessions and rates")
	}

	sessions, err := session.NewManager(store, session.Options{
		CookieName: cfg.SessionCookieName,
		Secret:     cfg.SessionSecret,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.SecureCookies(),
		SameSite:   cfg.SameSite(),
	})
	if err != nil {
		return err
	}

	deps := dependencies{
		cfg:      cfg,
		log:      logger,
		db:       db,
		sessions: sessions,
		provider: identity.NewGoogle(identity.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  cfg.GoogleCallbackURL,
			AuthURL:      cfg.GoogleAuthURL,
			TokenURL:     cfg.GoogleTokenURL,
			UserInfoURL:  cfg.GoogleUserInfoURL,
		}),
		transactions: service.NewTransactionService(db),
		rates:        fx.NewClient(cfg.FXBaseURL, cache, cfg.FXCacheTTL),
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(deps),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", server.Addr).Info("HttpServer.Serve.listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("HttpServer.Serve.shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if !cfg.RedisEnabled() {
		g.Go(func() error {
			return pruneSessions(gctx, db, cfg.SessionPruneInterval, logger)
		})
	}

	return g.Wait()
}

type sessionPruner interface {
	CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// pruneSessions deletes expired sessions every interval until ctx is done.
func pruneSessions(ctx context.Context, store sessionPruner, interval time.Duration, logger *logrus.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := store.CleanExpiredSessions(ctx, time.Now())
			if err != nil {
				logger.WithError(err).Warn("SessionPruner.failed")
				continue
			}
			if n > 0 {
				logger.WithField("deleted", n).Info("SessionPruner.pruned")
			}
		}
	}
}

func setupRouter(deps dependencies) http.Handler {
	mux := http.NewServeMux()

	api := humago.New(mux, handlers.APIConfig())
	handlers.NewTransactionHandler(deps.transactions).Register(api)
	handlers.NewExchangeRateHandler(deps.rates).Register(api)

	h := handlers.NewHandlers(deps.sessions, deps.provider, deps.db, deps.db, deps.cfg.AppOrigin, deps.cfg.LoginFailURL)
	h.Routes(mux, deps.log)

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		STSSeconds:         31536000,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   deps.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	var handler http.Handler = mux
	handler = deps.sessions.Middleware(handler)
	handler = secureMiddleware.Handler(handler)
	handler = corsMiddleware.Handler(handler)
	return logging.Middleware(deps.log)(handler)
}
