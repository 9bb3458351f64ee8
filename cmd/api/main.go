package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/imemory/server/internal/auth"
	"github.com/imemory/server/internal/captcha"
	"github.com/imemory/server/internal/config"
	"github.com/imemory/server/internal/db"
	httphandler "github.com/imemory/server/internal/http"
	"github.com/imemory/server/internal/http/handlers"
	"github.com/imemory/server/internal/imagehost"
	"github.com/imemory/server/internal/logging"
	"github.com/imemory/server/internal/metrics"
	"github.com/imemory/server/internal/middleware"
	"github.com/imemory/server/internal/notes"
	"github.com/imemory/server/internal/notify"
	"github.com/imemory/server/internal/ratelimit"
	"github.com/imemory/server/internal/repo"
)

// closer releases a resource on shutdown.
type closer func(ctx context.Context) error

func main() {
	// Load .env from CWD or backend/ so it works from repo root (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("backend/.env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](closeCtx); err != nil {
				logger.Warn("failed to close resource", zap.Error(err))
			}
		}
	}()

	users, noteStore, storeClosers, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	closers = append(closers, storeClosers...)

	var m *metrics.Metrics
	var recorder auth.Recorder
	if cfg.MetricsEnabled {
		m = metrics.New("imemory")
		recorder = m
	}

	limitStore, limitCloser, err := openRateLimitStore(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, limitCloser)

	signupLimiter := ratelimit.New(limitStore, "signup", cfg.RateLimit.SignupMax, cfg.RateLimit.SignupWindow, logger)
	otpLimiter := ratelimit.New(limitStore, "otp", cfg.RateLimit.OTPMax, cfg.RateLimit.OTPWindow, logger)
	if m != nil {
		signupLimiter.OnReject(m.RateLimited)
		otpLimiter.OnReject(m.RateLimited)
	}

	dispatcher, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	images, err := buildImageHost(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var verifier captcha.Verifier = captcha.AllowAll{}
	if !cfg.DevMode {
		verifier = captcha.NewReCaptcha(cfg.Captcha.Secret, cfg.Captcha.VerifyURL, cfg.Captcha.Timeout, logger)
	} else {
		logger.Warn("DEV_MODE enabled: captcha bypassed and codes are logged instead of sent")
	}

	authService := auth.NewService(auth.Deps{
		Users:       users,
		OTP:         auth.NewOTPIssuer(cfg.Auth.OTPTTL),
		Tokens:      auth.NewJWTService(cfg.Auth.JWTSecret),
		Passwords:   auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Notifier:    dispatcher,
		Recorder:    recorder,
		Logger:      logger,
		TokenTTL:    cfg.Auth.TokenTTL,
		RememberTTL: cfg.Auth.RememberTokenTTL,
	})
	notesService := notes.NewService(noteStore, images, logger)

	var throttle *middleware.IPThrottle
	if cfg.IsProduction() {
		throttle = middleware.NewIPThrottle(1, 10)
		defer throttle.Close()
	}

	router := httphandler.NewRouter(httphandler.RouterDeps{
		Auth:           handlers.NewAuthHandler(authService, verifier, logger),
		Notes:          handlers.NewNotesHandler(notesService, cfg.Images.MaxUploadBytes, logger),
		Authenticator:  authService,
		SignupLimiter:  signupLimiter,
		OTPLimiter:     otpLimiter,
		Throttle:       throttle,
		Production:     cfg.IsProduction(),
		TrustProxy:     cfg.TrustProxy,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.Store.Driver),
			zap.String("images", cfg.Images.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := notesService.Wait(shutdownCtx); err != nil {
		logger.Warn("image cleanups still pending at shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repo.UserRepo, repo.NoteRepo, []closer, error) {
	switch cfg.Store.Driver {
	case "mongo":
		client, err := db.OpenMongo(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, nil, nil, err
		}
		database := client.Database(cfg.Store.MongoDatabase)
		if err := ensureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		logger.Info("connected to mongo", zap.String("database", cfg.Store.MongoDatabase))
		return repo.NewMongoUserRepo(database), repo.NewMongoNoteRepo(database),
			[]closer{client.Disconnect}, nil

	case "postgres":
		database, err := db.OpenPostgres(ctx, cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(database); err != nil {
			_ = database.Close()
			return nil, nil, nil, err
		}
		return repo.NewUserRepo(database), repo.NewNoteRepo(database),
			[]closer{func(context.Context) error { return database.Close() }}, nil

	default:
		logger.Warn("using the in-memory store; data is lost on restart")
		return repo.NewMemoryUserRepo(), repo.NewMemoryNoteRepo(), nil, nil
	}
}

func ensureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	if err := repo.EnsureUserIndexes(ctx, database); err != nil {
		return err
	}
	return repo.EnsureNoteIndexes(ctx, database)
}

func openRateLimitStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, closer, error) {
	if cfg.RateLimit.Backend == "redis" {
		client, err := db.OpenRedis(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.NewRedisStore(client), func(context.Context) error { return client.Close() }, nil
	}

	maxAge := cfg.RateLimit.SignupWindow
	if cfg.RateLimit.OTPWindow > maxAge {
		maxAge = cfg.RateLimit.OTPWindow
	}
	store := ratelimit.NewMemoryStore(maxAge)
	return store, func(context.Context) error { store.Close(); return nil }, nil
}

func buildNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notify.Dispatcher, error) {
	if cfg.DevMode {
		return notify.NewLogDispatcher(logger), nil
	}

	email, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}, logger)
	if err != nil {
		return nil, err
	}

	composite := notify.Composite{Email: email}
	if cfg.SMSEnabled() {
		sms, err := notify.NewSNSSender(ctx, notify.SNSConfig{
			Region:          cfg.SMS.Region,
			AccessKeyID:     cfg.SMS.AccessKeyID,
			SecretAccessKey: cfg.SMS.SecretAccessKey,
			SenderID:        cfg.SMS.SenderID,
			Timeout:         cfg.SMS.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		composite.SMS = sms
	} else {
		logger.Warn("AWS credentials not set; SMS delivery is disabled")
	}
	return composite, nil
}

func buildImageHost(ctx context.Context, cfg *config.Config, logger *zap.Logger) (imagehost.Host, error) {
	switch cfg.Images.Provider {
	case "cloudinary":
		return imagehost.NewCloudinary(
			cfg.Images.CloudinaryName,
			cfg.Images.CloudinaryAPIKey,
			cfg.Images.CloudinaryAPISecret,
			cfg.Images.CloudinaryFolder,
			logger,
		)
	case "minio":
		startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return imagehost.NewMinIO(startCtx, imagehost.MinIOConfig{
			Endpoint:  cfg.Images.MinIOEndpoint,
			AccessKey: cfg.Images.MinIOAccessKey,
			SecretKey: cfg.Images.MinIOSecretKey,
			Bucket:    cfg.Images.MinIOBucket,
			UseSSL:    cfg.Images.MinIOUseSSL,
			PublicURL: cfg.Images.MinIOPublicURL,
		}, logger)
	default:
		logger.Info("image uploads disabled")
		return imagehost.Disabled{}, nil
	}
}
