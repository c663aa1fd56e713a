package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gofiber/fiber/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	identity "github.com/coursekit/go-identity"
	smtpmailer "github.com/coursekit/go-identity/mailer/smtp"
	s3storage "github.com/coursekit/go-identity/storage/s3"
)

type appConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":3000"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"file:identity.db?cache=shared&_pragma=foreign_keys(1)"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	SigningKey      string `env:"JWT_SIGNING_KEY,required"`
	TokenExpiration int    `env:"JWT_EXPIRATION_HOURS" envDefault:"168"`
	TokenIssuer     string `env:"JWT_ISSUER" envDefault:"coursekit"`
	TokenAudience   string `env:"JWT_AUDIENCE" envDefault:"coursekit:api"`

	UploadsDir    string        `env:"UPLOADS_DIR" envDefault:"uploads"`
	ResetURL      string        `env:"RESET_URL" envDefault:"http://localhost:3000/reset-password"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3BaseEndpoint  string `env:"S3_BASE_ENDPOINT"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
}

// slogAdapter maps the identity printf-style logger onto slog.
type slogAdapter struct {
	l *slog.Logger
}

func (s slogAdapter) Debug(format string, args ...any) { s.l.Debug(fmt.Sprintf(format, args...)) }
func (s slogAdapter) Info(format string, args ...any)  { s.l.Info(fmt.Sprintf(format, args...)) }
func (s slogAdapter) Warn(format string, args ...any)  { s.l.Warn(fmt.Sprintf(format, args...)) }
func (s slogAdapter) Error(format string, args ...any) { s.l.Error(fmt.Sprintf(format, args...)) }

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := appConfig{}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slogAdapter{l: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	ctx := context.Background()
	if _, err := db.NewCreateTable().
		Model((*identity.Account)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("migrate accounts table: %w", err)
	}

	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}

	store := identity.NewCredentialStore(db)

	tokens := identity.NewTokenService(
		[]byte(cfg.SigningKey),
		cfg.TokenExpiration,
		cfg.TokenIssuer,
		[]string{cfg.TokenAudience},
	).WithLogger(logger)

	guard := identity.NewAuthorizationGuard(tokens).WithLogger(logger)

	svc := identity.NewIdentityService(store, tokens).
		WithLogger(logger).
		WithResetFlow(identity.NewResetTokenFlow(cfg.ResetTokenTTL)).
		WithResetURL(cfg.ResetURL)

	if cfg.SMTPHost != "" {
		svc = svc.WithMailer(smtpmailer.New(smtpmailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}))
	}

	var worker *identity.AvatarIngestionWorker
	if cfg.S3Bucket != "" {
		storage, err := s3storage.New(ctx, s3storage.Config{
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			BaseEndpoint:  cfg.S3BaseEndpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}

		worker = identity.NewAvatarIngestionWorker(store, storage).WithLogger(logger)
		svc = svc.WithObjectStorage(storage).WithAvatarWorker(worker)
	}

	controller := identity.NewHTTPController(svc, guard,
		identity.WithControllerLogger(logger),
		identity.WithSecureCookies(cfg.SecureCookies),
		identity.WithUploadsDir(cfg.UploadsDir),
		identity.WithCookieTTL(time.Duration(cfg.TokenExpiration)*time.Hour),
	)
	controller.Debug = cfg.Debug

	app := fiber.New(fiber.Config{
		AppName:   "coursekit-identity",
		BodyLimit: 10 * 1024 * 1024,
	})

	controller.RegisterRoutes(app.Group("/api/v1/user"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down signal=%s", sig)
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server shutdown: %v", err)
	}

	// Let in-flight avatar ingestions finish before the process exits.
	if worker != nil {
		worker.Wait()
	}

	return nil
}
