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

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pharmalink/pharmalink/internal/config"
	"github.com/pharmalink/pharmalink/internal/domain/catalog"
	"github.com/pharmalink/pharmalink/internal/domain/identity"
	"github.com/pharmalink/pharmalink/internal/domain/interaction"
	"github.com/pharmalink/pharmalink/internal/domain/prescription"
	"github.com/pharmalink/pharmalink/internal/domain/session"
	"github.com/pharmalink/pharmalink/internal/platform/auth"
	"github.com/pharmalink/pharmalink/internal/platform/db"
	"github.com/pharmalink/pharmalink/internal/platform/middleware"
	"github.com/pharmalink/pharmalink/internal/platform/notification"
)

// patientFinderAdapter adapts the identity service to session.PatientFinder,
// translating the identity package's not-found sentinel into the one the
// session package documents.
type patientFinderAdapter struct {
	identity *identity.Service
}

func (a *patientFinderAdapter) FindPatientIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	id, err := a.identity.FindPatientIDByEmail(ctx, email)
	if errors.Is(err, identity.ErrUserNotFound) {
		return uuid.Nil, session.ErrPatientNotFound
	}
	return id, err
}

// doctorInfoAdapter adapts the identity service to
// prescription.DoctorInfoProvider. A deleted doctor maps to (nil, nil) so
// the listing skips the prescription instead of failing.
type doctorInfoAdapter struct {
	identity *identity.Service
}

func (a *doctorInfoAdapter) DoctorInfo(ctx context.Context, id uuid.UUID) (*prescription.DoctorInfo, error) {
	info, err := a.identity.DoctorProfile(ctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prescription.DoctorInfo{
		ID:        info.ID,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Image:     info.Image,
	}, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "pharmalink-server",
		Short: "PharmaLink API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the PharmaLink API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// OTP mail transport. Development without an SMTP host logs the mail
	// instead of sending it.
	var mailer notification.EmailSender
	if cfg.SMTPHost != "" {
		mailer = &notification.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}
	} else {
		logger.Warn().Msg("SMTP_HOST not set; OTP mail will be logged, not delivered")
		mailer = &notification.LogSender{Logger: logger}
	}

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		// Dev fallback; Validate rejects this in production.
		jwtSecret = []byte("pharmalink-dev-secret")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Error bodies are {"error": "..."} across the whole API.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := interface{}("Internal Server Error")
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = he.Message
		}
		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]interface{}{"error": msg})
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// -- Repositories --
	doctorRepo := identity.NewDoctorRepoPG(pool)
	patientRepo := identity.NewPatientRepoPG(pool)
	drugRepo := catalog.NewDrugRepoPG(pool)
	interactionRepo := catalog.NewInteractionRepoPG(pool)
	sessionRepo := session.NewSessionRepoPG(pool)
	prescriptionRepo := prescription.NewPrescriptionRepoPG(pool)
	tokenStore := auth.NewPGTokenStore(pool)

	// -- Services --
	identitySvc := identity.NewService(doctorRepo, patientRepo, tokenStore, jwtSecret)
	identitySvc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})
	catalogSvc := catalog.NewService(drugRepo)
	sessionSvc := session.NewService(sessionRepo, &patientFinderAdapter{identity: identitySvc}, mailer, logger)
	prescriptionSvc := prescription.NewService(prescriptionRepo, sessionSvc, catalogSvc, &doctorInfoAdapter{identity: identitySvc})
	interactionSvc := interaction.NewService(interactionRepo, catalogSvc, prescriptionRepo, sessionSvc)

	// -- Route groups --
	authGroup := e.Group("/api/auth")
	doctorGroup := e.Group("/api/doctor", auth.Middleware(tokenStore, identitySvc, auth.RoleDoctor))
	patientGroup := e.Group("/api/patient", auth.Middleware(tokenStore, identitySvc, auth.RolePatient))
	medicineGroup := e.Group("/api/medicines")

	// -- Handlers --
	identityHandler := identity.NewHandler(identitySvc)
	identityHandler.RegisterAuthRoutes(authGroup)
	identityHandler.RegisterPatientRoutes(patientGroup)

	catalogHandler := catalog.NewHandler(catalogSvc)
	catalogHandler.RegisterRoutes(medicineGroup)

	sessionHandler := session.NewHandler(sessionSvc)
	sessionHandler.RegisterRoutes(doctorGroup)

	prescriptionHandler := prescription.NewHandler(prescriptionSvc)
	prescriptionHandler.RegisterDoctorRoutes(doctorGroup)
	prescriptionHandler.RegisterPatientRoutes(patientGroup)

	interactionHandler := interaction.NewHandler(interactionSvc)
	interactionHandler.RegisterDoctorRoutes(doctorGroup)
	interactionHandler.RegisterPatientRoutes(patientGroup)

	// Background sweep for expired sessions. Expiry is enforced lazily on
	// read; the sweeper keeps the table tidy for sessions nobody touches.
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	sweeper := session.NewSweeper(sessionRepo, cfg.SweepInterval, logger)
	go sweeper.Start(sweepCtx)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
