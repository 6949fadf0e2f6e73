package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"luna-backend/internal/config"
	"luna-backend/internal/database"
	"luna-backend/internal/handlers"
	"luna-backend/internal/repository"
	"luna-backend/internal/services"
	"luna-backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfgFile string

// Execute runs the root command
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "luna",
		Short:         "Luna pins backend service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "Path to configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	})
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

func newMigrateCommand() *cobra.Command {
	var down bool

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrations require the %q database driver", config.DriverPostgres)
			}

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
			if err != nil {
				log.Error().Err(err).Msg("Failed to connect to database")
				return err
			}
			defer pool.Close()

			if down {
				if err := database.RollbackLast(ctx, pool); err != nil {
					log.Error().Err(err).Msg("Rollback failed")
					return err
				}
				log.Info().Msg("Rolled back last migration")
				return nil
			}

			applied, err := database.Migrate(ctx, pool)
			if err != nil {
				log.Error().Err(err).Msg("Migration failed")
				return err
			}
			log.Info().Int("applied", applied).Msg("Migrations complete")
			return nil
		},
	}
	migrateCmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")

	return migrateCmd
}

// loadConfig reads the configuration file and configures the logger from it
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Error().Err(err).Str("path", cfgFile).Msg("Failed to load configuration")
		return nil, err
	}
	setupLogger(cfg.Log.Level)
	return cfg, nil
}

// openStore returns the configured store and a function that releases it
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory store; data is lost on exit")
		return repository.NewMemoryStore(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info().Int("applied", applied).Msg("Database migrations applied")
	}

	return repository.NewPostgresStore(pool), pool.Close, nil
}

// openObjectStore builds the configured object storage backend
func openObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageMinio:
		return storage.NewMinioStore(storage.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
		})
	default:
		return storage.NewS3Store(ctx, storage.S3Options{
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
		})
	}
}

func runServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open store")
		return err
	}
	defer closeStore()

	objectStore, err := openObjectStore(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to create object storage client")
		return err
	}

	// Initialize services
	userService := services.NewUserService(store, cfg.JWT.Secret, cfg.JWT.TokenTTL)
	pinService := services.NewPinService(store)
	partnershipService := services.NewPartnershipService(store)
	wsHub := services.NewWSHub()

	router := handlers.NewRouter(handlers.RouterDeps{
		DB:                 store,
		UserService:        userService,
		PinService:         pinService,
		PartnershipService: partnershipService,
		Hub:                wsHub,
		Storage:            handlers.NewStorageHandler(objectStore, cfg.Storage.Bucket, cfg.Storage.LocalDir),
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
		RequestLogging:     true,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("database", cfg.Database.Driver).
			Str("storage", cfg.Storage.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
			return err
		}
	case <-signalCtx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	log.Info().Msg("Server exited")
	return nil
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
