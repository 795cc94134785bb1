package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coughcrowd/backend/internal/audio"
	"github.com/coughcrowd/backend/internal/auth"
	"github.com/coughcrowd/backend/internal/blobstore"
	"github.com/coughcrowd/backend/internal/config"
	"github.com/coughcrowd/backend/internal/database"
	"github.com/coughcrowd/backend/internal/evaluation"
	"github.com/coughcrowd/backend/internal/ident"
	"github.com/coughcrowd/backend/internal/logging"
	"github.com/coughcrowd/backend/internal/participants"
	"github.com/coughcrowd/backend/internal/responses"
	"github.com/coughcrowd/backend/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coughcrowd-api",
		Short: "Conference audio-labeling backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("base-url", defaults.GetString("http.base_url"), "Public base URL encoded into participant QR links")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("upload-dir", defaults.GetString("uploads.dir"), "Directory holding uploaded audio payloads")
	cmd.PersistentFlags().String("admin-username", defaults.GetString("admin.username"), "Admin login username")
	cmd.PersistentFlags().String("admin-password-hash", "", "Bcrypt hash of the admin password (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Admin token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Admin token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.base_url", "base-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "uploads.dir", "upload-dir")
	bindFlag(cmd, "admin.username", "admin-username")
	bindFlag(cmd, "admin.password_hash", "admin-password-hash")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	blobs, err := blobstore.NewFilesystemStore(appConfig.UploadDir)
	if err != nil {
		return err
	}

	idProvider := ident.NewUUIDProvider()

	snippetStore, err := audio.NewStore(audio.StoreConfig{
		Database:   db,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	registry, err := participants.NewRegistry(participants.RegistryConfig{
		Database:   db,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ledger, err := responses.NewLedger(responses.LedgerConfig{
		Database:   db,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	sessionService, err := evaluation.NewService(evaluation.ServiceConfig{
		Database: db,
		Ledger:   ledger,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "coughcrowd-auth",
		Audience:      "coughcrowd-api",
		TokenTTL:      time.Duration(appConfig.TokenTTLMinutes) * time.Minute,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Snippets: snippetStore,
		Registry: registry,
		Ledger:   ledger,
		Sessions: sessionService,
		Blobs:    blobs,
		Prober:   audio.NewFixedProber(),
		Tokens:   tokenIssuer,
		Credentials: auth.Credentials{
			Username:     appConfig.AdminUsername,
			PasswordHash: appConfig.AdminPasswordHash,
		},
		BaseURL: appConfig.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
