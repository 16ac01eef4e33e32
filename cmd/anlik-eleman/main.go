package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anlik-eleman/backend/internal/auth"
	"github.com/anlik-eleman/backend/internal/config"
	"github.com/anlik-eleman/backend/internal/database"
	"github.com/anlik-eleman/backend/internal/logging"
	"github.com/anlik-eleman/backend/internal/metrics"
	"github.com/anlik-eleman/backend/internal/server"
	"github.com/anlik-eleman/backend/internal/users"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	tokenIssuer   = "anlik-eleman-auth"
	tokenAudience = "authenticated"
	serverService = "anlik-eleman-server"
	clientService = "anlik-eleman-cli"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "anlik-eleman",
		Short:        "Anlık Eleman job board platform and client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		newServeCommand(),
		newAccountsCommand(),
		newSignUpCommand(),
		newSignInCommand(),
		newSignOutCommand(),
		newWhoAmICommand(),
		newProfileCommand(),
		newCategoriesCommand(),
		newJobsCommand(),
		newNotificationsCommand(),
		newApplicationsCommand(),
		newReviewsCommand(),
		newDashboardCommand(),
		newStatsCommand(),
		newAdminCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().Bool("autoconfirm", defaults.GetBool("auth.autoconfirm"), "Confirm new accounts without email verification")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-encoding", defaults.GetString("log.encoding"), "Log encoding (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Access token signing secret (overrides env)")
	cmd.PersistentFlags().String("anon-key", "", "Public API key sent by clients (overrides env)")
	cmd.PersistentFlags().String("platform-url", defaults.GetString("platform.url"), "Platform base URL used by client commands")
	cmd.PersistentFlags().String("session-file", defaults.GetString("client.session_file"), "Where client commands persist the session")
	cmd.PersistentFlags().String("locale", defaults.GetString("app.locale"), "Message language (tr, en)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.autoconfirm", "autoconfirm")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.encoding", "log-encoding")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.anon_key", "anon-key")
	bindFlag(cmd, "platform.url", "platform-url")
	bindFlag(cmd, "client.session_file", "session-file")
	bindFlag(cmd, "app.locale", "locale")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

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

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the identity and data platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if err := appConfig.ValidateServer(); err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Options{
		Level:    appConfig.LogLevel,
		Encoding: appConfig.LogEncoding,
		Service:  serverService,
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	accounts, err := users.NewService(users.ServiceConfig{
		Database:        db,
		Clock:           time.Now,
		Logger:          logger,
		AutoConfirm:     appConfig.AutoConfirm,
		SignupsDisabled: appConfig.DisableSignup,
		RefreshTTL:      appConfig.RefreshTTL,
	})
	if err != nil {
		return err
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        tokenIssuer,
		Audience:      tokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiter := server.NewRateLimiter(server.RateLimiterConfig{RequestsPerMinute: appConfig.RateLimitPerMinute})
	defer limiter.Stop()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:    accounts,
		Tokens:      tokenManager,
		Database:    db,
		AnonKey:     appConfig.AnonKey,
		Metrics:     metrics.NewCollector(registry),
		Gatherer:    registry,
		RateLimiter: limiter,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.Bool("autoconfirm", appConfig.AutoConfirm))
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

func newAccountsCommand() *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage platform accounts directly in the database",
	}
	accountsCmd.AddCommand(&cobra.Command{
		Use:   "confirm <email>",
		Short: "Mark an account's email address as confirmed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return confirmAccount(cmd, args[0])
		},
	})
	return accountsCmd
}

func confirmAccount(cmd *cobra.Command, email string) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logging.Options{
		Level:    appConfig.LogLevel,
		Encoding: appConfig.LogEncoding,
		Service:  clientService,
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	accounts, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	account, err := accounts.ConfirmEmail(cmd.Context(), email)
	if err != nil {
		return err
	}
	return printJSON(cmd, account.Identity())
}
