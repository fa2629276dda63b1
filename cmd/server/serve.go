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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/prasenjit/go-modulus/internal/api"
	"github.com/prasenjit/go-modulus/internal/config"
	"github.com/prasenjit/go-modulus/internal/generator"
	"github.com/prasenjit/go-modulus/internal/keys"
	"github.com/prasenjit/go-modulus/internal/logging"
	"github.com/prasenjit/go-modulus/internal/mocks/okta"
	"github.com/prasenjit/go-modulus/internal/mocks/simstatus"
	"github.com/prasenjit/go-modulus/internal/mocks/transactions"
	"github.com/prasenjit/go-modulus/internal/models"
	"github.com/prasenjit/go-modulus/internal/openapi"
	"github.com/prasenjit/go-modulus/internal/resolver"
	"github.com/prasenjit/go-modulus/internal/service"
	"github.com/prasenjit/go-modulus/internal/stats"
	"github.com/prasenjit/go-modulus/internal/storage"
	"github.com/prasenjit/go-modulus/internal/tracing"
)

// Names under which the built-in handlers are referenced from index.yaml
// and proxy.yaml files
const (
	oktaHandler         = "okta"
	transactionsHandler = "transaction-details"
	simStatusHandler    = "sim-status"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Go-Modulus server",
	Long: `Starts the Go-Modulus mock server.

The server will:
  - Load every service directory under mocks.root
  - Mount each service at <mocks.prefix>/<directory name>
  - Expose the Admin API at /_api/

Configuration is loaded from config.yaml in the current directory,
or specify a custom config file with the --config flag.`,
	RunE: runServe,
}

var portFlag int

func init() {
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Override server port")
	serveCmd.Flags().String("mocks", "", "Override the mocks root directory")

	// Bind flags to viper
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("mocks.root", serveCmd.Flags().Lookup("mocks"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override port if flag was explicitly set
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	server, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("starting Go-Modulus server",
			zap.String("addr", server.Addr),
			zap.String("mocks", cfg.Mocks.Prefix),
			zap.String("admin", "/_api"),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// newServer wires the whole application behind one http.Server
func newServer(cfg *config.Config, logger *zap.Logger) (*http.Server, error) {
	catalog, err := newCatalog(cfg.OAuth, logger)
	if err != nil {
		return nil, err
	}

	store := storage.NewMemoryStorage()
	if err := store.CreateCollection(models.ResponsesCollection); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	statsCollector := stats.NewCollector()

	var tracingService *tracing.Service
	if cfg.Tracing.Enabled {
		tracingService = tracing.NewService(cfg.Tracing.MaxTraces)
	}

	var generators []*generator.Generator
	genFile := cfg.GeneratorsFile()
	genConfigs, err := generator.LoadConfigs(genFile)
	if err != nil {
		logger.Warn("no field generators loaded", zap.String("file", genFile), zap.Error(err))
	} else {
		generators = generator.Build(genConfigs)
		logger.Info("field generators loaded", zap.String("file", genFile), zap.Int("generators", len(generators)))
	}

	registry, err := service.NewLoader(catalog, cfg.Mocks.Prefix, logger).Load(cfg.Mocks.Root)
	if err != nil {
		return nil, err
	}

	engine := resolver.NewEngine(store, statsCollector, tracingService, logger)

	router := api.NewRouter(api.Dependencies{
		Store:      store,
		Registry:   registry,
		Engine:     engine,
		Generators: generators,
		Stats:      statsCollector,
		Tracing:    tracingService,
		DocInfo:    openapi.Info{Title: "Go-Modulus mocks", Version: "1.0.0"},
		Logger:     logger,
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

// newCatalog registers the built-in code services and proxy handlers
func newCatalog(cfg config.OAuthConfig, logger *zap.Logger) (*service.Catalog, error) {
	keyManager := keys.NewManager(cfg.KeyFile, cfg.StorePath)
	key, err := keyManager.PrivateKey(cfg.AutoGenerate)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth signing key: %w", err)
	}
	logger.Info("using OAuth signing key", zap.String("path", keyManager.KeyPath()))

	catalog := service.NewCatalog()
	catalog.RegisterService(oktaHandler, okta.New(key, logger.Named("okta")))
	catalog.RegisterService(transactionsHandler, transactions.New(0))
	catalog.RegisterProxy(simStatusHandler, simstatus.Handler)
	return catalog, nil
}
