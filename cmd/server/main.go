package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/negroni/v3"

	"github.com/Ccintegration/SAP-IS-CICD/api/rest/handlers"
	"github.com/Ccintegration/SAP-IS-CICD/api/rest/middleware"
	"github.com/Ccintegration/SAP-IS-CICD/api/rest/routes"
	"github.com/Ccintegration/SAP-IS-CICD/config"
	"github.com/Ccintegration/SAP-IS-CICD/core/configstore"
	"github.com/Ccintegration/SAP-IS-CICD/core/deployer"
	"github.com/Ccintegration/SAP-IS-CICD/core/repository"
	"github.com/Ccintegration/SAP-IS-CICD/providers/sap"
)

func main() {
	cfg := config.MustParse()
	initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Transport database is optional; the promotion flow works without it.
	var db *repository.DB
	var transportRepo *repository.TransportRepository
	if cfg.DatabaseURL != "" {
		var err error
		db, err = repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("transport database unavailable, transport endpoints disabled")
			db = nil
		} else {
			defer db.Close()
			transportRepo = repository.NewTransportRepository(db)
			log.Info().Msg("transport database connected")
		}
	}

	// Source tenant client
	sourceCreds, err := sap.ResolveCredentials(cfg.TenantsFile, cfg.SourceTenant)
	if err != nil {
		log.Fatal().Err(err).Str("tenant", cfg.SourceTenant).Msg("failed to resolve source tenant credentials")
	}
	sourceClient := sap.NewClient(sourceCreds)

	// Configuration parameter store
	configStore := configstore.New(cfg.ConfigurationsDir, cfg.EnvFolders)

	// Deployment sessions and executor
	sessions := deployer.NewSessionStore(cfg.SessionTTL)
	go sessions.StartJanitor(ctx)

	clientFactory := func(tenantName string) (deployer.TenantAPI, error) {
		creds, err := sap.ResolveCredentials(cfg.TenantsFile, tenantName)
		if err != nil {
			return nil, err
		}
		return sap.NewClient(creds), nil
	}
	executor := deployer.NewExecutor(sessions, configStore, clientFactory, cfg.SourceTenant)

	// Router and middleware
	r := mux.NewRouter()
	routes.SetupRoutes(r, executor, sessions, sourceClient, configStore, transportRepo)

	var pinger handlers.DBPinger
	if db != nil {
		pinger = db
	}
	r.HandleFunc("/health", handlers.NewHealthHandler(pinger, sourceClient).Health).Methods("GET")

	n := negroni.New(
		middleware.NewRecovery(),
		middleware.NewRequestID(),
		middleware.NewRequestLogger(),
	)
	n.UseHandler(r)

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.ServerPort),
		Handler: middleware.NewCORS(cfg.CORSAllowedOrigins).Handler(n),
	}

	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down server")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func initLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
