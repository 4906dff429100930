package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/lanternhq/lantern/pkg/config"
	"github.com/lanternhq/lantern/pkg/exchange"
	"github.com/lanternhq/lantern/pkg/handlers"
	"github.com/lanternhq/lantern/pkg/metrics"
	"github.com/lanternhq/lantern/pkg/middleware"
	"github.com/lanternhq/lantern/pkg/scheduler"
	"github.com/lanternhq/lantern/pkg/storage"
	"github.com/lanternhq/lantern/pkg/storage/dynamodb"
	"github.com/lanternhq/lantern/pkg/storage/local"
	"github.com/lanternhq/lantern/pkg/sync"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	engineCfg := exchange.Config{
		MaxTrustLevel:       cfg.MaxTrustLevel,
		ElderHelpThreshold:  cfg.ElderHelpThreshold,
		ElderTrustThreshold: cfg.ElderTrustThreshold,
		WelcomeGrant:        cfg.WelcomeGrant,
		HoardLimit:          cfg.HoardLimit,
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.NewStructuredLogger(logger))
	router.Use(chimiddleware.Recoverer)

	var store storage.Storage
	var deliverer scheduler.Scheduler

	if cfg.Remote() {
		store, deliverer = buildRemote(cfg, logger)
	} else {
		localStore := local.New()
		store = localStore
		deliverer = &scheduler.InlineScheduler{Members: localStore, Recipients: localStore}
		startSync(cfg, localStore, router, logger)
	}

	engine := exchange.New(store, deliverer, engineCfg, logger)
	handler := handlers.NewApiHandler(engine, store)

	router.Mount("/", metrics.InstrumentHandler(handler.Routes()))
	router.Mount("/metrics", metrics.Handler())

	logger.Info("starting server", "port", cfg.HTTPPort, "mode", cfg.StorageMode)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// buildRemote wires the authoritative DynamoDB backend and the SQS gift
// delivery queue.
func buildRemote(cfg *config.Config, logger *slog.Logger) (storage.Storage, scheduler.Scheduler) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("unable to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	tables := dynamodb.Tables{
		Members:            cfg.MembersTable,
		Flares:             cfg.FlaresTable,
		HelpRequests:       cfg.HelpRequestsTable,
		Ledger:             cfg.LedgerTable,
		Connections:        cfg.ConnectionsTable,
		ConnectionRequests: cfg.ConnectionRequestsTable,
		Invites:            cfg.InvitesTable,
		Announcements:      cfg.AnnouncementsTable,
		Recipients:         cfg.RecipientsTable,
	}
	if tables.Members == "" || tables.Flares == "" || tables.Ledger == "" {
		logger.Error("one or more DynamoDB table name environment variables are not set")
		os.Exit(1)
	}
	if cfg.GiftQueueURL == "" {
		logger.Error("SQS_GIFT_QUEUE_URL environment variable not set")
		os.Exit(1)
	}

	store := dynamodb.New(awsdynamodb.NewFromConfig(awsCfg), tables)
	deliverer := scheduler.NewSQSScheduler(sqs.NewFromConfig(awsCfg), cfg.GiftQueueURL)
	return store, deliverer
}

// startSync attaches the sync coordinator to a local store. With a hub
// address configured the node dials the relay; otherwise it hosts one at
// /sync for peers and runs standalone with snapshot persistence.
func startSync(cfg *config.Config, store *local.Store, router chi.Router, logger *slog.Logger) {
	files := &sync.SnapshotStore{Dir: cfg.SyncDataDir}

	var transport sync.Transport
	if cfg.SyncHubAddr != "" {
		t, err := sync.Dial(context.Background(), cfg.SyncHubAddr)
		if err != nil {
			logger.Error("unable to reach sync hub", "addr", cfg.SyncHubAddr, "error", err)
			os.Exit(1)
		}
		transport = t
	} else {
		router.Handle("/sync", sync.NewHub(logger))
		transport = sync.NewMemoryBus().Join()
	}

	coordinator := sync.NewCoordinator(store, transport, files, cfg.SyncPollInterval, logger)
	go func() {
		if err := coordinator.Run(context.Background()); err != nil && err != context.Canceled {
			logger.Error("sync coordinator stopped", "error", err)
		}
	}()
}
