package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/adapters/blob"
	"github.com/layer-3/tollgate/adapters/events"
	"github.com/layer-3/tollgate/adapters/ledger"
	"github.com/layer-3/tollgate/adapters/registry"
	"github.com/layer-3/tollgate/config"
	"github.com/layer-3/tollgate/internal/poll"
	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
	"github.com/layer-3/tollgate/transport/http"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	ctx := context.Background()

	ledgerClient, err := ledger.Dial(ctx, cfg.LedgerRPCURL)
	if err != nil {
		logger.Fatal("failed to connect to ledger", zap.Error(err))
	}
	defer ledgerClient.Close()

	var reg ports.Registry
	var eventPub ports.EventPublisher

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to parse Redis URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			logger.Fatal("failed to create Redis publisher", zap.Error(err))
		}

		reg = registry.NewRedisRegistry(redisClient)
		eventPub = events.NewWatermillPublisher(publisher)
	} else {
		logger.Warn("no REDIS_URL configured, using in-memory registry without events")
		reg = registry.NewMemoryRegistry()
	}

	contract := service.ContractConfig{
		PackageID: cfg.ContractPackageID,
		Module:    cfg.ContractModule,
		Receiver:  cfg.Receiver,
	}

	issuer := service.NewIssuer(contract)
	verifier := service.NewVerifier(ledgerClient, logger).WithFetchTimeout(cfg.FetchTimeout)
	blobs := blob.NewClient(cfg.BlobStoreURL)

	if eventPub != nil {
		relay := service.NewPurchaseRelay(ledgerClient, eventPub, contract, cfg.EventWindow, poll.RealClock(), logger)
		go func() {
			if err := relay.Run(ctx, cfg.RelayInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("purchase relay stopped", zap.Error(err))
			}
		}()
	}

	router := http.SetupRouter(verifier, issuer, reg, blobs, eventPub, logger)

	addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	logger.Info("starting gateway", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
