package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"

	"github.com/devkiraa/makeTicket-sub000/config"
	"github.com/devkiraa/makeTicket-sub000/gateway"
	"github.com/devkiraa/makeTicket-sub000/payment"
	"github.com/devkiraa/makeTicket-sub000/service"
	"github.com/devkiraa/makeTicket-sub000/tracing"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		// go-flags already printed the problem
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.Init(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceProvider := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint, cfg.GatewayAddr)
	defer func() {
		if err := traceProvider.Shutdown(context.Background()); err != nil {
			logrus.WithError(err).Error("could not shutdown trace provider")
		}
	}()

	traceDB, err := otelsql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	db := sqlx.NewDb(traceDB, "postgres")
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer redisClient.Close()

	tolerance, err := cfg.Tolerance()
	if err != nil {
		panic(err)
	}

	svc, err := service.New(
		service.Config{
			HTTPAddr:  cfg.HTTPAddr,
			JWTSecret: cfg.JWTSecret,
			Payments: payment.Config{
				Tolerance:     tolerance,
				StaleAfter:    cfg.ProofStaleAfter,
				BulkBatchSize: cfg.BulkBatchSize,
			},
			MaxProofSize: cfg.MaxProofSize,
		},
		db,
		redisClient,
		service.Dependencies{
			Notifications: gateway.NewNotificationsClient(cfg.NotificationsURL),
			Spreadsheets:  gateway.NewSheetsClient(cfg.SheetsURL),
			Entitlements:  gateway.NewEntitlementsClient(cfg.EntitlementsURL, redisClient, cfg.EntitlementCacheTTL),
			Matcher:       gateway.NewMatcherClient(cfg.MatcherURL, cfg.MatcherTimeout),
			Files:         gateway.NewFilesClient(cfg.UploadDir),
		},
	)
	if err != nil {
		panic(err)
	}

	if err := svc.Run(ctx); err != nil {
		panic(err)
	}
}
