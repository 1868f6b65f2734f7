package service

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/devkiraa/makeTicket-sub000/auth"
	"github.com/devkiraa/makeTicket-sub000/db"
	"github.com/devkiraa/makeTicket-sub000/db/contacts"
	dataLake "github.com/devkiraa/makeTicket-sub000/db/data_lake"
	"github.com/devkiraa/makeTicket-sub000/db/events"
	"github.com/devkiraa/makeTicket-sub000/db/tickets"
	"github.com/devkiraa/makeTicket-sub000/http"
	"github.com/devkiraa/makeTicket-sub000/payment"
	"github.com/devkiraa/makeTicket-sub000/pubsub"
	"github.com/devkiraa/makeTicket-sub000/pubsub/bus"
	"github.com/devkiraa/makeTicket-sub000/pubsub/event"
	"github.com/devkiraa/makeTicket-sub000/pubsub/outbox"
	"github.com/devkiraa/makeTicket-sub000/registration"
)

const serviceName = "svc-registrations"

type Config struct {
	HTTPAddr     string
	JWTSecret    string
	Payments     payment.Config
	MaxProofSize int64
}

// Dependencies are the external services the registration service talks to.
type Dependencies struct {
	Notifications event.NotificationsService
	Spreadsheets  event.SpreadsheetsAPI
	Entitlements  registration.EntitlementsService
	Matcher       payment.StatementMatcher
	Files         payment.FileStorage
}

type Service struct {
	db              *sqlx.DB
	watermillLogger watermill.LoggerAdapter
	watermillRouter *message.Router
	forwarder       *forwarder.Forwarder
	httpServer      *http.Server
}

func New(
	config Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	deps Dependencies,
) (Service, error) {
	eventsRepo := events.NewPostgresRepository(db)
	ticketsRepo := tickets.NewPostgresRepository(db)
	contactsRepo := contacts.NewPostgresRepository(db)
	lake := dataLake.NewDataLake(db)

	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	var redisPublisher message.Publisher
	redisPublisher = pubsub.NewRedisPublisher(redisClient, watermillLogger)
	redisPublisher = log.CorrelationPublisherDecorator{Publisher: redisPublisher}

	postgresSubscriber, err := outbox.NewPostgresSubscriber(db, watermillLogger)
	if err != nil {
		return Service{}, err
	}
	fwd, err := outbox.NewForwarder(postgresSubscriber, redisPublisher, watermillLogger)
	if err != nil {
		return Service{}, err
	}

	splitterSubscriber, err := newRedisSubscriber(redisClient, "events_splitter", watermillLogger)
	if err != nil {
		return Service{}, err
	}
	dataLakeSubscriber, err := newRedisSubscriber(redisClient, "data_lake", watermillLogger)
	if err != nil {
		return Service{}, err
	}

	eventsHandler := event.NewHandler(deps.Notifications, deps.Spreadsheets, contactsRepo)

	watermillRouter, err := pubsub.NewWatermillRouter(
		redisPublisher,
		splitterSubscriber,
		dataLakeSubscriber,
		bus.NewEventProcessorConfig(redisClient, watermillLogger),
		eventsHandler,
		lake,
		watermillLogger,
	)
	if err != nil {
		return Service{}, fmt.Errorf("could not create watermill router: %w", err)
	}

	credentials := auth.NewValidator(config.JWTSecret)

	registrations := registration.NewService(eventsRepo, ticketsRepo, deps.Entitlements, credentials)
	verifier := payment.NewVerifier(ticketsRepo, eventsRepo, deps.Matcher, config.Payments)
	proofs := payment.NewProofStore(ticketsRepo, eventsRepo, deps.Files, config.MaxProofSize)

	httpServer := http.NewServer(
		config.HTTPAddr,
		registrations,
		verifier,
		proofs,
		credentials,
		config.MaxProofSize,
	)

	return Service{
		db:              db,
		watermillLogger: watermillLogger,
		watermillRouter: watermillRouter,
		forwarder:       fwd,
		httpServer:      httpServer,
	}, nil
}

func newRedisSubscriber(redisClient *redis.Client, name string, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        redisClient,
		ConsumerGroup: serviceName + "." + name,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create %s subscriber: %w", name, err)
	}

	return sub, nil
}

func (s Service) Run(ctx context.Context) error {
	if err := db.InitializeDatabaseSchema(s.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	if err := outbox.InitializeSchema(s.db, s.watermillLogger); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.forwarder.Run(ctx)
	})

	g.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		// the service is not healthy until messages flow
		<-s.watermillRouter.Running()
		<-s.forwarder.Running()

		return s.httpServer.Run(ctx)
	})

	return g.Wait()
}
