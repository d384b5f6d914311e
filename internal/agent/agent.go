package agent

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"expense/internal/events"
	"expense/internal/events/kafka"
	"expense/internal/events/websocket"
	"expense/internal/web"
	"expense/transaction"
	"expense/transaction/mongodb"
	"expense/transaction/postgres"
)

// stores the agent can run against
const (
	DriverMongo    = "mongodb"
	DriverPostgres = postgres.DriverPQ
	DriverPGX      = postgres.DriverPGX
	DriverMemory   = "memory"
)

const (
	connectTimeout         = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

func New(config Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		// order matters here
		a.setupStore,
		a.setupEvents,
		a.setupServer,
		a.setupListener,
	}
	for _, fn := range setup {
		err := fn()
		if err != nil {
			a.cleanup(context.Background())
			return nil, err
		}
	}

	// launch the server
	go a.serve()

	return a, nil
}

type Agent struct {
	Config Config

	// data-access layer picked by Config.DatabaseDriver
	repo transaction.TransactionRepo
	// live feed of changes for websocket clients
	hub       *websocket.Hub
	stopHub   context.CancelFunc
	publisher transaction.Publisher
	server    *http.Server
	listener  net.Listener

	// run in reverse on shutdown
	closers []func(ctx context.Context) error

	// indicates that this agent has already shutdown
	shutdown bool
	// closed once Shutdown has run
	shutdowns    chan struct{}
	shutdownLock sync.Mutex
}

type Config struct {
	// address the HTTP server listens on, e.g. ":5000"
	BindAddr string
	// DriverMongo, DriverPostgres, DriverPGX or DriverMemory; empty means DriverMongo
	DatabaseDriver string
	// connection string for the store. Postgres falls back to the POSTGRES_* variables when empty,
	// MongoDB to mongodb.DefaultURI
	DatabaseURL string
	// events are written to Kafka only when brokers are given
	KafkaBrokers []string
	KafkaTopic   string
	// CORS origins; empty allows any origin
	AllowedOrigins []string
	// serve HTTPS when set
	ServerTLSConfig *tls.Config
	// how long in-flight requests get to finish on Shutdown
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// Addr returns the address the agent is listening on
func (a *Agent) Addr() net.Addr {
	return a.listener.Addr()
}

// Done is closed once the agent has shut down
func (a *Agent) Done() <-chan struct{} {
	return a.shutdowns
}

func (a *Agent) setupStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	logger := a.Config.Logger
	driver := a.Config.DatabaseDriver
	if driver == "" {
		driver = DriverMongo
	}

	switch driver {
	case DriverMemory:
		a.repo = transaction.NewMemoryRepo()
		logger.Warn().Msg("using the in-memory store; transactions are lost on exit")

	case DriverMongo:
		cfg, err := mongodb.Parse(a.Config.DatabaseURL)
		if err != nil {
			return err
		}
		coll, err := mongodb.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, coll.Database().Client().Disconnect)
		if a.repo, err = transaction.NewMongoRepo(coll); err != nil {
			return err
		}
		logger.Info().Str("database", cfg.Database).Msg("connected to mongodb")

	case DriverPostgres, DriverPGX:
		cfg := &postgres.Config{URL: a.Config.DatabaseURL}
		if cfg.URL == "" {
			var err error
			cfg, err = postgres.Parse(nil)
			if err != nil {
				return err
			}
		}
		cfg.Driver = driver

		db, err := postgres.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		if a.repo, err = transaction.NewPostgresRepo(db); err != nil {
			return err
		}
		logger.Info().Str("driver", driver).Str("dsn", cfg.Redacted()).Msg("connected to postgres")

	default:
		return fmt.Errorf("unknown database driver %q", driver)
	}

	return nil
}

func (a *Agent) setupEvents() error {
	var ctx context.Context
	ctx, a.stopHub = context.WithCancel(context.Background())
	a.hub = websocket.NewHub(a.Config.Logger)
	go a.hub.Run(ctx)
	a.closers = append(a.closers, func(context.Context) error {
		a.stopHub()
		return nil
	})

	publishers := events.Multi{a.hub}

	if len(a.Config.KafkaBrokers) > 0 {
		if a.Config.KafkaTopic == "" {
			return errors.New("kafka topic is required when brokers are set")
		}
		p := kafka.NewPublisher(a.Config.KafkaBrokers, a.Config.KafkaTopic)
		publishers = append(publishers, p)
		a.closers = append(a.closers, func(context.Context) error { return p.Close() })
		a.Config.Logger.Info().
			Strs("brokers", a.Config.KafkaBrokers).
			Str("topic", a.Config.KafkaTopic).
			Msg("publishing transaction events to kafka")
	}

	a.publisher = publishers
	return nil
}

func (a *Agent) setupServer() error {
	service, err := transaction.NewService(&transaction.Config{
		Repo:      a.repo,
		Publisher: a.publisher,
		Logger:    a.Config.Logger,
	})
	if err != nil {
		return err
	}

	a.server = web.NewHTTPServer(a.Config.BindAddr, &web.Config{
		Service:        service,
		Stream:         a.hub,
		AllowedOrigins: a.Config.AllowedOrigins,
		TLSConfig:      a.Config.ServerTLSConfig,
		Logger:         a.Config.Logger,
	})
	return nil
}

func (a *Agent) setupListener() error {
	ln, err := net.Listen("tcp", a.Config.BindAddr)
	if err != nil {
		return err
	}
	a.listener = ln
	return nil
}

func (a *Agent) serve() {
	a.Config.Logger.Info().
		Str("addr", a.listener.Addr().String()).
		Bool("tls", a.Config.ServerTLSConfig != nil).
		Msg("server listening")

	var err error
	if a.Config.ServerTLSConfig != nil {
		// certificates come from the server's TLSConfig
		err = a.server.ServeTLS(a.listener, "", "")
	} else {
		err = a.server.Serve(a.listener)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Config.Logger.Error().Err(err).Msg("server stopped")
		_ = a.Shutdown()
	}
}

func (a *Agent) Shutdown() error {
	// ensures that Shutdown is only called once even if users call Shutdown() multiple times
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()

	if a.shutdown {
		return nil
	}
	a.shutdown = true
	defer close(a.shutdowns)

	timeout := a.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// stop taking requests before the store goes away
	err := a.server.Shutdown(ctx)
	return errors.Join(err, a.cleanup(ctx))
}

func (a *Agent) cleanup(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
