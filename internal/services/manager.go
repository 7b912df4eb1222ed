package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/codetrek/mongotrigger/internal/config"
	"github.com/codetrek/mongotrigger/internal/trigger"
	"github.com/codetrek/mongotrigger/internal/watch"
)

type Options struct {
	RunWatchers bool
	RunWorker   bool
}

type watchController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Done() <-chan struct{}
	OnStreamError(fn func(error))
}

type taskConsumer interface {
	Start(ctx context.Context) error
}

// Factory hooks, overridable in tests.
var (
	natsConnector    = nats.Connect
	publisherFactory = func(nc *nats.Conn) (trigger.EventPublisher, error) {
		return trigger.NewNatsPublisher(nc)
	}
	consumerFactory = func(nc *nats.Conn, worker trigger.Worker, logger *logrus.Entry) (taskConsumer, error) {
		return trigger.NewConsumer(nc, worker, logger)
	}
	watchLoader   = watch.LoadConfigsFromFile
	closeNatsConn = func(nc *nats.Conn) { nc.Close() }
	controllerFactory = func(uri string, cfg *watch.Config, emitter watch.Emitter, logger *logrus.Entry) watchController {
		return watch.NewController(uri, cfg, emitter, logger)
	}
)

// Manager wires configuration, the NATS delivery stream and the watch
// controllers together and owns their shutdown.
type Manager struct {
	cfg    *config.Config
	opts   Options
	logger *logrus.Logger

	natsConn    *nats.Conn
	publisher   trigger.EventPublisher
	controllers []watchController
	cancelRun   context.CancelFunc
	wg          sync.WaitGroup

	streamErrs chan error
}

func NewManager(cfg *config.Config, opts Options, logger *logrus.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		opts:       opts,
		logger:     logger,
		streamErrs: make(chan error, 16),
	}
}

// StreamErrors delivers fatal subscription failures to the host. No
// automatic reconnect is attempted.
func (m *Manager) StreamErrors() <-chan error {
	return m.streamErrs
}

// Run starts the requested services. It returns once every watch
// subscription is established; any startup failure tears down what was
// already started and is returned to the caller.
func (m *Manager) Run(ctx context.Context) error {
	nc, err := natsConnector(m.cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	m.natsConn = nc

	pub, err := publisherFactory(nc)
	if err != nil {
		closeNatsConn(nc)
		return fmt.Errorf("creating publisher: %w", err)
	}
	m.publisher = pub

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancelRun = cancel

	if m.opts.RunWorker {
		workerLogger := m.logger.WithField("component", "worker")
		cons, err := consumerFactory(nc, trigger.NewLogWorker(workerLogger), workerLogger)
		if err != nil {
			m.Shutdown(ctx)
			return fmt.Errorf("creating consumer: %w", err)
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := cons.Start(runCtx); err != nil {
				m.logger.WithError(err).Error("Trigger consumer stopped")
			}
		}()
	}

	if m.opts.RunWatchers && m.cfg.Watch.DefinitionsFile != "" {
		configs, err := watchLoader(m.cfg.Watch.DefinitionsFile)
		if err != nil {
			m.Shutdown(ctx)
			return err
		}
		for _, wc := range configs {
			if err := m.startWatch(ctx, wc); err != nil {
				m.Shutdown(ctx)
				return fmt.Errorf("starting watch %q: %w", wc.ID, err)
			}
		}
	}

	return nil
}

func (m *Manager) startWatch(ctx context.Context, wc *watch.Config) error {
	watchLogger := m.logger.WithFields(logrus.Fields{
		"component": "watch",
		"watchId":   wc.ID,
	})
	emitter := trigger.NewService(wc.ID, m.publisher, watchLogger)
	ctrl := controllerFactory(m.cfg.Storage.MongoURI, wc, emitter, watchLogger)
	ctrl.OnStreamError(func(err error) {
		select {
		case m.streamErrs <- fmt.Errorf("watch %q: %w", wc.ID, err):
		default:
		}
	})
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	m.controllers = append(m.controllers, ctrl)
	return nil
}
