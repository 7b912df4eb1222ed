package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codetrek/mongotrigger/internal/mongodb"
	"github.com/codetrek/mongotrigger/pkg/model"
)

// State is the lifecycle phase of a Controller.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateWatching
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateWatching:
		return "watching"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Emitter receives batches of normalized outputs. The host workflow engine
// sits behind this interface; each matching change event is delivered as a
// batch of one, in arrival order.
type Emitter interface {
	EmitBatch(ctx context.Context, outputs []model.Output) error
}

// eventStream abstracts the change stream cursor so the consume loop can be
// driven without a live server.
type eventStream interface {
	Next(ctx context.Context) bool
	Raw() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

type mongoStream struct {
	cs *mongo.ChangeStream
}

func (s *mongoStream) Next(ctx context.Context) bool   { return s.cs.Next(ctx) }
func (s *mongoStream) Raw() bson.Raw                   { return s.cs.Current }
func (s *mongoStream) Err() error                      { return s.cs.Err() }
func (s *mongoStream) Close(ctx context.Context) error { return s.cs.Close(ctx) }

// Hooks for tests, following the factory-variable pattern used across the
// services package.
var (
	connectFunc    = mongodb.Connect
	validateFunc   = mongodb.Validate
	disconnectFunc = mongodb.Disconnect
	openStreamFunc = openChangeStream
)

func openChangeStream(ctx context.Context, client *mongo.Client, cfg *Config) (eventStream, error) {
	opts := options.ChangeStream()
	if cfg.FullDocumentOnUpdate {
		opts.SetFullDocument(options.UpdateLookup)
	}
	cs, err := client.Database(cfg.Database).Collection(cfg.Collection).Watch(ctx, BuildPipeline(cfg), opts)
	if err != nil {
		return nil, err
	}
	return &mongoStream{cs: cs}, nil
}

// Controller owns the live subscription for one watch and drives each event
// through normalization and client-side filtering to the emitter. Events are
// processed sequentially on a single background goroutine.
type Controller struct {
	uri     string
	cfg     *Config
	emitter Emitter
	logger  *logrus.Entry

	// onStreamError is invoked once if the subscription fails while watching.
	// No reconnect is attempted; the host decides what to do.
	onStreamError func(error)

	mu     sync.Mutex
	state  State
	client *mongo.Client
	stream eventStream
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller for one watch configuration. The
// controller does nothing until Start is called.
func NewController(uri string, cfg *Config, emitter Emitter, logger *logrus.Entry) *Controller {
	return &Controller{
		uri:     uri,
		cfg:     cfg,
		emitter: emitter,
		logger:  logger,
		state:   StateIdle,
	}
}

// OnStreamError registers a callback for fatal subscription failures. Must be
// called before Start.
func (c *Controller) OnStreamError(fn func(error)) {
	c.onStreamError = fn
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the background consume loop has exited.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Start validates the configuration and target, opens the change stream and
// begins consuming on a background goroutine. It returns once the
// subscription is established, not after the first event. Any validation or
// connection failure leaves the controller Closed with no subscription.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot start watch in state %s", state)
	}
	c.state = StateValidating
	c.done = make(chan struct{})
	c.mu.Unlock()

	if err := c.cfg.Validate(); err != nil {
		c.abortStart(nil)
		return err
	}

	client, err := connectFunc(ctx, c.uri)
	if err != nil {
		c.abortStart(nil)
		return err
	}

	if err := validateFunc(ctx, client, c.cfg.Database, c.cfg.Collection); err != nil {
		c.abortStart(client)
		return err
	}

	stream, err := openStreamFunc(ctx, client, c.cfg)
	if err != nil {
		c.abortStart(client)
		return fmt.Errorf("%w: opening change stream on %s.%s: %v",
			model.ErrAccess, c.cfg.Database, c.cfg.Collection, err)
	}

	// The consume loop outlives the start context; it is stopped by Stop.
	streamCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.state != StateValidating {
		// Stop was requested while starting up.
		c.mu.Unlock()
		cancel()
		_ = stream.Close(context.Background())
		c.abortStart(client)
		return fmt.Errorf("watch stopped during startup")
	}
	c.client = client
	c.stream = stream
	c.cancel = cancel
	c.state = StateWatching
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"database":   c.cfg.Database,
		"collection": c.cfg.Collection,
	}).Info("Change stream established")

	go c.consume(streamCtx, stream)
	return nil
}

func (c *Controller) abortStart(client *mongo.Client) {
	if client != nil {
		if err := disconnectFunc(context.Background(), client); err != nil {
			c.logger.WithError(err).Warn("Failed to disconnect after aborted start")
		}
	}
	c.mu.Lock()
	c.state = StateClosed
	done := c.done
	c.mu.Unlock()
	close(done)
}

// consume reads the subscription until it ends. One event is fully
// normalized, filtered and emitted before the next is read.
func (c *Controller) consume(ctx context.Context, stream eventStream) {
	defer close(c.done)

	normalizer := &Normalizer{
		FallbackDatabase:   c.cfg.Database,
		FallbackCollection: c.cfg.Collection,
	}

	for stream.Next(ctx) {
		ev, err := DecodeEvent(stream.Raw())
		if err != nil {
			// One malformed event must not halt the watch.
			c.logger.WithError(err).Warn("Dropping undecodable change event")
			continue
		}

		if Operation(ev.OperationType) == OpUpdate && !MatchesFilters(c.cfg.Filters, ev.ModifiedFields()) {
			continue
		}

		out := normalizer.Normalize(ev)
		if err := c.emitter.EmitBatch(ctx, []model.Output{out}); err != nil {
			c.logger.WithError(err).WithField("operation", ev.OperationType).Error("Failed to emit change event")
		}
	}

	err := stream.Err()
	if err != nil && !errors.Is(err, context.Canceled) && c.State() == StateWatching {
		c.logger.WithError(err).Error("Change stream terminated")
		if c.onStreamError != nil {
			c.onStreamError(err)
		}
	}
}

// Stop closes the subscription and then the connection. Both teardown steps
// are attempted even if the first fails, and calling Stop again (or after a
// failed Start) is a no-op. An in-flight event callback is not interrupted;
// closing the stream only prevents further events from being read.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosing, StateClosed, StateIdle:
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	stream := c.stream
	client := c.client
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs []error
	if stream != nil {
		if err := stream.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing change stream: %w", err))
		}
	}
	if err := disconnectFunc(ctx, client); err != nil {
		errs = append(errs, fmt.Errorf("disconnecting client: %w", err))
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()

	return errors.Join(errs...)
}
