package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

const (
	// taskTimeout bounds a single delivery attempt.
	taskTimeout = 10 * time.Second
	// retryDelay is the base redelivery backoff, scaled by delivery count.
	retryDelay = 2 * time.Second
)

// Worker processes a delivery task. The downstream workflow engine sits
// behind this interface.
type Worker interface {
	ProcessTask(ctx context.Context, task *Task) error
}

// Consumer consumes delivery tasks from NATS and dispatches them to the worker.
type Consumer struct {
	js         jetstream.JetStream
	worker     Worker
	logger     *logrus.Entry
	stream     string
	numWorkers int
}

// NewConsumer creates a new Consumer.
func NewConsumer(nc *nats.Conn, worker Worker, logger *logrus.Entry) (*Consumer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		js:         js,
		worker:     worker,
		logger:     logger,
		stream:     "TRIGGERS",
		numWorkers: 1,
	}, nil
}

// Start begins consuming messages. It blocks until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	// Ensure Stream exists. In production, streams should be managed by IaC
	// or migration tools; here we ensure it for development convenience.
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      c.stream,
		Subjects:  []string{"triggers.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy, // each task is processed by only one worker
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.stream, jetstream.ConsumerConfig{
		Durable:       "TriggerDeliveryWorker",
		AckPolicy:     jetstream.AckExplicitPolicy,
		FilterSubject: "triggers.>",
		MaxAckPending: c.numWorkers,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		c.handleMsg(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	if c.logger != nil {
		c.logger.Info("Trigger consumer started, waiting for tasks")
	}

	<-ctx.Done()
	return nil
}

func (c *Consumer) handleMsg(ctx context.Context, msg jetstream.Msg) {
	var task Task
	if err := json.Unmarshal(msg.Data(), &task); err != nil {
		// Redelivering a payload that can never parse would loop forever.
		if c.logger != nil {
			c.logger.WithError(err).Error("Terminating task with invalid payload")
		}
		_ = msg.Term()
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	if err := c.worker.ProcessTask(taskCtx, &task); err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithField("taskId", task.ID).Error("Failed to process delivery task")
		}
		delay := retryDelay
		if meta, merr := msg.Metadata(); merr == nil && meta.NumDelivered > 0 {
			delay = time.Duration(meta.NumDelivered) * retryDelay
		}
		_ = msg.NakWithDelay(delay)
		return
	}

	_ = msg.Ack()
}
