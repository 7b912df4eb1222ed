package trigger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codetrek/mongotrigger/pkg/model"
)

// Service bridges one watch to the delivery stream: each normalized output it
// receives is wrapped in a Task and published. It implements watch.Emitter.
type Service struct {
	watchID   string
	publisher EventPublisher
	logger    *logrus.Entry
}

// NewService creates the delivery service for one watch.
func NewService(watchID string, publisher EventPublisher, logger *logrus.Entry) *Service {
	return &Service{
		watchID:   watchID,
		publisher: publisher,
		logger:    logger,
	}
}

// EmitBatch publishes one task per output, preserving order. The first
// publish failure aborts the batch.
func (s *Service) EmitBatch(ctx context.Context, outputs []model.Output) error {
	for _, out := range outputs {
		task := s.newTask(out)
		if err := s.publisher.Publish(ctx, task); err != nil {
			s.logger.WithError(err).WithField("taskId", task.ID).Error("Failed to publish delivery task")
			return err
		}
	}
	return nil
}

func (s *Service) newTask(out model.Output) *Task {
	return &Task{
		ID:          uuid.NewString(),
		WatchID:     s.watchID,
		Database:    out.Database(),
		Collection:  out.Collection(),
		Operation:   out.Operation(),
		Output:      out,
		PublishedAt: time.Now().Unix(),
	}
}
