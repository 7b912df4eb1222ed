package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventPublisher defines the interface for publishing delivery tasks.
type EventPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// NatsPublisher implements EventPublisher using NATS JetStream.
type NatsPublisher struct {
	js jetstream.JetStream
}

func NewNatsPublisher(nc *nats.Conn) (*NatsPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	return &NatsPublisher{js: js}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(ctx, SubjectFor(task), data)
	return err
}

// SubjectFor builds the delivery subject for a task. Database and collection
// names are part of the subject so workers can subscribe selectively.
func SubjectFor(task *Task) string {
	return fmt.Sprintf("triggers.%s.%s", task.Database, task.Collection)
}
