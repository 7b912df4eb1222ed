package trigger

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/codetrek/mongotrigger/pkg/model"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, task *Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func testEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestEmitBatch_PublishesTask(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService("orders-watch", publisher, testEntry())

	out := model.Output{
		"operation":  "insert",
		"database":   "shop",
		"collection": "orders",
		"documentId": "1",
	}

	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(task *Task) bool {
		return task.WatchID == "orders-watch" &&
			task.Database == "shop" &&
			task.Collection == "orders" &&
			task.Operation == "insert" &&
			task.ID != "" &&
			task.PublishedAt > 0
	})).Return(nil)

	err := service.EmitBatch(context.Background(), []model.Output{out})
	assert.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestEmitBatch_PreservesOrder(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService("w", publisher, testEntry())

	var seen []string
	publisher.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		task := args.Get(1).(*Task)
		seen = append(seen, task.Output.Operation())
	}).Return(nil)

	outputs := []model.Output{
		{"operation": "insert", "database": "d", "collection": "c"},
		{"operation": "delete", "database": "d", "collection": "c"},
	}
	require.NoError(t, service.EmitBatch(context.Background(), outputs))
	assert.Equal(t, []string{"insert", "delete"}, seen)
}

func TestEmitBatch_PublishError(t *testing.T) {
	publisher := new(MockPublisher)
	service := NewService("w", publisher, testEntry())

	publishErr := errors.New("nats unavailable")
	publisher.On("Publish", mock.Anything, mock.Anything).Return(publishErr)

	err := service.EmitBatch(context.Background(), []model.Output{
		{"operation": "insert", "database": "d", "collection": "c"},
	})
	assert.ErrorIs(t, err, publishErr)
}

func TestSubjectFor(t *testing.T) {
	task := &Task{Database: "shop", Collection: "orders"}
	assert.Equal(t, "triggers.shop.orders", SubjectFor(task))
}
