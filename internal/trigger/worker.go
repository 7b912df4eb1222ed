package trigger

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogWorker is a Worker that only records delivered tasks. It stands in for
// a real workflow engine in development setups.
type LogWorker struct {
	logger *logrus.Entry
}

func NewLogWorker(logger *logrus.Entry) *LogWorker {
	return &LogWorker{logger: logger}
}

func (w *LogWorker) ProcessTask(_ context.Context, task *Task) error {
	w.logger.WithFields(logrus.Fields{
		"taskId":     task.ID,
		"watchId":    task.WatchID,
		"operation":  task.Operation,
		"database":   task.Database,
		"collection": task.Collection,
	}).Info("Delivered change event")
	return nil
}
