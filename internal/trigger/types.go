package trigger

import "github.com/codetrek/mongotrigger/pkg/model"

// Task is the envelope published to the delivery stream for one matching
// change event.
type Task struct {
	ID          string       `json:"taskId"`
	WatchID     string       `json:"watchId"`
	Database    string       `json:"database"`
	Collection  string       `json:"collection"`
	Operation   string       `json:"operation"`
	Output      model.Output `json:"output"`
	PublishedAt int64        `json:"publishedAt"`
}
