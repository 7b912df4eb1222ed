package watch

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/codetrek/mongotrigger/pkg/model"
)

// Normalizer maps raw change events of any operation type onto the stable
// output schema. The mapping is total: operation types it does not recognize
// degrade to a record carrying the raw event under "details" instead of
// failing.
type Normalizer struct {
	// FallbackDatabase and FallbackCollection fill the namespace fields when
	// the event itself carries none (some drop/rename shapes).
	FallbackDatabase   string
	FallbackCollection string

	// Now is the clock used when an event carries no time of its own.
	// Defaults to time.Now.
	Now func() time.Time
}

// Normalize builds the output record for one raw event.
func (n *Normalizer) Normalize(ev *RawChangeEvent) model.Output {
	database := ev.Namespace.Database
	if database == "" {
		database = n.FallbackDatabase
	}
	collection := ev.Namespace.Collection
	if collection == "" {
		collection = n.FallbackCollection
	}

	out := model.Output{
		"operation":  ev.OperationType,
		"timestamp":  n.timestamp(ev),
		"database":   database,
		"collection": collection,
	}
	if id, ok := ev.DocumentID(); ok {
		out["documentId"] = id
	}

	switch Operation(ev.OperationType) {
	case OpInsert:
		doc := ev.FullDocument
		if doc == nil {
			doc = bson.M{}
		}
		out["document"] = doc
	case OpUpdate:
		modified := ev.ModifiedFields()
		if modified == nil {
			modified = bson.M{}
		}
		removed := []string{}
		if ev.UpdateDescription != nil && ev.UpdateDescription.RemovedFields != nil {
			removed = ev.UpdateDescription.RemovedFields
		}
		out["modifiedFields"] = modified
		out["removedFields"] = removed
		if ev.FullDocument != nil {
			out["documentAfterUpdate"] = ev.FullDocument
		}
	case OpReplace:
		doc := ev.FullDocument
		if doc == nil {
			doc = bson.M{}
		}
		out["documentAfterReplace"] = doc
	case OpDelete, OpDrop:
		// Nothing beyond the common fields.
	case OpRename:
		if ev.To != nil {
			out["newCollection"] = ev.To.Collection
		}
	default:
		out["details"] = ev.Raw
	}
	return out
}

func (n *Normalizer) timestamp(ev *RawChangeEvent) string {
	if ev.WallTime != 0 {
		return ev.WallTime.Time().UTC().Format(time.RFC3339)
	}
	if ev.ClusterTime.T != 0 {
		return time.Unix(int64(ev.ClusterTime.T), 0).UTC().Format(time.RFC3339)
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return now().UTC().Format(time.RFC3339)
}
