package watch

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RawChangeEvent is the change stream document as delivered by the server.
// Which fields are populated depends on OperationType: inserts and replaces
// carry FullDocument, updates carry UpdateDescription, renames carry To.
type RawChangeEvent struct {
	OperationType     string              `bson:"operationType"`
	ClusterTime       primitive.Timestamp `bson:"clusterTime"`
	WallTime          primitive.DateTime  `bson:"wallTime"`
	FullDocument      bson.M              `bson:"fullDocument"`
	DocumentKey       bson.M              `bson:"documentKey"`
	Namespace         Namespace           `bson:"ns"`
	To                *Namespace          `bson:"to"`
	UpdateDescription *UpdateDescription  `bson:"updateDescription"`

	// Raw is the undecoded event document, populated by DecodeEvent for
	// operation types the normalizer does not recognize so they can be
	// surfaced verbatim.
	Raw bson.M `bson:"-"`
}

// Namespace identifies the database and collection an event belongs to.
type Namespace struct {
	Database   string `bson:"db"`
	Collection string `bson:"coll"`
}

// UpdateDescription is the changed-fields set of an update event.
type UpdateDescription struct {
	UpdatedFields bson.M   `bson:"updatedFields"`
	RemovedFields []string `bson:"removedFields"`
}

// DecodeEvent decodes one change stream document.
func DecodeEvent(doc bson.Raw) (*RawChangeEvent, error) {
	var ev RawChangeEvent
	if err := bson.Unmarshal(doc, &ev); err != nil {
		return nil, fmt.Errorf("decoding change event: %w", err)
	}
	if !KnownOperation(Operation(ev.OperationType)) {
		if err := bson.Unmarshal(doc, &ev.Raw); err != nil {
			return nil, fmt.Errorf("decoding change event: %w", err)
		}
	}
	return &ev, nil
}

// DocumentID renders the primary key of the changed document as a string.
// The second return is false when the event carries no document key, as for
// drop and rename.
func (e *RawChangeEvent) DocumentID() (string, bool) {
	if e.DocumentKey == nil {
		return "", false
	}
	id, ok := e.DocumentKey["_id"]
	if !ok {
		return "", false
	}
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex(), true
	case string:
		return v, true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// ModifiedFields returns the changed-fields set of an update event, or nil
// when the event carries none.
func (e *RawChangeEvent) ModifiedFields() map[string]interface{} {
	if e.UpdateDescription == nil {
		return nil
	}
	return e.UpdateDescription.UpdatedFields
}
