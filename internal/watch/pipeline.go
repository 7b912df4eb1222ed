package watch

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// BuildPipeline translates a watch configuration into the server-side
// aggregation pipeline registered with the change stream. Stages narrow the
// stream sequentially: an operation-type stage when a strict subset of types
// is selected, and a monitored-fields stage when specific fields are named
// and updates are subscribed. Selecting all types or the field wildcard
// yields no stage, so the server does no extra work.
func BuildPipeline(cfg *Config) mongo.Pipeline {
	pipeline := mongo.Pipeline{}

	if ops := uniqueOperations(cfg.Operations); len(ops) < len(AllOperations) {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: ops}}},
		}}})
	}

	if !cfg.MonitorsAllFields() && cfg.HasOperation(OpUpdate) {
		fieldMatches := bson.A{}
		for _, field := range cfg.MonitoredFields {
			fieldMatches = append(fieldMatches, bson.D{
				{Key: "updateDescription.updatedFields." + field, Value: bson.D{{Key: "$exists", Value: true}}},
			})
		}
		// Non-update events pass through untouched; update events must have
		// changed at least one monitored field.
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "operationType", Value: bson.D{{Key: "$ne", Value: string(OpUpdate)}}}},
			bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "operationType", Value: string(OpUpdate)}},
				bson.D{{Key: "$or", Value: fieldMatches}},
			}}},
		}}}}})
	}

	return pipeline
}

func uniqueOperations(ops []Operation) []string {
	seen := make(map[Operation]bool, len(ops))
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		if !seen[op] {
			seen[op] = true
			out = append(out, string(op))
		}
	}
	return out
}
