package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/codetrek/mongotrigger/pkg/model"
)

// Connect opens a client for the given connection string and verifies the
// transport with a ping against the deployment.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConnection, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", model.ErrConnection, err)
	}
	return client, nil
}

// Validate checks that the target database and collection are reachable with
// the connected credentials. It probes with a database-level ping and a
// targeted collection-name lookup rather than full listings, so it works for
// least-privilege users that may not enumerate databases or collections.
func Validate(ctx context.Context, client *mongo.Client, database, collection string) error {
	db := client.Database(database)

	if err := db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		if IsUnauthorized(err) {
			return fmt.Errorf("%w: not authorized on database %q", model.ErrPermissionDenied, database)
		}
		return fmt.Errorf("%w: database %q: %v", model.ErrAccess, database, err)
	}

	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		if IsUnauthorized(err) {
			return fmt.Errorf("%w: not authorized to inspect collection %q in database %q",
				model.ErrPermissionDenied, collection, database)
		}
		return fmt.Errorf("%w: collection %q: %v", model.ErrAccess, collection, err)
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: collection %q does not exist in database %q",
			model.ErrNotFound, collection, database)
	}
	return nil
}

// Disconnect closes the client. A nil or already disconnected client is not
// an error, so teardown paths may call it more than once.
func Disconnect(ctx context.Context, client *mongo.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}

// codeUnauthorized is the server error code for a rejected authorization check.
const codeUnauthorized = 13

// IsUnauthorized reports whether err is a server-side authorization failure.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == codeUnauthorized || cmdErr.Name == "Unauthorized"
	}
	return strings.Contains(strings.ToLower(err.Error()), "not authorized")
}
