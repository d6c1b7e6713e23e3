package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureRecordsCollection creates the indexes used by field mutations and tenant scans on the
// records collection. The collection itself is created on first insert.
func EnsureRecordsCollection(ctx context.Context, db *mongo.Database, name string) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "entity", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_records_tenant_entity_id"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_records_tenant_updated_at"),
		},
	}

	_, err := db.Collection(name).Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
