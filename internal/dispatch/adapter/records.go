package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"ruleflow/internal/dispatch"
	"ruleflow/pkg/errors"
)

// MongoRecordStore mutates tenant records kept as documents of the shape
// {_id, tenant_id, entity, fields: {...}, updated_at}.
type MongoRecordStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRecordStore(collection *mongo.Collection) *MongoRecordStore {
	return &MongoRecordStore{collection: collection, now: time.Now}
}

func (s *MongoRecordStore) MutateField(ctx context.Context, ref dispatch.RecordRef, field string, value interface{}) error {
	if ref.ID == "" {
		return errors.ErrValidation.WithDetail("field", "entity_id")
	}
	if field == "" || strings.HasPrefix(field, "$") || strings.Contains(field, "..") {
		return errors.ErrValidation.WithDetail("field", field)
	}

	filter := bson.M{
		"_id":       ref.ID,
		"tenant_id": ref.TenantID,
		"entity":    ref.Entity,
	}
	update := bson.M{
		"$set": bson.M{
			"fields." + field: value,
			"updated_at":      s.now().UTC(),
		},
	}

	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrNotFound.WithDetail("record_id", ref.ID)
	}
	return nil
}
