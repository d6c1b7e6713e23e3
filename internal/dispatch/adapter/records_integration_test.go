//go:build integration

package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"ruleflow/internal/dispatch"
	"ruleflow/internal/testinfra"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/migrations"
)

func TestMongoRecordStore_MutateField(t *testing.T) {
	ctx := context.Background()
	db := testinfra.MongoDB(t)
	require.NoError(t, migrations.EnsureRecordsCollection(ctx, db, "records"))

	collection := db.Collection("records")
	_, err := collection.InsertOne(ctx, bson.M{
		"_id":       "c-1",
		"tenant_id": "acme",
		"entity":    "contact",
		"fields":    bson.M{"status": "lead"},
	})
	require.NoError(t, err)

	store := NewMongoRecordStore(collection)
	ref := dispatch.RecordRef{TenantID: "acme", Entity: "contact", ID: "c-1"}

	require.NoError(t, store.MutateField(ctx, ref, "status", "customer"))

	var doc struct {
		Fields map[string]interface{} `bson:"fields"`
	}
	require.NoError(t, collection.FindOne(ctx, bson.M{"_id": "c-1"}).Decode(&doc))
	assert.Equal(t, "customer", doc.Fields["status"])

	t.Run("other tenant is not found", func(t *testing.T) {
		err := store.MutateField(ctx, dispatch.RecordRef{TenantID: "globex", Entity: "contact", ID: "c-1"}, "status", "x")
		assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	})

	t.Run("operator field names are rejected", func(t *testing.T) {
		err := store.MutateField(ctx, ref, "$where", "x")
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
	})
}
