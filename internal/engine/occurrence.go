package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"

	"ruleflow/pkg/models"
)

// DeriveOccurrenceID hashes the tenant, trigger and record. Identical deliveries of the same event
// get the same id. encoding/json sorts map keys, so the record encoding is canonical.
func DeriveOccurrenceID(req *models.EvaluationRequest) (string, error) {
	record, err := json.Marshal(req.Record)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, part := range []string{req.TenantID, req.Module, req.Event, req.Entity} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(record)
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func newOccurrenceID() string {
	return uuid.New().String()
}
