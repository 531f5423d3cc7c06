package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuditKey(t *testing.T) {
	id := uuid.MustParse("7d9f3c1e-0b4a-4f43-9d51-2f1d8f0e6a11")
	assert.Equal(t, "audit/2026/03/07/7d9f3c1e-0b4a-4f43-9d51-2f1d8f0e6a11.json", AuditKey(id, time.Date(2026, 3, 7, 23, 30, 0, 0, time.UTC)))
}
