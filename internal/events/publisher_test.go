package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/claude/healthexport/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := Message(DatasetIngested{
		UserID:     "user-1",
		UploadID:   "up-1",
		Inserted:   4,
		Counts:     models.Counts{HeartRates: 10},
		OccurredAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("user-1"), msg.Key)
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeDatasetIngested, string(msg.Headers[0].Value))

	var got DatasetIngested
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, TypeDatasetIngested, got.Type)
	assert.Equal(t, "up-1", got.UploadID)
	assert.Equal(t, 10, got.Counts.HeartRates)
}
