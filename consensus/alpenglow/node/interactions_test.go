package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

func TestInteractionLog(t *testing.T) {
	log := NewInteractionLog()
	for i := uint64(0); i < 10; i++ {
		log.Append(model.Interaction{
			Source:    model.Transport,
			Target:    model.Components[i%2],
			Type:      model.MessageDelivery,
			Timestamp: i,
		})
	}
	require.Equal(t, 10, log.Len())

	entries := log.Entries()
	require.Len(t, entries, 10)
	for i, entry := range entries {
		assert.Equal(t, uint64(i), entry.Timestamp)
	}
	// reading does not consume
	assert.Equal(t, entries, log.Entries())

	assert.Equal(t, map[string]uint64{"transport->voting": 5, "transport->dissemination": 5}, log.Routes())
	assert.Equal(t, map[string]uint64{model.MessageDelivery.String(): 10}, log.CountByType())

	assert.Equal(t, 4, log.PruneBefore(4))
	assert.Equal(t, 6, log.Len())
	assert.Zero(t, log.PruneBefore(4))
	assert.Equal(t, uint64(4), log.Entries()[0].Timestamp)

	log.Reset(entries[:2])
	assert.Equal(t, entries[:2], log.Entries())
}
