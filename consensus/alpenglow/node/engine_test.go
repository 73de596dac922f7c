package node

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/module/irrecoverable"
	"github.com/onflow/alpenglow/utils/unittest"
)

func startEngine(t *testing.T) (*Engine, context.CancelFunc) {
	n := newUninitializedNode(t, unittest.ConfigFixture(4), DefaultParameters())
	e, err := NewEngine(unittest.Logger(), n, nil)
	require.NoError(t, err)

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	e.Start(ctx)
	unittest.RequireCloseBefore(t, e.Ready(), time.Second, "engine did not start")
	return e, cancel
}

func report(t *testing.T, e *Engine) *BenchmarkReport {
	value, err := e.Request(context.Background(), RequestPerformanceReport{})
	require.NoError(t, err)
	r, ok := value.(*BenchmarkReport)
	require.True(t, ok)
	return r
}

func TestEngineRequests(t *testing.T) {
	e, cancel := startEngine(t)
	defer func() {
		cancel()
		unittest.RequireCloseBefore(t, e.Done(), time.Second, "engine did not stop")
	}()

	_, err := e.Request(context.Background(), Tick{})
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = e.Request(context.Background(), Initialize{})
	require.NoError(t, err)
	_, err = e.Request(context.Background(), Initialize{})
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	for i := 0; i < 3; i++ {
		_, err = e.Request(context.Background(), Tick{})
		require.NoError(t, err)
	}
	r := report(t, e)
	assert.Equal(t, uint64(3), r.Clock)
	assert.Equal(t, model.Running, r.SystemState)

	_, err = e.Request(context.Background(), struct{}{})
	require.ErrorIs(t, err, ErrUnknownMessage)
}

func TestEngineSubmitPreservesOrder(t *testing.T) {
	e, cancel := startEngine(t)
	defer func() {
		cancel()
		unittest.RequireCloseBefore(t, e.Done(), time.Second, "engine did not stop")
	}()

	require.NoError(t, e.Submit(Initialize{}))
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Submit(SendMessage{Message: unittest.MessageFixture(1, 0, model.HeartbeatMessage, 0)}))
	}
	require.NoError(t, e.Submit(Tick{}))

	r := report(t, e)
	assert.Equal(t, uint64(1), r.Clock)
	assert.Equal(t, uint64(10), r.Metrics.MessagesProcessed)
}

func TestEngineReschedulesTicks(t *testing.T) {
	e, cancel := startEngine(t)

	_, err := e.Request(context.Background(), Initialize{})
	require.NoError(t, err)
	require.NoError(t, e.Submit(Tick{Reschedule: true}))

	require.Eventually(t, func() bool {
		return report(t, e).Clock > 100
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	unittest.RequireCloseBefore(t, e.Done(), time.Second, "engine did not stop")
	assert.Greater(t, e.Node().Clock(), uint64(100))
}

func TestEngineRequestCancelled(t *testing.T) {
	n := newNode(t, 4)
	e, err := NewEngine(unittest.Logger(), n, nil)
	require.NoError(t, err)

	// the engine is not started, so nothing answers
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.Request(ctx, Tick{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngineRescheduleWithFullInbox(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewEngine(zerolog.New(&buf), newNode(t, 4), nil, WithInboxCapacity(1))
	require.NoError(t, err)

	require.True(t, e.reschedule(Tick{Reschedule: true}))
	require.ErrorIs(t, e.Submit(Tick{}), ErrInboxFull)

	assert.False(t, e.reschedule(Tick{Reschedule: true}))
	assert.Contains(t, buf.String(), "self-rescheduling clock stopped")
}
