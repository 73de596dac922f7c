package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/utils/unittest"
)

func TestAllClosed(t *testing.T) {
	a := make(chan struct{})
	b := make(chan struct{})
	done := AllClosed(a, b)

	close(a)
	select {
	case <-done:
		t.Fatal("closed before every channel closed")
	default:
	}
	close(b)
	unittest.AssertClosesBefore(t, done, time.Second)
}

func TestWaitError(t *testing.T) {
	errChan := make(chan error, 1)
	done := make(chan struct{})
	sentinel := errors.New("boom")

	errChan <- sentinel
	close(done)
	require.ErrorIs(t, WaitError(errChan, done), sentinel)
	require.NoError(t, WaitError(errChan, done))
}

func TestLogProgress(t *testing.T) {
	progress := LogProgress(unittest.Logger(), "ticks", 100, 10)
	for i := 0; i < 100; i++ {
		progress(1)
	}
	progress(-1)
}
