package fifoqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifoQueue(t *testing.T) {
	var lengths []int
	q, err := NewFifoQueue[string](WithCapacity(2), WithLengthObserver(func(l int) {
		lengths = append(lengths, l)
	}))
	require.NoError(t, err)

	_, ok := q.Front()
	assert.False(t, ok)

	assert.True(t, q.Push("a"))
	assert.True(t, q.Push("b"))
	assert.False(t, q.Push("c"))
	assert.Equal(t, 2, q.Len())

	head, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, "a", head)

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = q.Pop()
	assert.False(t, ok)

	assert.Equal(t, []int{1, 2, 1, 0}, lengths)
}

func TestInvalidOptions(t *testing.T) {
	_, err := NewFifoQueue[int](WithCapacity(0))
	require.Error(t, err)
	_, err = NewFifoQueue[int](WithLengthObserver(nil))
	require.Error(t, err)
}
