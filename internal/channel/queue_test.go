package channel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDrainsInOrder(t *testing.T) {
	q := newRetryQueue(8)
	q.push(true, []byte("a"))
	q.push(true, []byte("b"))
	q.push(false, []byte("c"))

	var got []string
	q.drain(func(text bool, data []byte) error {
		got = append(got, string(data))
		return nil
	})
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Zero(t, q.len())
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := newRetryQueue(2)
	q.push(true, []byte("a"))
	q.push(true, []byte("b"))
	q.push(true, []byte("c"))

	var got []string
	q.drain(func(_ bool, data []byte) error {
		got = append(got, string(data))
		return nil
	})
	assert.Equal(t, []string{"b", "c"}, got, "the newest frames win")
}

func TestQueueKeepsRemainderOnSendFailure(t *testing.T) {
	q := newRetryQueue(8)
	q.push(true, []byte("a"))
	q.push(true, []byte("b"))
	q.push(true, []byte("c"))

	calls := 0
	q.drain(func(_ bool, data []byte) error {
		calls++
		if calls == 2 {
			return errors.New("closed mid drain")
		}
		return nil
	})
	require.Equal(t, 2, q.len(), "unsent frames stay queued")

	var got []string
	q.drain(func(_ bool, data []byte) error {
		got = append(got, string(data))
		return nil
	})
	assert.Equal(t, []string{"b", "c"}, got)
}
