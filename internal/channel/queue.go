package channel

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultQueueCap = 256

// retryQueue holds outbound frames for a channel that is not open yet.
// Frames flush in order once the channel opens; when the cap is hit the
// oldest frame goes first so recent state wins.
type retryQueue struct {
	mu     sync.Mutex
	frames []queued
	cap    int
}

type queued struct {
	text bool
	data []byte
}

func newRetryQueue(capacity int) *retryQueue {
	if capacity <= 0 {
		capacity = defaultQueueCap
	}
	return &retryQueue{cap: capacity}
}

func (q *retryQueue) push(text bool, data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) >= q.cap {
		q.frames = q.frames[1:]
		log.Warn().Str("module", "channel").Msg("retry queue full, oldest frame dropped")
	}
	q.frames = append(q.frames, queued{text: text, data: data})
}

// drain hands every queued frame to send in order and clears the queue.
// On a send error the remaining frames stay queued.
func (q *retryQueue) drain(send func(text bool, data []byte) error) {
	q.mu.Lock()
	frames := q.frames
	q.frames = nil
	q.mu.Unlock()

	for i, f := range frames {
		if err := send(f.text, f.data); err != nil {
			q.mu.Lock()
			q.frames = append(frames[i:], q.frames...)
			q.mu.Unlock()
			return
		}
	}
}

func (q *retryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
