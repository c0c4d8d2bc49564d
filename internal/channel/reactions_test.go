package channel

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

func TestReactionsExpire(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewReactionSet(4 * time.Second)
	s.now = func() time.Time { return now }

	s.Add("👍", "student-1")
	assert.Len(t, s.Active(), 1)

	now = now.Add(3 * time.Second)
	assert.Len(t, s.Active(), 1, "still within the display window")

	now = now.Add(2 * time.Second)
	assert.Empty(t, s.Active(), "expired after the display window")
}

func TestReactionRepeatRefreshesInsteadOfStacking(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewReactionSet(4 * time.Second)
	s.now = func() time.Time { return now }

	s.Add("🎉", "tutor-1")
	now = now.Add(2 * time.Second)
	s.Add("🎉", "tutor-1")

	active := s.Active()
	assert.Len(t, active, 1, "same reaction from the same sender is one visual")

	now = now.Add(3 * time.Second)
	assert.Len(t, s.Active(), 1, "refresh extended the lifetime")
}

func TestReactionsBounded(t *testing.T) {
	s := NewReactionSet(time.Minute)
	for i := 0; i < maxActiveReactions+10; i++ {
		s.Add("👍", domain.Identity(fmt.Sprintf("user-%d", i)))
	}
	assert.LessOrEqual(t, len(s.Active()), maxActiveReactions)
}

func TestDifferentSendersKeepSeparateReactions(t *testing.T) {
	s := NewReactionSet(time.Minute)
	s.Add("👍", "tutor-1")
	s.Add("👍", "student-1")
	assert.Len(t, s.Active(), 2)
}
