package channel

import (
	"sync"
	"time"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

const (
	// DefaultReactionTTL is how long a reaction stays visible.
	DefaultReactionTTL = 4 * time.Second
	maxActiveReactions = 24
)

type Reaction struct {
	Emoji string
	From  domain.Identity
	At    time.Time
}

// ReactionSet tracks currently visible reactions. Expiry is local time
// based, a repeat of the same reaction from the same sender refreshes it
// instead of stacking, and the set stays bounded.
type ReactionSet struct {
	mu    sync.Mutex
	items []Reaction
	ttl   time.Duration
	max   int
	now   func() time.Time
}

func NewReactionSet(ttl time.Duration) *ReactionSet {
	if ttl <= 0 {
		ttl = DefaultReactionTTL
	}
	return &ReactionSet{ttl: ttl, max: maxActiveReactions, now: time.Now}
}

func (s *ReactionSet) Add(emoji string, from domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.pruneLocked(now)

	for i := range s.items {
		if s.items[i].Emoji == emoji && s.items[i].From == from {
			s.items[i].At = now
			return
		}
	}
	if len(s.items) >= s.max {
		s.items = s.items[1:]
	}
	s.items = append(s.items, Reaction{Emoji: emoji, From: from, At: now})
}

// Active returns the reactions that have not expired yet, oldest first.
func (s *ReactionSet) Active() []Reaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	out := make([]Reaction, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ReactionSet) pruneLocked(now time.Time) {
	kept := s.items[:0]
	for _, r := range s.items {
		if now.Sub(r.At) < s.ttl {
			kept = append(kept, r)
		}
	}
	s.items = kept
}
