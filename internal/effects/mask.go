package effects

import "sync"

// Mask holds per-pixel foreground confidence, 0 background to 255 foreground,
// at the same resolution as the frame it was computed from.
type Mask struct {
	Width  int
	Height int
	Data   []byte
	Seq    uint64
}

// MaskSlot is a single-slot mailbox between the segmentation loop and the
// render loop. New masks overwrite unconsumed ones so the renderer always
// sees the latest segmentation, never a backlog.
type MaskSlot struct {
	mu     sync.Mutex
	cond   *sync.Cond
	mask   *Mask
	fresh  bool
	drops  uint64
	closed bool
}

func NewMaskSlot() *MaskSlot {
	s := &MaskSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put publishes a mask, replacing any unconsumed one.
func (s *MaskSlot) Put(m *Mask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.fresh {
		s.drops++
	}
	s.mask = m
	s.fresh = true
	s.cond.Signal()
}

// Peek returns the latest mask without consuming it. The renderer holds the
// last mask between segmentation updates, so the mask stays available here
// after reads.
func (s *MaskSlot) Peek() *Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fresh = false
	return s.mask
}

// Consume blocks until a mask newer than the last consume arrives, then
// returns it. Returns nil after Close.
func (s *MaskSlot) Consume() *Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.fresh && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil
	}
	s.fresh = false
	return s.mask
}

func (s *MaskSlot) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

func (s *MaskSlot) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
