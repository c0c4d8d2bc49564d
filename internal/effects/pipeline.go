package effects

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultBlurRadius = 8

// Pipeline runs the two loops of the effect stage. Segmentation ticks
// slowly and publishes masks into a single-slot mailbox; rendering ticks at
// frame rate, compositing each input frame with whichever mask is newest.
// The two cadences never block each other.
type Pipeline struct {
	SegmentInterval time.Duration
	RenderInterval  time.Duration

	seg  Segmenter
	slot *MaskSlot

	mu         sync.Mutex
	mode       Mode
	blurRadius int
	background *Frame
	input      *Frame
	lastOut    *Frame
	overBudget bool

	onOutput     func(*Frame)
	onSegLatency func(time.Duration)
	onDegraded   func()
}

func NewPipeline(seg Segmenter, segmentInterval, renderInterval time.Duration) *Pipeline {
	return &Pipeline{
		SegmentInterval: segmentInterval,
		RenderInterval:  renderInterval,
		seg:             seg,
		slot:            NewMaskSlot(),
		mode:            ModeNone,
		blurRadius:      defaultBlurRadius,
	}
}

func (p *Pipeline) OnOutput(fn func(*Frame))                { p.onOutput = fn }
func (p *Pipeline) OnSegmentLatency(fn func(time.Duration)) { p.onSegLatency = fn }
func (p *Pipeline) OnDegraded(fn func())                    { p.onDegraded = fn }

func (p *Pipeline) SetMode(m Mode) {
	p.mu.Lock()
	p.mode = m
	p.mu.Unlock()
}

func (p *Pipeline) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetBlurRadius adjusts how strong ModeBlur is. Non-positive values keep
// the current radius.
func (p *Pipeline) SetBlurRadius(r int) {
	if r <= 0 {
		return
	}
	p.mu.Lock()
	p.blurRadius = r
	p.mu.Unlock()
}

// SetBackground installs the replacement image for ModeReplace.
func (p *Pipeline) SetBackground(f *Frame) {
	p.mu.Lock()
	p.background = f
	p.mu.Unlock()
}

// Push hands the latest captured frame to the pipeline. Older unprocessed
// frames are discarded.
func (p *Pipeline) Push(f *Frame) {
	p.mu.Lock()
	p.input = f
	p.mu.Unlock()
}

// Run drives both loops until the context ends.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.segmentLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		p.renderLoop(ctx)
	}()
	wg.Wait()
	p.slot.Close()
}

func (p *Pipeline) segmentLoop(ctx context.Context) {
	ticker := time.NewTicker(p.SegmentInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.mu.Lock()
		frame := p.input
		mode := p.mode
		p.mu.Unlock()
		if frame == nil || mode == ModeNone {
			continue
		}

		start := time.Now()
		mask, err := p.seg.Segment(frame)
		if err != nil {
			log.Debug().Err(err).Str("module", "effects").Msg("segmentation skipped")
			continue
		}
		if p.onSegLatency != nil {
			p.onSegLatency(time.Since(start))
		}
		p.slot.Put(mask)
	}
}

func (p *Pipeline) renderLoop(ctx context.Context) {
	ticker := time.NewTicker(p.RenderInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.renderTick()
	}
}

// renderTick emits one output frame. A tick following a render that blew
// its budget reuses the previous composite instead of computing a new one,
// so a slow effect degrades the picture rather than the frame rate.
func (p *Pipeline) renderTick() {
	p.mu.Lock()
	frame := p.input
	mode := p.mode
	radius := p.blurRadius
	background := p.background
	prev := p.lastOut
	skip := p.overBudget
	p.overBudget = false
	p.mu.Unlock()

	if frame == nil {
		return
	}
	if skip && prev != nil {
		if p.onDegraded != nil {
			p.onDegraded()
		}
		p.emit(prev)
		return
	}

	start := time.Now()
	out := p.render(frame, mode, radius, background)
	elapsed := time.Since(start)

	p.mu.Lock()
	p.lastOut = out
	if elapsed > p.RenderInterval {
		p.overBudget = true
	}
	p.mu.Unlock()
	p.emit(out)
}

func (p *Pipeline) render(frame *Frame, mode Mode, radius int, background *Frame) *Frame {
	if mode == ModeNone {
		return frame
	}
	// The mask is held between segmentation updates: Peek keeps returning
	// the newest one until the segmenter replaces it.
	mask := p.slot.Peek()
	if mask == nil {
		return frame
	}
	switch mode {
	case ModeBlur:
		return Composite(frame, BoxBlur(frame, radius), mask)
	case ModeReplace:
		if background == nil {
			return frame
		}
		return Composite(frame, background, mask)
	default:
		return frame
	}
}

func (p *Pipeline) emit(f *Frame) {
	if p.onOutput != nil {
		p.onOutput(f)
	}
}
