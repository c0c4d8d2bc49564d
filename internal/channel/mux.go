package channel

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

var errChannelNotOpen = errors.New("data channel not open")

// Mux runs the four logical channels of a call over one peer connection.
// It survives media reattachment: outlets and their retry queues persist
// while the underlying channels are replaced on every attempt.
type Mux struct {
	mu      sync.Mutex
	self    domain.Identity
	outlets map[string]*outlet

	files     *Reassembler
	reactions *ReactionSet

	onChat    func(ChatMessage)
	onStroke  func(Stroke)
	onControl func(ControlMessage)
	onBytes   func(int)
}

type outlet struct {
	mu    sync.Mutex
	dc    *webrtc.DataChannel
	open  bool
	queue *retryQueue
}

func NewMux(self domain.Identity, onFile func(FileMeta, []byte)) *Mux {
	m := &Mux{
		self:      self,
		outlets:   make(map[string]*outlet),
		reactions: NewReactionSet(DefaultReactionTTL),
	}
	m.files = NewReassembler(onFile)
	m.files.OnBytes(func(n int) { m.countBytes(n) })
	for _, label := range []string{LabelChat, LabelWhiteboard, LabelControl, LabelFile} {
		m.outlets[label] = &outlet{queue: newRetryQueue(defaultQueueCap)}
	}
	return m
}

func (m *Mux) OnChat(fn func(ChatMessage))       { m.onChat = fn }
func (m *Mux) OnStroke(fn func(Stroke))          { m.onStroke = fn }
func (m *Mux) OnControl(fn func(ControlMessage)) { m.onControl = fn }

// OnBytes sets a hook counting file payload bytes in both directions.
func (m *Mux) OnBytes(fn func(int)) { m.onBytes = fn }

func (m *Mux) Reactions() *ReactionSet { return m.reactions }

// Attach binds the mux to a fresh media connection. The initiating side
// opens all four channels; the other side adopts them as they are announced.
func (m *Mux) Attach(media core.MediaConnection, initiator bool) error {
	media.OnDataChannel(func(dc *webrtc.DataChannel) { m.bind(dc) })
	if !initiator {
		return nil
	}
	for _, label := range []string{LabelChat, LabelWhiteboard, LabelControl, LabelFile} {
		dc, err := media.CreateDataChannel(label, nil)
		if err != nil {
			return err
		}
		m.bind(dc)
	}
	return nil
}

func (m *Mux) bind(dc *webrtc.DataChannel) {
	label := dc.Label()
	m.mu.Lock()
	o, ok := m.outlets[label]
	m.mu.Unlock()
	if !ok {
		log.Warn().Str("module", "channel").Str("label", label).Msg("unknown channel announced")
		return
	}

	o.mu.Lock()
	o.dc = dc
	o.open = false
	o.mu.Unlock()

	dc.OnOpen(func() {
		o.mu.Lock()
		o.open = true
		o.mu.Unlock()
		log.Debug().Str("module", "channel").Str("label", label).Msg("channel open")
		o.queue.drain(o.send)
	})
	dc.OnClose(func() {
		o.mu.Lock()
		o.open = false
		o.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		m.dispatch(label, msg)
	})
}

func (m *Mux) dispatch(label string, msg webrtc.DataChannelMessage) {
	switch label {
	case LabelChat:
		var cm ChatMessage
		if err := json.Unmarshal(msg.Data, &cm); err != nil {
			log.Warn().Err(err).Str("module", "channel").Msg("bad chat frame")
			return
		}
		if m.onChat != nil {
			m.onChat(cm)
		}
	case LabelWhiteboard:
		var s Stroke
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			log.Warn().Err(err).Str("module", "channel").Msg("bad whiteboard frame")
			return
		}
		if m.onStroke != nil {
			m.onStroke(s)
		}
	case LabelControl:
		var cm ControlMessage
		if err := json.Unmarshal(msg.Data, &cm); err != nil {
			log.Warn().Err(err).Str("module", "channel").Msg("bad control frame")
			return
		}
		if cm.Kind == CtrlReaction {
			m.reactions.Add(cm.Value, cm.From)
		}
		if m.onControl != nil {
			m.onControl(cm)
		}
	case LabelFile:
		if err := m.files.Handle(msg.Data); err != nil {
			log.Warn().Err(err).Str("module", "channel").Msg("file frame rejected")
		}
	}
}

func (m *Mux) SendChat(text string) error {
	return m.sendJSON(LabelChat, ChatMessage{From: m.self, Text: text, SentAt: time.Now()})
}

func (m *Mux) SendStroke(s Stroke) error {
	s.From = m.self
	return m.sendJSON(LabelWhiteboard, s)
}

func (m *Mux) SendControl(kind ControlKind, on bool, value string) error {
	return m.sendJSON(LabelControl, ControlMessage{
		Kind:   kind,
		From:   m.self,
		On:     on,
		Value:  value,
		SentAt: time.Now(),
	})
}

// SendReaction shows the reaction locally and sends it best effort: a
// reaction that cannot go out right now is dropped, never queued, because a
// stale reaction is worse than a missing one.
func (m *Mux) SendReaction(emoji string) {
	m.reactions.Add(emoji, m.self)
	data, err := json.Marshal(ControlMessage{
		Kind:   CtrlReaction,
		From:   m.self,
		Value:  emoji,
		SentAt: time.Now(),
	})
	if err != nil {
		return
	}
	o := m.outlet(LabelControl)
	if err := o.send(true, data); err != nil {
		log.Debug().Str("module", "channel").Msg("reaction dropped, channel not open")
	}
}

// SendFile splits data into chunk frames bracketed by start and end.
// The channel's ordering guarantee means the receiver sees them in this order.
// A transfer larger than the retry queue can never survive queueing, so the
// whole transfer requires an open channel up front and any mid-stream write
// failure aborts it rather than queueing a torn tail.
func (m *Mux) SendFile(name, mime string, data []byte) (uuid.UUID, error) {
	if len(data) > MaxTransferSize {
		return uuid.Nil, errors.New("file exceeds transfer size cap")
	}
	o := m.outlet(LabelFile)
	id := uuid.New()
	meta := FileMeta{ID: id, Name: name, Size: uint64(len(data)), Mime: mime}
	if err := o.send(false, EncodeStart(meta)); err != nil {
		return uuid.Nil, err
	}

	var seq uint32
	for off := 0; off < len(data); off += ChunkSize {
		end := off + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := o.send(false, EncodeChunk(id, seq, data[off:end])); err != nil {
			return uuid.Nil, err
		}
		m.countBytes(end - off)
		seq++
	}
	if err := o.send(false, EncodeEnd(id, seq)); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (m *Mux) sendJSON(label string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.sendOrQueue(label, true, data)
	return nil
}

func (m *Mux) sendOrQueue(label string, text bool, data []byte) {
	o := m.outlet(label)
	if err := o.send(text, data); err != nil {
		o.queue.push(text, data)
	}
}

func (m *Mux) outlet(label string) *outlet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outlets[label]
}

func (m *Mux) countBytes(n int) {
	if m.onBytes != nil {
		m.onBytes(n)
	}
}

func (o *outlet) send(text bool, data []byte) error {
	o.mu.Lock()
	dc, open := o.dc, o.open
	o.mu.Unlock()
	if dc == nil || !open {
		return errChannelNotOpen
	}
	if text {
		return dc.SendText(string(data))
	}
	return dc.Send(data)
}
