package channel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// File channel frame types.
const (
	frameStart byte = 0x01
	frameChunk byte = 0x02
	frameEnd   byte = 0x03
)

// Frame header: 1 byte type + 16 byte transfer id.
const fileHeaderSize = 17

// ChunkSize keeps frames well under the SCTP message limit.
const ChunkSize = 16 * 1024

// MaxTransferSize caps a single file transfer.
const MaxTransferSize = 64 * 1024 * 1024

type FileMeta struct {
	ID   uuid.UUID
	Name string
	Size uint64
	Mime string
}

// EncodeStart serializes the opening frame of a transfer.
// Layout after the header: u16 name length, name, u64 size, u16 mime length, mime.
func EncodeStart(meta FileMeta) []byte {
	name := []byte(meta.Name)
	mime := []byte(meta.Mime)
	buf := make([]byte, fileHeaderSize+2+len(name)+8+2+len(mime))
	buf[0] = frameStart
	copy(buf[1:17], meta.ID[:])
	off := fileHeaderSize
	binary.BigEndian.PutUint16(buf[off:], uint16(len(name)))
	off += 2
	copy(buf[off:], name)
	off += len(name)
	binary.BigEndian.PutUint64(buf[off:], meta.Size)
	off += 8
	binary.BigEndian.PutUint16(buf[off:], uint16(len(mime)))
	off += 2
	copy(buf[off:], mime)
	return buf
}

// EncodeChunk serializes one payload frame. Layout after the header: u32 seq, payload.
func EncodeChunk(id uuid.UUID, seq uint32, payload []byte) []byte {
	buf := make([]byte, fileHeaderSize+4+len(payload))
	buf[0] = frameChunk
	copy(buf[1:17], id[:])
	binary.BigEndian.PutUint32(buf[fileHeaderSize:], seq)
	copy(buf[fileHeaderSize+4:], payload)
	return buf
}

// EncodeEnd serializes the closing frame. Layout after the header: u32 chunk count.
func EncodeEnd(id uuid.UUID, chunks uint32) []byte {
	buf := make([]byte, fileHeaderSize+4)
	buf[0] = frameEnd
	copy(buf[1:17], id[:])
	binary.BigEndian.PutUint32(buf[fileHeaderSize:], chunks)
	return buf
}

type transfer struct {
	meta FileMeta
	buf  bytes.Buffer
	next uint32
}

// Reassembler rebuilds inbound file transfers from start/chunk/end frames.
// The channel is ordered and reliable, so any gap means a broken sender and
// aborts the transfer.
type Reassembler struct {
	mu        sync.Mutex
	transfers map[uuid.UUID]*transfer
	onDone    func(FileMeta, []byte)
	onBytes   func(int)
}

func NewReassembler(onDone func(FileMeta, []byte)) *Reassembler {
	return &Reassembler{
		transfers: make(map[uuid.UUID]*transfer),
		onDone:    onDone,
	}
}

// OnBytes sets a hook invoked with the payload size of every chunk received.
func (r *Reassembler) OnBytes(fn func(int)) { r.onBytes = fn }

func (r *Reassembler) Handle(data []byte) error {
	if len(data) < fileHeaderSize {
		return fmt.Errorf("file frame too short: %d bytes (need at least %d)", len(data), fileHeaderSize)
	}
	var id uuid.UUID
	copy(id[:], data[1:17])
	body := data[fileHeaderSize:]

	switch data[0] {
	case frameStart:
		return r.handleStart(id, body)
	case frameChunk:
		return r.handleChunk(id, body)
	case frameEnd:
		return r.handleEnd(id, body)
	default:
		return fmt.Errorf("unknown file frame type 0x%02x", data[0])
	}
}

func (r *Reassembler) handleStart(id uuid.UUID, body []byte) error {
	if len(body) < 2 {
		return fmt.Errorf("truncated start frame")
	}
	nameLen := int(binary.BigEndian.Uint16(body))
	if len(body) < 2+nameLen+8+2 {
		return fmt.Errorf("truncated start frame")
	}
	name := string(body[2 : 2+nameLen])
	off := 2 + nameLen
	size := binary.BigEndian.Uint64(body[off:])
	off += 8
	mimeLen := int(binary.BigEndian.Uint16(body[off:]))
	off += 2
	if len(body) < off+mimeLen {
		return fmt.Errorf("truncated start frame")
	}
	mime := string(body[off : off+mimeLen])

	if size > MaxTransferSize {
		return fmt.Errorf("transfer %s exceeds size cap: %d bytes", id, size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transfers[id]; exists {
		log.Warn().Str("module", "channel").Str("transfer", id.String()).Msg("start frame restarts transfer")
	}
	r.transfers[id] = &transfer{meta: FileMeta{ID: id, Name: name, Size: size, Mime: mime}}
	return nil
}

func (r *Reassembler) handleChunk(id uuid.UUID, body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("truncated chunk frame")
	}
	seq := binary.BigEndian.Uint32(body)
	payload := body[4:]

	r.mu.Lock()
	t, ok := r.transfers[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("chunk for unknown transfer %s", id)
	}
	if seq != t.next {
		delete(r.transfers, id)
		r.mu.Unlock()
		return fmt.Errorf("transfer %s chunk out of order: got %d, want %d", id, seq, t.next)
	}
	if uint64(t.buf.Len()+len(payload)) > t.meta.Size {
		delete(r.transfers, id)
		r.mu.Unlock()
		return fmt.Errorf("transfer %s overruns declared size", id)
	}
	t.buf.Write(payload)
	t.next++
	onBytes := r.onBytes
	r.mu.Unlock()

	if onBytes != nil {
		onBytes(len(payload))
	}
	return nil
}

func (r *Reassembler) handleEnd(id uuid.UUID, body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("truncated end frame")
	}
	chunks := binary.BigEndian.Uint32(body)

	r.mu.Lock()
	t, ok := r.transfers[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("end for unknown transfer %s", id)
	}
	delete(r.transfers, id)
	r.mu.Unlock()

	if chunks != t.next {
		return fmt.Errorf("transfer %s chunk count mismatch: got %d, want %d", id, t.next, chunks)
	}
	if uint64(t.buf.Len()) != t.meta.Size {
		return fmt.Errorf("transfer %s size mismatch: got %d, want %d", id, t.buf.Len(), t.meta.Size)
	}
	if r.onDone != nil {
		r.onDone(t.meta, t.buf.Bytes())
	}
	return nil
}

// Pending reports how many transfers are in flight.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transfers)
}
