package channel

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassembleRoundTrip(t *testing.T) {
	var gotMeta FileMeta
	var gotData []byte
	r := NewReassembler(func(meta FileMeta, data []byte) {
		gotMeta = meta
		gotData = data
	})

	payload := bytes.Repeat([]byte("lesson"), 10_000)
	id := uuid.New()
	meta := FileMeta{ID: id, Name: "notes.pdf", Size: uint64(len(payload)), Mime: "application/pdf"}

	require.NoError(t, r.Handle(EncodeStart(meta)))
	var seq uint32
	for off := 0; off < len(payload); off += ChunkSize {
		end := off + ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		require.NoError(t, r.Handle(EncodeChunk(id, seq, payload[off:end])))
		seq++
	}
	require.NoError(t, r.Handle(EncodeEnd(id, seq)))

	assert.Equal(t, "notes.pdf", gotMeta.Name)
	assert.Equal(t, "application/pdf", gotMeta.Mime)
	assert.Equal(t, payload, gotData)
	assert.Zero(t, r.Pending())
}

func TestReassembleCountsBytes(t *testing.T) {
	r := NewReassembler(func(FileMeta, []byte) {})
	var counted int
	r.OnBytes(func(n int) { counted += n })

	id := uuid.New()
	require.NoError(t, r.Handle(EncodeStart(FileMeta{ID: id, Name: "a", Size: 8})))
	require.NoError(t, r.Handle(EncodeChunk(id, 0, []byte("12345678"))))
	assert.Equal(t, 8, counted)
}

func TestReassembleOutOfOrderAborts(t *testing.T) {
	r := NewReassembler(func(FileMeta, []byte) {})
	id := uuid.New()
	require.NoError(t, r.Handle(EncodeStart(FileMeta{ID: id, Name: "a", Size: 100})))
	require.NoError(t, r.Handle(EncodeChunk(id, 0, []byte("abc"))))

	err := r.Handle(EncodeChunk(id, 2, []byte("def")))
	require.Error(t, err)
	assert.Zero(t, r.Pending(), "broken transfer should be discarded")
}

func TestReassembleSizeMismatch(t *testing.T) {
	r := NewReassembler(func(FileMeta, []byte) {
		t.Fatal("incomplete transfer must not complete")
	})
	id := uuid.New()
	require.NoError(t, r.Handle(EncodeStart(FileMeta{ID: id, Name: "a", Size: 100})))
	require.NoError(t, r.Handle(EncodeChunk(id, 0, []byte("short"))))
	require.Error(t, r.Handle(EncodeEnd(id, 1)))
}

func TestReassembleUnknownTransfer(t *testing.T) {
	r := NewReassembler(func(FileMeta, []byte) {})
	require.Error(t, r.Handle(EncodeChunk(uuid.New(), 0, []byte("x"))))
	require.Error(t, r.Handle(EncodeEnd(uuid.New(), 0)))
}

func TestReassembleRejectsOversizedDeclaration(t *testing.T) {
	r := NewReassembler(func(FileMeta, []byte) {})
	err := r.Handle(EncodeStart(FileMeta{ID: uuid.New(), Name: "big", Size: MaxTransferSize + 1}))
	require.Error(t, err)
}

func TestReassembleShortFrame(t *testing.T) {
	r := NewReassembler(func(FileMeta, []byte) {})
	require.Error(t, r.Handle([]byte{frameChunk, 0x01}))
}
