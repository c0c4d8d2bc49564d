package rtc

import (
	"math/rand"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	videoClockRate = 90000
	rtpMTU         = 1200
)

// FrameTrack packetizes whole encoded video frames onto a local RTP track.
// The effects pipeline hands it composited frames; each frame becomes one or
// more RTP packets with the marker bit set on the last.
type FrameTrack struct {
	track *webrtc.TrackLocalStaticRTP

	ssrc      uint32
	seq       uint16
	timestamp uint32
}

func NewFrameTrack(id, streamID string) (*FrameTrack, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: videoClockRate},
		id, streamID,
	)
	if err != nil {
		return nil, err
	}
	return &FrameTrack{
		track:     track,
		ssrc:      rand.Uint32(),
		seq:       uint16(rand.Uint32()),
		timestamp: rand.Uint32(),
	}, nil
}

func (t *FrameTrack) Track() *webrtc.TrackLocalStaticRTP { return t.track }

// Push writes one encoded frame. durationTicks is the frame duration in
// 90kHz clock ticks (3000 for 30fps).
func (t *FrameTrack) Push(payload []byte, durationTicks uint32) error {
	t.timestamp += durationTicks
	for off := 0; off < len(payload) || off == 0; off += rtpMTU {
		end := off + rtpMTU
		if end > len(payload) {
			end = len(payload)
		}
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         end == len(payload),
				SequenceNumber: t.seq,
				Timestamp:      t.timestamp,
				SSRC:           t.ssrc,
			},
			Payload: payload[off:end],
		}
		t.seq++
		if err := t.track.WriteRTP(pkt); err != nil {
			log.Warn().Err(err).Str("module", "webrtc").Msg("frame track write")
			return err
		}
	}
	return nil
}
