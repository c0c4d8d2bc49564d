package core

import (
	"sync"
	"testing"
	"time"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) envelopes(t *testing.T) []Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := DecodeEnvelope(f)
		if err != nil {
			t.Fatalf("DecodeEnvelope() error = %v", err)
		}
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func newTestRoom(debounce time.Duration) RoomService {
	return NewRoomService(&domain.Room{ID: "room-1"}, debounce)
}

func tutorPart(conn domain.ConnID) domain.Participant {
	return domain.Participant{Identity: "tutor-1", Conn: conn, Role: domain.RoleTutor}
}

func studentPart(conn domain.ConnID) domain.Participant {
	return domain.Participant{Identity: "student-1", Conn: conn, Role: domain.RoleStudent}
}

// sync flushes the actor's command queue.
func flush(r RoomService) { r.MemberCount() }

func TestJoinAnnouncesBothDirections(t *testing.T) {
	room := newTestRoom(time.Minute)
	defer room.Stop()

	tc, sc := &fakeConn{}, &fakeConn{}
	room.Join(tutorPart("conn-t"), tc)
	room.Join(studentPart("conn-s"), sc)
	flush(room)

	tEvents := tc.envelopes(t)
	if len(tEvents) != 1 || tEvents[0].Type != MsgPeerJoined || tEvents[0].Identity != "student-1" {
		t.Fatalf("tutor events = %+v, want one peer-joined for student", tEvents)
	}
	sEvents := sc.envelopes(t)
	if len(sEvents) != 1 || sEvents[0].Type != MsgPeerJoined || sEvents[0].Identity != "tutor-1" {
		t.Fatalf("student events = %+v, want one peer-joined for tutor", sEvents)
	}
	if n := room.MemberCount(); n != 2 {
		t.Fatalf("MemberCount() = %d, want 2", n)
	}
}

func TestDeviceTakeover(t *testing.T) {
	room := newTestRoom(time.Minute)
	defer room.Stop()

	retired := make(chan domain.ConnID, 1)
	room.SetRetireHook(func(conn domain.ConnID, reason RetireReason) {
		if reason == RetiredReplaced {
			retired <- conn
		}
	})

	oldDev, sc := &fakeConn{}, &fakeConn{}
	room.Join(tutorPart("conn-old"), oldDev)
	room.Join(studentPart("conn-s"), sc)
	flush(room)
	oldDev.reset()
	sc.reset()

	newDev := &fakeConn{}
	room.Join(tutorPart("conn-new"), newDev)
	flush(room)

	oldEvents := oldDev.envelopes(t)
	if len(oldEvents) != 1 || oldEvents[0].Type != MsgPeerReplaced {
		t.Fatalf("old device events = %+v, want exactly one peer-replaced", oldEvents)
	}
	if oldEvents[0].OldConn != "conn-old" {
		t.Fatalf("OldConn = %q, want conn-old", oldEvents[0].OldConn)
	}

	sEvents := sc.envelopes(t)
	if len(sEvents) != 1 || sEvents[0].Type != MsgPeerJoined || sEvents[0].Conn != "conn-new" {
		t.Fatalf("student events = %+v, want peer-joined for conn-new", sEvents)
	}
	nEvents := newDev.envelopes(t)
	if len(nEvents) != 1 || nEvents[0].Type != MsgPeerJoined || nEvents[0].Identity != "student-1" {
		t.Fatalf("new device events = %+v, want peer-joined for student", nEvents)
	}

	select {
	case conn := <-retired:
		if conn != "conn-old" {
			t.Fatalf("retired conn = %q, want conn-old", conn)
		}
	case <-time.After(time.Second):
		t.Fatal("retire hook not called")
	}
	if n := room.MemberCount(); n != 2 {
		t.Fatalf("MemberCount() = %d, want 2", n)
	}
}

func TestRejoinWithinDebounceIsSilent(t *testing.T) {
	room := newTestRoom(60 * time.Millisecond)
	defer room.Stop()

	tc, sc := &fakeConn{}, &fakeConn{}
	room.Join(tutorPart("conn-t"), tc)
	room.Join(studentPart("conn-s"), sc)
	flush(room)
	tc.reset()
	sc.reset()

	room.Disconnect("tutor-1", "conn-t")
	flush(room)
	room.Join(tutorPart("conn-t"), tc)
	flush(room)

	time.Sleep(150 * time.Millisecond)
	flush(room)

	if events := sc.envelopes(t); len(events) != 0 {
		t.Fatalf("student events = %+v, want none", events)
	}
	if events := tc.envelopes(t); len(events) != 0 {
		t.Fatalf("tutor events = %+v, want none", events)
	}
	if n := room.MemberCount(); n != 2 {
		t.Fatalf("MemberCount() = %d, want 2", n)
	}
}

func TestDebounceExpiryEmitsPeerLeft(t *testing.T) {
	room := newTestRoom(30 * time.Millisecond)
	defer room.Stop()

	retired := make(chan RetireReason, 1)
	room.SetRetireHook(func(conn domain.ConnID, reason RetireReason) {
		retired <- reason
	})

	tc, sc := &fakeConn{}, &fakeConn{}
	room.Join(tutorPart("conn-t"), tc)
	room.Join(studentPart("conn-s"), sc)
	flush(room)
	sc.reset()

	room.Disconnect("tutor-1", "conn-t")
	time.Sleep(100 * time.Millisecond)
	flush(room)

	events := sc.envelopes(t)
	if len(events) != 1 || events[0].Type != MsgPeerLeft || events[0].Identity != "tutor-1" {
		t.Fatalf("student events = %+v, want one peer-left for tutor", events)
	}
	select {
	case reason := <-retired:
		if reason != RetiredLeft {
			t.Fatalf("retire reason = %v, want RetiredLeft", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("retire hook not called")
	}
	if n := room.MemberCount(); n != 1 {
		t.Fatalf("MemberCount() = %d, want 1", n)
	}
}

func TestStaleDisconnectIgnored(t *testing.T) {
	room := newTestRoom(10 * time.Millisecond)
	defer room.Stop()

	tc := &fakeConn{}
	room.Join(tutorPart("conn-t"), tc)
	flush(room)

	room.Disconnect("tutor-1", "conn-stale")
	time.Sleep(50 * time.Millisecond)
	flush(room)

	if n := room.MemberCount(); n != 1 {
		t.Fatalf("MemberCount() = %d, want 1", n)
	}
}

func TestIdleSinceTracksEmptiness(t *testing.T) {
	room := newTestRoom(10 * time.Millisecond)
	defer room.Stop()

	if _, idle := room.IdleSince(); !idle {
		t.Fatal("fresh room should be idle")
	}

	tc := &fakeConn{}
	room.Join(tutorPart("conn-t"), tc)
	flush(room)
	if _, idle := room.IdleSince(); idle {
		t.Fatal("occupied room should not be idle")
	}

	room.Disconnect("tutor-1", "conn-t")
	time.Sleep(60 * time.Millisecond)
	if _, idle := room.IdleSince(); !idle {
		t.Fatal("emptied room should be idle again")
	}
}

func TestRelayReachesOtherPartyOnly(t *testing.T) {
	room := newTestRoom(time.Minute)
	defer room.Stop()

	tc, sc := &fakeConn{}, &fakeConn{}
	room.Join(tutorPart("conn-t"), tc)
	room.Join(studentPart("conn-s"), sc)
	flush(room)
	tc.reset()
	sc.reset()

	room.Relay("tutor-1", Envelope{Type: MsgOffer, Room: "room-1", From: "tutor-1", SDP: "v=0"})
	flush(room)

	sEvents := sc.envelopes(t)
	if len(sEvents) != 1 || sEvents[0].Type != MsgOffer || sEvents[0].SDP != "v=0" {
		t.Fatalf("student events = %+v, want the relayed offer", sEvents)
	}
	if events := tc.envelopes(t); len(events) != 0 {
		t.Fatalf("tutor events = %+v, want none", events)
	}
}
