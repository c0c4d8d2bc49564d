package app

import (
	"context"
	"testing"
	"time"

	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	m := NewRoomManager(time.Minute, time.Minute)
	a := m.GetOrCreate("room-1")
	b := m.GetOrCreate("room-1")
	if a != b {
		t.Fatal("same ID should return the same room")
	}
	defer m.StopRoom("room-1")

	if got, ok := m.Get("room-1"); !ok || got != a {
		t.Fatal("Get() should find the created room")
	}
	if _, ok := m.Get("room-2"); ok {
		t.Fatal("Get() should miss unknown rooms")
	}
}

func TestCountHookFollowsRoomLifecycle(t *testing.T) {
	m := NewRoomManager(time.Minute, time.Minute)
	var counts []int
	m.SetCountHook(func(n int) { counts = append(counts, n) })

	m.GetOrCreate("room-1")
	m.GetOrCreate("room-2")
	m.StopRoom("room-1")
	m.StopRoom("room-2")

	want := []int{1, 2, 1, 0}
	if len(counts) != len(want) {
		t.Fatalf("counts = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("counts = %v, want %v", counts, want)
		}
	}
}

func TestJanitorReapsIdleRooms(t *testing.T) {
	m := NewRoomManager(5*time.Millisecond, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.GetOrCreate("room-idle")
	occupied := m.GetOrCreate("room-busy")
	occupied.Join(domain.Participant{Identity: "tutor-1", Conn: "c1", Role: domain.RoleTutor}, nopConn{})
	occupied.MemberCount() // wait for the join to land

	m.StartJanitor(ctx, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	if _, ok := m.Get("room-idle"); ok {
		t.Fatal("idle room should have been reaped")
	}
	if _, ok := m.Get("room-busy"); !ok {
		t.Fatal("occupied room must survive the sweep")
	}
}

func TestRegistryBindLookupUnbind(t *testing.T) {
	r := NewRegistry()
	r.Bind("conn-1", "room-1", "tutor-1", nopConn{}, nil)

	room, identity, ok := r.Lookup("conn-1")
	if !ok || room != "room-1" || identity != "tutor-1" {
		t.Fatalf("Lookup() = %q/%q/%v", room, identity, ok)
	}

	r.Unbind("conn-1")
	if _, _, ok := r.Lookup("conn-1"); ok {
		t.Fatal("Lookup() after Unbind should miss")
	}
}

func TestRegistryCancelFiresCancelFunc(t *testing.T) {
	r := NewRegistry()
	canceled := false
	r.Bind("conn-1", "room-1", "tutor-1", nopConn{}, func() { canceled = true })

	if !r.Cancel("conn-1") {
		t.Fatal("Cancel() of a bound conn should report true")
	}
	if !canceled {
		t.Fatal("cancel func should have fired")
	}
	if r.Cancel("conn-unknown") {
		t.Fatal("Cancel() of an unknown conn should report false")
	}
}
