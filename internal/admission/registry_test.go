package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

var lessonStart = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func testSession() *domain.Session {
	return &domain.Session{
		ID:             "s1",
		RoomID:         "room-1",
		TutorID:        "tutor-1",
		StudentID:      "student-1",
		TutorToken:     "tok-tutor",
		StudentToken:   "tok-student",
		ScheduledStart: lessonStart,
		ScheduledEnd:   lessonStart.Add(time.Hour),
		Status:         domain.SessionConfirmed,
		Paid:           true,
	}
}

func testRegistry(s *domain.Session, now time.Time) *Registry {
	store := NewMemoryStore()
	store.Put(s)
	r := NewRegistry(store, 15*time.Minute, 60*time.Minute)
	r.now = func() time.Time { return now }
	return r
}

func TestAdmitTutorAndStudent(t *testing.T) {
	r := testRegistry(testSession(), lessonStart)

	adm, err := r.ValidateAndAdmit(context.Background(), "tok-tutor")
	if err != nil {
		t.Fatalf("ValidateAndAdmit(tutor) error = %v", err)
	}
	if adm.Identity != "tutor-1" || adm.Role != domain.RoleTutor || adm.Room != "room-1" {
		t.Fatalf("unexpected tutor admission: %+v", adm)
	}

	adm, err = r.ValidateAndAdmit(context.Background(), "tok-student")
	if err != nil {
		t.Fatalf("ValidateAndAdmit(student) error = %v", err)
	}
	if adm.Identity != "student-1" || adm.Role != domain.RoleStudent {
		t.Fatalf("unexpected student admission: %+v", adm)
	}
}

func TestAdmitWindowBoundaries(t *testing.T) {
	end := lessonStart.Add(time.Hour)
	cases := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{"exactly at open", lessonStart.Add(-15 * time.Minute), nil},
		{"one second before open", lessonStart.Add(-15*time.Minute - time.Second), domain.ErrAdmissionNotOpen},
		{"exactly at close", end.Add(60 * time.Minute), nil},
		{"one second after close", end.Add(60*time.Minute + time.Second), domain.ErrAdmissionExpired},
		{"mid lesson", lessonStart.Add(30 * time.Minute), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := testRegistry(testSession(), tc.now)
			_, err := r.ValidateAndAdmit(context.Background(), "tok-tutor")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAdmitUnknownToken(t *testing.T) {
	r := testRegistry(testSession(), lessonStart)
	_, err := r.ValidateAndAdmit(context.Background(), "nope")
	if !errors.Is(err, domain.ErrUnknownToken) {
		t.Fatalf("error = %v, want ErrUnknownToken", err)
	}
}

func TestAdmitRevoked(t *testing.T) {
	canceled := testSession()
	canceled.Status = domain.SessionCanceled
	r := testRegistry(canceled, lessonStart)
	if _, err := r.ValidateAndAdmit(context.Background(), "tok-tutor"); !errors.Is(err, domain.ErrAdmissionRevoked) {
		t.Fatalf("canceled session error = %v, want ErrAdmissionRevoked", err)
	}

	unpaid := testSession()
	unpaid.Paid = false
	r = testRegistry(unpaid, lessonStart)
	if _, err := r.ValidateAndAdmit(context.Background(), "tok-student"); !errors.Is(err, domain.ErrAdmissionRevoked) {
		t.Fatalf("unpaid session error = %v, want ErrAdmissionRevoked", err)
	}
}

func TestAdmitRecordExpiry(t *testing.T) {
	s := testSession()
	s.ExpiresAt = lessonStart.Add(10 * time.Minute)
	r := testRegistry(s, lessonStart.Add(11*time.Minute))
	if _, err := r.ValidateAndAdmit(context.Background(), "tok-tutor"); !errors.Is(err, domain.ErrAdmissionExpired) {
		t.Fatalf("error = %v, want ErrAdmissionExpired", err)
	}
}

func TestMemoryStorePutReplacesTokens(t *testing.T) {
	store := NewMemoryStore()
	s := testSession()
	store.Put(s)

	s2 := testSession()
	s2.TutorToken = "tok-tutor-2"
	store.Put(s2)

	if _, err := store.SessionByToken(context.Background(), "tok-tutor"); !errors.Is(err, domain.ErrUnknownToken) {
		t.Fatalf("old token should be gone, got err = %v", err)
	}
	got, err := store.SessionByToken(context.Background(), "tok-tutor-2")
	if err != nil {
		t.Fatalf("SessionByToken() error = %v", err)
	}
	if got.ID != "s1" {
		t.Fatalf("session ID = %q, want s1", got.ID)
	}
}
