package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nqh2610/lophoconline-sub007/internal/effects"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	p, err := s.Load("tutor-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !p.CameraOn || !p.MicOn || p.EffectMode != effects.ModeNone {
		t.Fatalf("defaults = %+v", p)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	want := Preferences{CameraOn: false, MicOn: true, EffectMode: effects.ModeBlur, BlurRadius: 12}
	if err := s.Save("student-1", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load("student-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestCorruptDocumentResetsToDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tutor-1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := s.Load("tutor-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p != Defaults() {
		t.Fatalf("corrupt file should yield defaults, got %+v", p)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := s.Save("u1", Defaults()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "u1.json" {
		t.Fatalf("dir entries = %v, want only u1.json", entries)
	}
}
