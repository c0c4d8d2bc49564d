// Package prefs persists per-user call preferences between sessions.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
	"github.com/nqh2610/lophoconline-sub007/internal/effects"
)

type Preferences struct {
	CameraOn   bool         `json:"camera_on"`
	MicOn      bool         `json:"mic_on"`
	EffectMode effects.Mode `json:"effect_mode"`
	Background string       `json:"background,omitempty"`
	BlurRadius int          `json:"blur_radius,omitempty"`
}

// Defaults apply when a user has no stored document yet.
func Defaults() Preferences {
	return Preferences{CameraOn: true, MicOn: true, EffectMode: effects.ModeNone}
}

// Store keeps one JSON document per user under a directory. Writes go to a
// temp file first and rename into place, so a crash never leaves a torn
// document behind.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prefs dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id domain.Identity) string {
	return filepath.Join(s.dir, string(id)+".json")
}

func (s *Store) Load(id domain.Identity) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), err
	}
	p := Defaults()
	if err := json.Unmarshal(data, &p); err != nil {
		// A corrupt document resets to defaults rather than blocking the call.
		return Defaults(), nil
	}
	return p, nil
}

func (s *Store) Save(id domain.Identity, p Preferences) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(s.dir, "prefs-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(id))
}
