// Package preset stores entity type presets on disk.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/OCharnyshevich/hexworld/internal/sim/entity"
	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

// FileName is the preset file inside a preset directory.
const FileName = "types.json"

var (
	ErrUnknownClass = errors.New("unknown terrain class")
	ErrInvalid      = errors.New("invalid preset")
)

// Type describes one entity type. Zero interval or wander values fall back
// to the defaults passed to Table.
type Type struct {
	Type         string `json:"type"`
	Class        string `json:"class"`
	MoveInterval string `json:"move_interval,omitempty"`
	WanderMin    int    `json:"wander_min,omitempty"`
	WanderMax    int    `json:"wander_max,omitempty"`
}

// File is the on-disk layout of types.json.
type File struct {
	Types []Type `json:"types"`
}

// Builtin returns the types used when no preset directory is configured.
func Builtin() []Type {
	return []Type{
		{Type: "viking", Class: "water", MoveInterval: "4s"},
		{Type: "longship", Class: "water", MoveInterval: "5s"},
		{Type: "warrior", Class: "land", MoveInterval: "3s"},
		{Type: "king", Class: "land", MoveInterval: "6s"},
		{Type: "dino", Class: "land", MoveInterval: "2s"},
	}
}

// Table converts types into the registry's lookup table.
func Table(types []Type, def entity.TypeInfo) (map[string]entity.TypeInfo, error) {
	out := make(map[string]entity.TypeInfo, len(types))
	for i, t := range types {
		if t.Type == "" {
			return nil, fmt.Errorf("type #%d has no name: %w", i, ErrInvalid)
		}
		class, ok := terrain.ParseClass(t.Class)
		if !ok {
			return nil, fmt.Errorf("type %s: class %q: %w", t.Type, t.Class, ErrUnknownClass)
		}
		info := def
		info.Class = class
		if t.MoveInterval != "" {
			d, err := time.ParseDuration(t.MoveInterval)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("type %s: move interval %q: %w", t.Type, t.MoveInterval, ErrInvalid)
			}
			info.MoveInterval = d
		}
		if t.WanderMin > 0 {
			info.WanderMin = t.WanderMin
		}
		if t.WanderMax > 0 {
			info.WanderMax = t.WanderMax
		}
		if info.WanderMin > info.WanderMax {
			return nil, fmt.Errorf("type %s: wander band %d..%d: %w", t.Type, info.WanderMin, info.WanderMax, ErrInvalid)
		}
		out[t.Type] = info
	}
	return out, nil
}

// Store reads and writes presets under a directory.
type Store struct {
	dir string
	log *slog.Logger
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Load reads types.json. A missing file yields the built-in types.
func (s *Store) Load() ([]Type, error) {
	path := filepath.Join(s.dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Builtin(), nil
		}
		return nil, fmt.Errorf("read presets: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	s.log.Info("loaded presets from file", "path", path, "types", len(f.Types))
	return f.Types, nil
}

// Save writes types to types.json atomically.
func (s *Store) Save(types []Type) error {
	return atomicWriteJSON(filepath.Join(s.dir, FileName), File{Types: types})
}

// atomicWriteJSON marshals v to JSON and writes it using a temp file + rename.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
