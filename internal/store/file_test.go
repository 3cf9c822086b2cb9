package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type record struct {
	Name  string   `json:"name" validate:"required"`
	Count int      `json:"count"`
	Temp  *float64 `json:"temp"`
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "storage"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	temp := 20.1
	want := record{Name: "clear sky", Count: 3, Temp: &temp}

	if err := s.Write("weather", want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := Read(s, "weather", record{Name: "default"})
	if got.Name != want.Name || got.Count != want.Count {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if got.Temp == nil || *got.Temp != temp {
		t.Fatalf("expected temp %v, got %v", temp, got.Temp)
	}
}

func TestReadMissingReturnsDefault(t *testing.T) {
	s := newTestStore(t)
	got := Read(s, "absent", record{Name: "default"})
	if got.Name != "default" {
		t.Fatalf("expected default, got %+v", got)
	}
}

func TestReadInvalidJSONReturnsDefault(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	got := Read(s, "broken", record{Name: "default"})
	if got.Name != "default" {
		t.Fatalf("expected default for corrupt file, got %+v", got)
	}
}

func TestReadWrongShapeReturnsDefault(t *testing.T) {
	s := newTestStore(t)
	// Valid JSON, but the required name is missing.
	if err := os.WriteFile(filepath.Join(s.Dir(), "shape.json"), []byte(`{"count": 2}`), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	got := Read(s, "shape", record{Name: "default"})
	if got.Name != "default" || got.Count != 0 {
		t.Fatalf("expected default for wrong shape, got %+v", got)
	}
}

func TestWriteOverwritesAndLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.Write("counter", record{Name: "n", Count: i}); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if got := Read(s, "counter", record{}); got.Count != 4 {
		t.Fatalf("expected last write to win, got %+v", got)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(entries))
	}
}

func TestInvalidKey(t *testing.T) {
	s := newTestStore(t)
	for _, key := range []string{"", "../escape", `a\b`, ".."} {
		if err := s.Write(key, record{Name: "x"}); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestEnsureDefault(t *testing.T) {
	s := newTestStore(t)
	if err := EnsureDefault(s, "seed", record{Name: "first"}); err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}
	if err := EnsureDefault(s, "seed", record{Name: "second"}); err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}
	if got := Read(s, "seed", record{}); got.Name != "first" {
		t.Fatalf("existing entry must not be replaced, got %+v", got)
	}
	if !s.Exists("seed") || s.Exists("other") {
		t.Fatalf("Exists reported wrong state")
	}
}
