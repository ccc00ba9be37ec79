package uuid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cp_uuid.txt")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("generated id %q is not a UUID: %v", first, err)
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if first != second {
		t.Errorf("id changed between loads: %s != %s", first, second)
	}
}

func TestLoadOrCreateReplacesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp_uuid.txt")
	if err := os.WriteFile(path, []byte("not-a-uuid"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	b, _ := os.ReadFile(path)
	if got := string(b); got != id+"\n" {
		t.Errorf("stored %q, want %q", got, id+"\n")
	}
}

func TestLoadOrCreateAcceptsPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp_uuid.txt")
	const want = "0199ffd9-6856-74cc-a2f2-4c74af0161b1"
	if err := os.WriteFile(path, []byte("uuid:"+want+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := LoadOrCreate(path)
	if err != nil || id != want {
		t.Errorf("LoadOrCreate() = %q, %v", id, err)
	}
}
