package uuid

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LoadOrCreate returns the control point UUID stored at path, generating and
// persisting a new one on first use. The returned error is informational:
// the UUID is always usable.
func LoadOrCreate(path string) (string, error) {
	if b, err := os.ReadFile(path); err == nil {
		s := strings.TrimPrefix(strings.TrimSpace(string(b)), "uuid:")
		if id, err := uuid.Parse(s); err == nil {
			return id.String(), nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return id, err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return id, err
	}
	return id, nil
}
