package roles

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the bundle as JSON, creating parent directories as needed.
func (b *Bundle) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding role bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing role bundle %s: %w", path, err)
	}
	return nil
}

// LoadBundle reads a previously saved bundle.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading role bundle %s: %w", path, err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding role bundle %s: %w", path, err)
	}
	if b.Model == nil || b.Scaler == nil || len(b.Features) == 0 {
		return nil, fmt.Errorf("role bundle %s is incomplete", path)
	}
	return &b, nil
}
