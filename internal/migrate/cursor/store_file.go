package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"redmig/internal/domain"
	"redmig/pkg/platform/sentinel"
)

// FileStore keeps the cursor in a JSON file, written with
// write-to-temp-then-rename semantics so a crash mid-write never leaves a
// torn cursor behind.
type FileStore struct {
	path string
}

// NewFile constructs a file-backed cursor store at path.
func NewFile(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (domain.BatchCursor, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.BatchCursor{}, fmt.Errorf("cursor file %s: %w", s.path, sentinel.ErrNotFound)
	}
	if err != nil {
		return domain.BatchCursor{}, fmt.Errorf("read cursor file: %w", err)
	}
	var c domain.BatchCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.BatchCursor{}, fmt.Errorf("parse cursor file %s: %w", s.path, err)
	}
	return c, nil
}

func (s *FileStore) Save(_ context.Context, c domain.BatchCursor) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".cursor-*")
	if err != nil {
		return fmt.Errorf("create cursor temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cursor temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync cursor temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cursor temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cursor file: %w", err)
	}
	return nil
}
