package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultGroup is appended to every persisted file name.
const DefaultGroup = "GC5"

// FileStore writes one JSON document per key under root.
type FileStore struct {
	root  string
	group string
}

func NewFileStore(root, group string) *FileStore {
	resolved := strings.TrimSpace(root)
	if resolved == "" {
		resolved = "responses"
	}
	return &FileStore{root: resolved, group: strings.TrimSpace(group)}
}

func (s *FileStore) Backend() string { return BackendFile }

func (s *FileStore) Close() error { return nil }

// FileName returns the file name for key. Distinct keys always map to
// distinct names: unsafe bytes are percent-encoded, and '_' is encoded in
// the username and group so the separators stay unambiguous.
func (s *FileStore) FileName(key Key) string {
	parts := []string{escapeName(key.Username, true), escapeName(key.Action, false)}
	if s.group != "" {
		parts = append(parts, escapeName(s.group, true))
	}
	return strings.Join(parts, "_") + ".json"
}

func (s *FileStore) Persist(_ context.Context, key Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	p, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	content := payload
	var indented bytes.Buffer
	if err := json.Indent(&indented, payload, "", "    "); err == nil {
		content = indented.Bytes()
	}
	return os.WriteFile(p, content, 0o644)
}

func (s *FileStore) Load(_ context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	p, err := s.resolvePath(key)
	if err != nil {
		return nil, err
	}
	out, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.FileName(key))
	}
	return out, err
}

func (s *FileStore) resolvePath(key Key) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(root, s.FileName(key)))
	if !isWithin(p, root) {
		return "", fmt.Errorf("%w: path escapes root", ErrInvalidKey)
	}
	return p, nil
}

// escapeName maps a free-form value to a single safe path element.
func escapeName(v string, escapeSep bool) string {
	if v == "." || v == ".." {
		return strings.Repeat("%2E", len(v))
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if needsEscape(c) || (escapeSep && c == '_') {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7f || c == os.PathSeparator {
		return true
	}
	return strings.IndexByte(`%/\:*?"<>|`, c) >= 0
}

func isWithin(path string, root string) bool {
	p := filepath.Clean(path)
	r := filepath.Clean(root)
	if p == r {
		return false
	}
	return strings.HasPrefix(p, r+string(os.PathSeparator))
}
