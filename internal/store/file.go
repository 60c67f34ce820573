package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileSnapshotter writes one indented JSON backup per commit into Dir.
type FileSnapshotter struct {
	Dir string
}

func NewFileSnapshotter(dir string) (*FileSnapshotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &FileSnapshotter{Dir: dir}, nil
}

// FileName is <code>-<name>-<unix ms>[-suffix].json with every
// non-alphanumeric character of the league name replaced by '_'.
func FileName(snap lobby.Snapshot) string {
	name := fmt.Sprintf("%s-%s-%d", snap.Code, unsafeName.ReplaceAllString(snap.Name, "_"), snap.Taken.UnixMilli())
	if snap.Suffix != "" {
		name += "-" + snap.Suffix
	}
	return name + ".json"
}

func (f *FileSnapshotter) Save(_ context.Context, snap lobby.Snapshot) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, snap.Document, "", "  "); err != nil {
		return fmt.Errorf("format snapshot: %w", err)
	}
	path := filepath.Join(f.Dir, FileName(snap))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
