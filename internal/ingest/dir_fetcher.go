package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirFetcher reads extracts from a local directory. Used by the operator CLI
// and for development without object storage.
type DirFetcher struct {
	Root string
}

// Fetch reads path relative to Root. Paths are rooted before joining so they
// cannot climb out of Root.
func (d DirFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := filepath.Join(d.Root, filepath.Clean("/"+path))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read extract %s: %w", path, err)
	}
	return data, nil
}
