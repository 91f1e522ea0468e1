// Package file snapshots the in-memory archive to a JSON file and restores it on startup.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/ports"
)

// Persister writes record snapshots atomically.
type Persister struct {
	path string
}

func New(path string) *Persister {
	return &Persister{path: path}
}

// Path returns the snapshot location.
func (p *Persister) Path() string { return p.path }

// Save replaces the snapshot with recs.
func (p *Persister) Save(_ context.Context, recs []domain.Record) error {
	if recs == nil {
		recs = []domain.Record{}
	}
	return writeJSONAtomic(p.path, recs)
}

// Restore adds every saved record to archive. A missing file is not an error.
func (p *Persister) Restore(ctx context.Context, archive ports.Archive) (n int, retErr error) {
	f, err := os.Open(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close: %w", cerr)
		}
	}()

	var recs []domain.Record
	if err := json.NewDecoder(f).Decode(&recs); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	for _, rec := range recs {
		if err := archive.Add(ctx, rec); err != nil {
			return n, fmt.Errorf("restore record %d: %w", rec.DateTime, err)
		}
		n++
	}
	return n, nil
}

func writeJSONAtomic(path string, recs []domain.Record) (retErr error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	closed := false
	defer func() {
		if !closed {
			if cerr := tmp.Close(); cerr != nil && retErr == nil {
				retErr = fmt.Errorf("close tmp: %w", cerr)
			}
		}
		if cleanup {
			if err := os.Remove(tmpName); err != nil && retErr == nil {
				retErr = fmt.Errorf("remove tmp: %w", err)
			}
		}
	}()
	if err := json.NewEncoder(tmp).Encode(recs); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}
	closed = true
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	cleanup = false
	return nil
}
