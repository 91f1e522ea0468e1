// Package file appends ingest audit events to a local JSON-lines file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/vshulcz/wxrelay/internal/services/audit"
)

// Writer keeps the audit file open between events. It is safe for concurrent use.
type Writer struct {
	f    *os.File
	path string
	mu   sync.Mutex
}

var _ audit.Observer = (*Writer)(nil)

// New creates a Writer for path. The file is opened on the first event.
func New(path string) *Writer {
	return &Writer{path: path}
}

// Notify appends evt as one JSON line.
func (w *Writer) Notify(_ context.Context, evt audit.Event) error {
	if w == nil || w.path == "" {
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		w.f = f
	}
	if _, err := w.f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

// Close releases the file. A later Notify reopens it.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	if err != nil {
		return fmt.Errorf("close audit file: %w", err)
	}
	return nil
}
