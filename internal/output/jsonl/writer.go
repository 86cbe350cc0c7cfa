// Package jsonl is the file-backed insert fallback: each table maps to one
// JSON lines file under a base directory.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"eventengine/internal/logger"
)

// Writer appends row batches to per-table JSONL files.
type Writer struct {
	dir   string
	mu    sync.Mutex
	files map[string]*os.File
}

// NewWriter creates a JSONL writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	logger.Infof("JSONL writer initialized: %s", dir)
	return &Writer{dir: dir, files: make(map[string]*os.File)}, nil
}

// Insert appends one batch of rows to the table's file.
func (w *Writer) Insert(ctx context.Context, table string, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.file(table)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}
	return nil
}

func (w *Writer) file(table string) (*os.File, error) {
	if f, ok := w.files[table]; ok {
		return f, nil
	}
	path := filepath.Join(w.dir, table+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	w.files[table] = f
	return f, nil
}

// Close closes all open table files.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for _, f := range w.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.files = make(map[string]*os.File)
	return firstErr
}
