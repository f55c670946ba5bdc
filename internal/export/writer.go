package export

import (
	"fmt"
	"os"
)

// DocumentWriter writes a finalized document to a file.
type DocumentWriter struct {
	file   *os.File
	closed bool
}

// NewDocumentWriter creates a writer for the given path.
func NewDocumentWriter(path string) (*DocumentWriter, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model export
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &DocumentWriter{
		file:   file,
		closed: false,
	}, nil
}

// WriteDocument writes the document as JSON.
func (w *DocumentWriter) WriteDocument(doc *Document) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	if _, err := doc.WriteTo(w.file); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file. Safe to call twice.
func (w *DocumentWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
