package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Writer durably records a batch of URLs. Writing the same URL twice stores it twice.
type Writer interface {
	Write(urls []string) error
}

// Sink is a Writer that owns a named storage location.
type Sink interface {
	Writer
	Location() string
	Close() error
}

// StorageName derives the table/file stem for a run from clock, e.g. img_1700000000.
// Two runs started within the same second get the same name.
func StorageName(clock func() time.Time) string {
	if clock == nil {
		clock = time.Now
	}
	return fmt.Sprintf("img_%d", clock().Unix())
}

// FileWriter appends newline-delimited URLs to a text file.
type FileWriter struct {
	path string
	mu   sync.Mutex
}

// NewFileWriter prepares <dir>/<name>.txt. The file is created on the first write.
func NewFileWriter(dir, name string) (*FileWriter, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("file name cannot be empty")
	}
	path := filepath.Join(dir, name+".txt")
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &FileWriter{path: path}, nil
}

// Write appends urls, opening and closing the file for each call.
func (fw *FileWriter) Write(urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	_, err := fw.appendBatch(urls)
	return err
}

// writeUndoable appends urls and returns a func that truncates the file back
// to its previous length.
func (fw *FileWriter) writeUndoable(urls []string) (func() error, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	size, err := fw.appendBatch(urls)
	if err != nil {
		return nil, err
	}
	return func() error {
		fw.mu.Lock()
		defer fw.mu.Unlock()
		if err := os.Truncate(fw.path, size); err != nil {
			return fmt.Errorf("undo append: %w", err)
		}
		return nil
	}, nil
}

// appendBatch writes urls at the end of the file and returns the size the file
// had before the write.
func (fw *FileWriter) appendBatch(urls []string) (int64, error) {
	f, err := os.OpenFile(fw.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open output file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("stat output file: %w", err)
	}
	size := info.Size()

	if _, err := f.WriteString(strings.Join(urls, "\n") + "\n"); err != nil {
		f.Close()
		// A short write leaves a partial batch behind.
		if truncErr := os.Truncate(fw.path, size); truncErr != nil {
			return size, fmt.Errorf("append urls: %w (truncate: %v)", err, truncErr)
		}
		return size, fmt.Errorf("append urls: %w", err)
	}
	if err := f.Close(); err != nil {
		return size, fmt.Errorf("close output file: %w", err)
	}
	return size, nil
}

// Location returns the output file path.
func (fw *FileWriter) Location() string {
	return fw.path
}

// Close is a no-op; the file is never held open between writes.
func (fw *FileWriter) Close() error {
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
