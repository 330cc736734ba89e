package tempfiles

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Create opens a new temp file under dir, creating dir if it does not exist.
// Picture uploads and downloads are spooled through these files so request
// bodies never have to fit in memory.
func Create(dir string, pattern string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir %q: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// NewDeleteOnClose wraps an open spool file so closing the reader also
// removes the file from disk. Close is safe to call more than once.
func NewDeleteOnClose(file *os.File) io.ReadCloser {
	return &spoolReader{file: file, path: file.Name()}
}

type spoolReader struct {
	file *os.File
	path string
	once sync.Once
}

func (r *spoolReader) Read(p []byte) (int, error) {
	return r.file.Read(p)
}

func (r *spoolReader) Close() error {
	var closeErr, removeErr error
	r.once.Do(func() {
		closeErr = r.file.Close()
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			removeErr = err
		}
	})
	if closeErr != nil {
		return closeErr
	}
	return removeErr
}
