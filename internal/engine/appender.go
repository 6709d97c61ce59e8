package engine

import (
	"bufio"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/iamNilotpal/ember/pkg/errors"
)

// appender wraps the active segment file with a user-space write buffer and
// tracks the byte offset of the next append. The contract is that
// immediately after Flush, pos equals the file's on-disk length; the engine
// records [start, end) ranges for the index by sampling pos around each
// encoded record.
//
// The appender does not fsync unless sync writes are configured; durability
// on power loss is not promised by default.
type appender struct {
	file *os.File
	buf  *bufio.Writer
	pos  uint64
}

// newAppender opens the file in create/read/append mode, seeks to the end
// and records that offset as the starting position.
func newAppender(path string) (*appender, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.NewStorageError(
			err, errors.ErrorCodeIO, "failed to open segment for appending",
		).WithPath(path)
	}

	// Position at the end even with O_APPEND so the starting offset is known.
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		closeErr := file.Close()
		return nil, errors.NewStorageError(
			multierr.Append(err, closeErr), errors.ErrorCodeIO, "failed to seek to end of segment",
		).WithPath(path)
	}

	return &appender{
		file: file,
		buf:  bufio.NewWriter(file),
		pos:  uint64(offset),
	}, nil
}

// Write buffers p and advances the position by the number of bytes accepted.
func (a *appender) Write(p []byte) (int, error) {
	n, err := a.buf.Write(p)
	a.pos += uint64(n)
	if err != nil {
		return n, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to append to segment")
	}
	return n, nil
}

// Flush drains the buffer to the OS.
func (a *appender) Flush() error {
	if err := a.buf.Flush(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to flush segment buffer")
	}
	return nil
}

// Sync flushes the buffer and forces file contents to stable storage.
func (a *appender) Sync() error {
	if err := a.Flush(); err != nil {
		return err
	}
	if err := a.file.Sync(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to sync segment")
	}
	return nil
}

// Pos returns the offset of the next append.
func (a *appender) Pos() uint64 {
	return a.pos
}

// Close flushes the buffer and closes the underlying file.
func (a *appender) Close() error {
	return multierr.Append(a.Flush(), a.file.Close())
}
