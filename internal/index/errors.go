package index

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by Get when the data file has no such key
var ErrKeyNotFound = errors.New("key not found")

var errNoDataFile = errors.New("data file does not exist")

// FileAccessError wraps an I/O failure on an index or data file
type FileAccessError struct {
	Op   string // read or write
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed index or data file
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsFileAccess reports whether err is a FileAccessError
func IsFileAccess(err error) bool {
	var fe *FileAccessError
	return errors.As(err, &fe)
}

// IsDecode reports whether err is a DecodeError
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
