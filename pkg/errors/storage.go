package errors

import "fmt"

// StorageError is a specialized error type for storage-related operations.
// It embeds baseError to inherit the standard error functionality, then adds
// storage-specific fields that pinpoint exactly where a problem occurred:
// which segment, which byte offset, which file.
type StorageError struct {
	*baseError
	segmentID uint32 // Which segment was being accessed when the error occurred.
	offset    uint64 // Byte offset within the segment where the problem happened.
	path      string // Path of the file that caused the issue.
}

// NewStorageError creates a new storage-specific error.
func NewStorageError(err error, code ErrorCode, msg string) *StorageError {
	return &StorageError{baseError: NewBaseError(err, code, msg)}
}

// NewKeyNotFoundError reports a remove of a key that is absent from the
// index. The message deliberately contains "not found" because the network
// frontend surfaces it verbatim inside an error response.
func NewKeyNotFoundError(key string) *StorageError {
	return &StorageError{
		baseError: NewBaseError(nil, ErrorCodeKeyNotFound, fmt.Sprintf("key %q not found", key)),
	}
}

// NewSerdeError reports an encode or decode failure of a command record or
// protocol message.
func NewSerdeError(err error, msg string) *StorageError {
	return &StorageError{baseError: NewBaseError(err, ErrorCodeSerde, msg)}
}

// NewCorruptLogError reports a segment whose contents cannot be parsed, or a
// lookup that retrieved bytes which do not decode to a set record.
func NewCorruptLogError(err error, msg string) *StorageError {
	return &StorageError{baseError: NewBaseError(err, ErrorCodeCorruptLog, msg)}
}

// WithSegmentID sets which segment was involved in the error.
func (se *StorageError) WithSegmentID(id uint32) *StorageError {
	se.segmentID = id
	return se
}

// WithOffset records the byte position where the error occurred.
func (se *StorageError) WithOffset(offset uint64) *StorageError {
	se.offset = offset
	return se
}

// WithPath captures which file was being processed when the error occurred.
func (se *StorageError) WithPath(path string) *StorageError {
	se.path = path
	return se
}

// WithDetail adds contextual information, returning the StorageError so the
// builder chain keeps its concrete type.
func (se *StorageError) WithDetail(key string, value any) *StorageError {
	se.baseError.WithDetail(key, value)
	return se
}

// SegmentID returns the segment identifier where the error occurred.
func (se *StorageError) SegmentID() uint32 {
	return se.segmentID
}

// Offset returns the byte offset within the segment where the error happened.
// Combined with SegmentID, this gives the exact location of the problem.
func (se *StorageError) Offset() uint64 {
	return se.offset
}

// Path returns the path of the file that was being processed.
func (se *StorageError) Path() string {
	return se.path
}
