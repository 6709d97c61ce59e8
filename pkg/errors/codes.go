package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Error codes cover the failure categories the store can surface. Every
// decorated error carries exactly one of these codes so callers can branch
// on the category instead of parsing message strings.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary: segment file reads and writes, directory scans, and
	// socket operations on the network frontend.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeSerde represents a record or message that could not be encoded
	// or decoded. On the network path this code propagates as-is; when raised
	// while reading a segment file the engine promotes it to
	// ErrorCodeCorruptLog.
	ErrorCodeSerde ErrorCode = "SERDE_ERROR"

	// ErrorCodeCorruptLog indicates that a segment file contains a prefix that
	// cannot be parsed as a command record, or that a lookup retrieved bytes
	// that do not decode to a set record.
	ErrorCodeCorruptLog ErrorCode = "CORRUPT_LOG"

	// ErrorCodeKeyNotFound is returned by remove when the key is absent from
	// the index. Nothing is written to the log in that case.
	ErrorCodeKeyNotFound ErrorCode = "KEY_NOT_FOUND"

	// ErrorCodeInvalidInput represents caller-side errors where the provided
	// data doesn't meet the system's requirements, such as an empty key.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected failures that don't fit into
	// other categories. These indicate bugs rather than operational problems.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)
