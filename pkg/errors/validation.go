package errors

// ValidationError reports caller-side input that doesn't meet the system's
// requirements. It carries the offending field and the rule that rejected it.
type ValidationError struct {
	*baseError
	field string // Which input field failed validation.
	rule  string // The rule that rejected it, e.g. "required" or "non-empty".
}

// NewValidationError creates a new validation-specific error.
func NewValidationError(err error, code ErrorCode, msg string) *ValidationError {
	return &ValidationError{baseError: NewBaseError(err, code, msg)}
}

// WithField records which input field failed validation.
func (ve *ValidationError) WithField(field string) *ValidationError {
	ve.field = field
	return ve
}

// WithRule records the validation rule that rejected the input.
func (ve *ValidationError) WithRule(rule string) *ValidationError {
	ve.rule = rule
	return ve
}

// Field returns the name of the input field that failed validation.
func (ve *ValidationError) Field() string {
	return ve.field
}

// Rule returns the validation rule that rejected the input.
func (ve *ValidationError) Rule() string {
	return ve.rule
}
