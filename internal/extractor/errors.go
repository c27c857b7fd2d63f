package extractor

import "fmt"

// ExtractionError marks a job-time extraction failure: missing or unreadable
// source, unsupported type, or no usable text. The worker records it as a
// failed status event; extraction is never retried.
type ExtractionError struct {
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func newExtractionError(message string, err error) *ExtractionError {
	return &ExtractionError{Message: message, Err: err}
}
