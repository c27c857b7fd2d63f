package analyzer

import "fmt"

// AnalysisError marks a job-time analysis failure: upstream transport or
// rate-limit trouble, malformed model output, or a contract violation in the
// parsed result. The worker retries analysis once before recording a failed
// status event.
type AnalysisError struct {
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func newAnalysisError(message string, err error) *AnalysisError {
	return &AnalysisError{Message: message, Err: err}
}
