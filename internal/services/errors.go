package services

// UpstreamError means every webhook candidate failed. It wraps the last
// candidate error for the logs; callers only ever see a generic message.
type UpstreamError struct{ Err error }

func (e *UpstreamError) Error() string { return "All AI services are currently unavailable" }

func (e *UpstreamError) Unwrap() error { return e.Err }
