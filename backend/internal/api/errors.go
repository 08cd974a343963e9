package api

import "fmt"

// FetchFailure reports a network failure or non-2xx response from the
// upstream API. It is surfaced as a view-level error state with a manual
// retry affordance; it never crashes the aggregation pipeline.
type FetchFailure struct {
	URL        string
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *FetchFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream fetch failed: %s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream fetch failed: %s: %v", e.URL, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// ValidationFailure reports a mutation rejected before submission. It is
// surfaced as an inline field-level message and is never sent to the network.
type ValidationFailure struct {
	Field   string
	Message string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
