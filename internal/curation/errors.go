package curation

import "fmt"

// ValidationError reports input that was rejected before any mutation
// (empty rejection reason, unknown category reference, malformed fields).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports a curation operation refused because the
// article's effective status does not permit it. State is unchanged.
type InvalidStateError struct {
	Op        string
	ArticleID int64
	Reason    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s article %d: %s", e.Op, e.ArticleID, e.Reason)
}

// InvalidTransitionError reports an approve/reject call against a report
// that has already reached a terminal approval status.
type InvalidTransitionError struct {
	From ApprovalStatus
	To   ApprovalStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition report from %s to %s", e.From, e.To)
}

// UpstreamError wraps a failure from an external collaborator (the
// regeneration gateway, persistence). The stored state is untouched.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
