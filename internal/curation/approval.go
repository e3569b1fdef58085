package curation

import "strings"

// ApprovalStatus is a report's position in the approval workflow. A report
// starts awaiting approval and transitions exactly once into a terminal
// state; a corrected report after rejection is a new report for a new run,
// never a mutation of the rejected one.
type ApprovalStatus string

const (
	AwaitingApproval ApprovalStatus = "awaiting_approval"
	Approved         ApprovalStatus = "approved"
	Rejected         ApprovalStatus = "rejected"
)

// Terminal reports whether s admits no further transitions.
func (s ApprovalStatus) Terminal() bool {
	return s == Approved || s == Rejected
}

// Approve validates the awaiting_approval -> approved transition.
func Approve(current ApprovalStatus) (ApprovalStatus, error) {
	if current != AwaitingApproval {
		return current, &InvalidTransitionError{From: current, To: Approved}
	}
	return Approved, nil
}

// Reject validates the awaiting_approval -> rejected transition. The reason
// is required; rejecting without one is a validation failure, not a
// transition failure.
func Reject(current ApprovalStatus, reason string) (ApprovalStatus, error) {
	if strings.TrimSpace(reason) == "" {
		return current, &ValidationError{Field: "reason", Reason: "rejection reason must not be empty"}
	}
	if current != AwaitingApproval {
		return current, &InvalidTransitionError{From: current, To: Rejected}
	}
	return Rejected, nil
}
