package reschedule

import "errors"

var (
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrNoPatient               = errors.New("appointment has no associated patient")
	ErrPendingRequestExists    = errors.New("a reschedule request is already pending")
	ErrRequestNotFound         = errors.New("reschedule request not found")
	ErrRequestAlreadyProcessed = errors.New("reschedule request already processed")
	ErrRequestExpired          = errors.New("reschedule request has expired")
	ErrProposalInFlight        = errors.New("another reschedule proposal for this appointment is in progress")
	ErrRefundFailed            = errors.New("refund could not be credited, appointment left refund_pending")

	// ErrNotPending is returned by the repository when a conditional status
	// update found no pending row.
	ErrNotPending = errors.New("reschedule request is no longer pending")
)
