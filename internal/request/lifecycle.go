// Package request owns the blood request lifecycle: matching a new request
// against the donor pool, processing donor responses, and driving the status
// state machine.
package request

import (
	"lifeline/internal/domain"
	dErrors "lifeline/pkg/domain-errors"
)

// allowedTransitions is the lifecycle state machine:
//
//	pending -> matched -> in-delivery -> fulfilled
//
// with cancelled reachable from any non-terminal state. Transitions are
// monotonic; nothing moves a request backward.
var allowedTransitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.RequestPending:    {domain.RequestMatched, domain.RequestCancelled},
	domain.RequestMatched:    {domain.RequestInDelivery, domain.RequestCancelled},
	domain.RequestInDelivery: {domain.RequestFulfilled, domain.RequestCancelled},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to domain.RequestStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the request to the target status, or fails with an
// invalid-transition error leaving the request unchanged.
func Transition(req *domain.BloodRequest, to domain.RequestStatus) error {
	if !CanTransition(req.Status, to) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot transition request from %s to %s", req.Status, to)
	}
	req.Status = to
	return nil
}
