// Package domain holds the purchase attempt state machine.
package domain

// Status is the lifecycle state of a purchase attempt.
type Status string

const (
	// StatusPendingVerification holds a capacity reservation while the
	// administrator checks the payment proof.
	StatusPendingVerification Status = "pending_verification"
	// StatusVerified is terminal: the slot is sold and contact disclosed.
	StatusVerified Status = "verified"
	// StatusRejected is terminal: the reservation is released.
	StatusRejected Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusPendingVerification: {StatusVerified, StatusRejected},
	StatusVerified:            {},
	StatusRejected:            {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the attempt may move from s to target.
func (s Status) CanTransition(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Live reports whether the attempt holds or has consumed a capacity slot.
// Rejected attempts hold nothing and do not block resubmission.
func (s Status) Live() bool {
	return s == StatusPendingVerification || s == StatusVerified
}
