// Package domain holds the pure lead marketplace rules: lifecycle states,
// capacity limits, and the contact disclosure policy. No I/O lives here.
package domain

// Status is the closed set of lead lifecycle states.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSold     Status = "sold"
)

// transitions lists the allowed lifecycle moves. Approved→approved covers
// price/capacity re-edits before sell-out.
var transitions = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusRejected: true},
	StatusApproved: {StatusApproved: true, StatusSold: true},
	StatusRejected: {},
	StatusSold:     {},
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSold:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s Status) CanTransition(next Status) bool {
	return transitions[s][next]
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// MaxSellersChoices is the enumerated set of seller capacities an
// administrator may assign to a lead.
var MaxSellersChoices = []int{1, 3, 5, 10}

// ValidMaxSellers reports whether n is an allowed seller capacity.
func ValidMaxSellers(n int) bool {
	for _, choice := range MaxSellersChoices {
		if n == choice {
			return true
		}
	}
	return false
}
