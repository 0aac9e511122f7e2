package domain

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusSold, false},
		{StatusApproved, StatusApproved, true},
		{StatusApproved, StatusSold, true},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusPending, false},
		{StatusRejected, StatusApproved, false},
		{StatusSold, StatusApproved, false},
		{StatusSold, StatusSold, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if StatusApproved.Terminal() {
		t.Error("approved must not be terminal")
	}
	if !StatusRejected.Terminal() {
		t.Error("rejected must be terminal")
	}
	if !StatusSold.Terminal() {
		t.Error("sold must be terminal")
	}
}

func TestValidMaxSellers(t *testing.T) {
	for _, n := range []int{1, 3, 5, 10} {
		if !ValidMaxSellers(n) {
			t.Errorf("ValidMaxSellers(%d) = false, want true", n)
		}
	}
	for _, n := range []int{0, -1, 2, 4, 6, 11, 100} {
		if ValidMaxSellers(n) {
			t.Errorf("ValidMaxSellers(%d) = true, want false", n)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusApproved, StatusRejected, StatusSold} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Error("unknown status must not be valid")
	}
}
