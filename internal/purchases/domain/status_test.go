package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPendingVerification, StatusVerified, true},
		{StatusPendingVerification, StatusRejected, true},
		{StatusVerified, StatusRejected, false},
		{StatusVerified, StatusPendingVerification, false},
		{StatusRejected, StatusVerified, false},
		{StatusRejected, StatusPendingVerification, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestLive(t *testing.T) {
	if !StatusPendingVerification.Live() {
		t.Error("pending_verification should be live")
	}
	if !StatusVerified.Live() {
		t.Error("verified should be live")
	}
	if StatusRejected.Live() {
		t.Error("rejected should not be live")
	}
}

func TestValid(t *testing.T) {
	for _, s := range []Status{StatusPendingVerification, StatusVerified, StatusRejected} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("paid").Valid() {
		t.Error("unknown status should be invalid")
	}
}
