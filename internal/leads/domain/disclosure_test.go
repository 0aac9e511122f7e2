package domain

import "testing"

func strPtr(s string) *string { return &s }

func TestDiscloseWithConsent(t *testing.T) {
	d := Disclose(true, strPtr("+15551234567"), strPtr("buyer@example.com"))

	if d.Phone != "+15551234567" {
		t.Errorf("expected phone disclosed, got %q", d.Phone)
	}
	if d.Email != "buyer@example.com" {
		t.Errorf("expected email disclosed, got %q", d.Email)
	}
	if d.IsEmpty() {
		t.Error("disclosure with consent must not be empty")
	}
}

func TestDiscloseWithoutConsent(t *testing.T) {
	// Contact fields must stay hidden even when stored.
	d := Disclose(false, strPtr("+15551234567"), strPtr("buyer@example.com"))

	if !d.IsEmpty() {
		t.Errorf("expected empty disclosure, got %+v", d)
	}
}

func TestDiscloseConsentWithMissingFields(t *testing.T) {
	d := Disclose(true, nil, strPtr("buyer@example.com"))
	if d.Phone != "" {
		t.Errorf("expected no phone, got %q", d.Phone)
	}
	if d.Email != "buyer@example.com" {
		t.Errorf("expected email, got %q", d.Email)
	}

	d = Disclose(true, nil, nil)
	if !d.IsEmpty() {
		t.Errorf("expected empty disclosure, got %+v", d)
	}
}

func TestDiscloseDeterministic(t *testing.T) {
	phone, email := strPtr("+15550001111"), strPtr("a@b.c")
	first := Disclose(true, phone, email)
	second := Disclose(true, phone, email)
	if first != second {
		t.Errorf("disclosure not deterministic: %+v vs %+v", first, second)
	}
}
