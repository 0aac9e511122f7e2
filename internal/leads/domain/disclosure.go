package domain

// Disclosure is the buyer contact information conditionally revealed to a
// seller after payment verification. The zero value discloses nothing.
type Disclosure struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// IsEmpty reports whether no contact fields are disclosed.
func (d Disclosure) IsEmpty() bool {
	return d.Phone == "" && d.Email == ""
}

// Disclose computes the seller-facing contact projection for a lead.
// Contact fields are revealed only when the buyer consented at submission
// time; otherwise the seller gets a chat channel and nothing else.
// Deterministic and side-effect free.
func Disclose(allowContact bool, phone, email *string) Disclosure {
	if !allowContact {
		return Disclosure{}
	}

	var d Disclosure
	if phone != nil {
		d.Phone = *phone
	}
	if email != nil {
		d.Email = *email
	}
	return d
}
