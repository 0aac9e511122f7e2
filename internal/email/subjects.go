package email

const (
	subjectLeadApproved    = "Your lead is live on the marketplace"
	subjectLeadRejected    = "Your lead was not approved"
	subjectLeadSold        = "Your lead is fully sold"
	subjectPaymentVerified = "Payment verified: lead details unlocked"
	subjectPaymentRejected = "Payment rejected for your lead purchase"
)
