package enums

// VerificationStatus tracks the receipt review of a manual payment.
type VerificationStatus string

const (
	VerificationNone      VerificationStatus = "NONE"
	VerificationSubmitted VerificationStatus = "SUBMITTED"
	VerificationRejected  VerificationStatus = "REJECTED"
	VerificationApproved  VerificationStatus = "APPROVED"
)

func (v VerificationStatus) String() string {
	return string(v)
}

// CanSubmit reports whether a (re)submission is accepted from this state.
func (v VerificationStatus) CanSubmit() bool {
	return v == VerificationNone || v == VerificationRejected
}
