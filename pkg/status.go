package pkg

type PaymentStatus string

const (
	PaymentStatusInitiated  PaymentStatus = "initiated"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// IsTerminal reports whether no further step can change the status.
// Anything the gateway returns other than initiated counts as terminal.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusInitiated
}

// FailureReason says where a failed result came from.
type FailureReason string

const (
	FailureNone FailureReason = ""
	// submission call itself failed (network, auth, decoding)
	FailureSubmission FailureReason = "submission"
	// gateway answered but the payment did not go through
	FailureGateway FailureReason = "gateway"
	// 3ds surface reported something other than paid/authorized
	FailureChallenge FailureReason = "challenge"
	// 3ds surface went away without reporting anything
	FailureDismissed FailureReason = "dismissed"
)

// SignalStatus maps a raw 3ds signal tag to a terminal status.
// Only the literal tags paid and authorized succeed.
func SignalStatus(tag string) PaymentStatus {
	switch PaymentStatus(tag) {
	case PaymentStatusPaid:
		return PaymentStatusPaid
	case PaymentStatusAuthorized:
		return PaymentStatusAuthorized
	default:
		return PaymentStatusFailed
	}
}
