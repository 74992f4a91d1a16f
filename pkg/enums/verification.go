package enums

import "fmt"

// VerificationAction is the decision recorded on a payment verification row.
type VerificationAction string

const (
	VerificationActionApprove VerificationAction = "approve"
	VerificationActionReject  VerificationAction = "reject"
)

// IsValid reports whether the value is a known VerificationAction.
func (v VerificationAction) IsValid() bool {
	return v == VerificationActionApprove || v == VerificationActionReject
}

// ParseVerificationAction converts raw input into a VerificationAction.
func ParseVerificationAction(value string) (VerificationAction, error) {
	switch VerificationAction(value) {
	case VerificationActionApprove:
		return VerificationActionApprove, nil
	case VerificationActionReject:
		return VerificationActionReject, nil
	}
	return "", fmt.Errorf("invalid verification action %q", value)
}

// VerificationActor distinguishes manual admin verifications from automated
// gateway ones, so gateway events are never attributed to a human.
type VerificationActor string

const (
	VerificationActorAdmin  VerificationActor = "admin"
	VerificationActorSystem VerificationActor = "system"
)

// IsValid reports whether the value is a known VerificationActor.
func (v VerificationActor) IsValid() bool {
	return v == VerificationActorAdmin || v == VerificationActorSystem
}
