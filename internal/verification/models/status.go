package models

// VerificationStatus is the lifecycle state of a verification record.
//
// Transitions:
//
//	pending  → verified | rejected   (oracle resolution, exactly once per round)
//	verified → challenged            (third-party dispute)
//	rejected → pending               (retry, opens a fresh oracle round)
//
// challenged is terminal for this core; dispute resolution beyond the
// challenge record's own status is an external concern.
type VerificationStatus string

const (
	StatusPending    VerificationStatus = "pending"
	StatusVerified   VerificationStatus = "verified"
	StatusChallenged VerificationStatus = "challenged"
	StatusRejected   VerificationStatus = "rejected"
)

var validTransitions = map[VerificationStatus][]VerificationStatus{
	StatusPending:    {StatusVerified, StatusRejected},
	StatusVerified:   {StatusChallenged},
	StatusRejected:   {StatusPending},
	StatusChallenged: {},
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s VerificationStatus) CanTransitionTo(next VerificationStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminalish reports whether a resolution has been recorded at least once.
func (s VerificationStatus) IsTerminalish() bool {
	return s == StatusVerified || s == StatusRejected || s == StatusChallenged
}

// MintStatus tracks the certificate mint side effect independently of the
// verification status. It never influences lifecycle transitions.
type MintStatus string

const (
	MintNone     MintStatus = "none"
	MintInFlight MintStatus = "in_flight"
	MintMinted   MintStatus = "minted"
	MintFailed   MintStatus = "failed"
)

// ChallengeStatus is the dispute-review state of a single challenge.
type ChallengeStatus string

const (
	ChallengePending     ChallengeStatus = "pending"
	ChallengeUnderReview ChallengeStatus = "under_review"
	ChallengeUpheld      ChallengeStatus = "upheld"
	ChallengeRejected    ChallengeStatus = "rejected"
)
