package models

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	dErrors "veristamp/pkg/domain-errors"
)

// VerificationID identifies a verification record. Assigned at creation,
// immutable, and preserved across retry rounds.
type VerificationID uuid.UUID

func NewVerificationID() VerificationID {
	return VerificationID(uuid.New())
}

func ParseVerificationID(s string) (VerificationID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return VerificationID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid verification id")
	}
	return VerificationID(parsed), nil
}

func (v VerificationID) String() string {
	return uuid.UUID(v).String()
}

func (v VerificationID) IsNil() bool {
	return uuid.UUID(v) == uuid.Nil
}

// ChallengeID identifies a single challenge record.
type ChallengeID uuid.UUID

func NewChallengeID() ChallengeID {
	return ChallengeID(uuid.New())
}

func (c ChallengeID) String() string {
	return uuid.UUID(c).String()
}

// ProofStep is one sibling hash on the merkle path from the attestation leaf
// to the published root.
type ProofStep struct {
	Side        string `json:"side"` // "L" or "R"
	SiblingHash string `json:"sibling_hash"`
}

// Fulfillment is the oracle network's answer for one attestation round. It
// arrives via the HTTP callback, the chain event listener, or both.
type Fulfillment struct {
	AttestationID string      `json:"attestation_id"`
	Root          string      `json:"root"`
	Proof         []ProofStep `json:"proof"`
	Verified      bool        `json:"verified"`
}

// AttestationRound archives the resolution of a completed oracle round.
// Rounds are append-only; retry archives the current round before clearing it.
type AttestationRound struct {
	AttestationID string      `json:"attestation_id"`
	Root          string      `json:"root"`
	Proof         []ProofStep `json:"proof"`
	Verified      bool        `json:"verified"`
	ResolvedAt    time.Time   `json:"resolved_at"`
}

// Certificate records the minted token for a successful verification.
type Certificate struct {
	TokenID     string    `json:"token_id"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	MintedAt    time.Time `json:"minted_at"`
}

// ChallengeRecord is a third-party dispute against a verified record. The
// owning VerificationRecord holds the collection; VerificationID is a back
// reference, not ownership.
type ChallengeRecord struct {
	ID                ChallengeID     `json:"id"`
	VerificationID    VerificationID  `json:"verification_id"`
	ChallengerAddress string          `json:"challenger_address"`
	Reason            string          `json:"reason"`
	Evidence          string          `json:"evidence"`
	Status            ChallengeStatus `json:"status"`
	Timestamp         time.Time       `json:"timestamp"`
}

// SubmitContent is the content tuple under verification plus its attribution.
type SubmitContent struct {
	Prompt             string `json:"prompt"`
	Output             string `json:"output"`
	Model              string `json:"model"`
	OutputHash         string `json:"output_hash"`
	RequesterAddress   string `json:"requester_address"`
	RequesterSignature string `json:"requester_signature"`
}

// VerificationRecord is the aggregate root of the attestation lifecycle.
//
// Invariants:
//   - Content fields (Prompt, Output, Model, OutputHash, requester attribution)
//     are immutable after construction; retry never touches them.
//   - AttestationID is set iff a resolution has happened at least once
//     (status verified, rejected, or challenged).
//   - Certificate exists only for records that have been verified; it is
//     populated asynchronously and independently of Status.
//   - Challenges append only while Status == verified; appending flips the
//     record to challenged.
//   - Rounds is append-only archive of prior oracle rounds.
type VerificationRecord struct {
	ID                 VerificationID     `json:"id"`
	Prompt             string             `json:"prompt"`
	Output             string             `json:"output"`
	Model              string             `json:"model"`
	OutputHash         string             `json:"output_hash"`
	RequesterAddress   string             `json:"requester_address"`
	RequesterSignature string             `json:"requester_signature"`
	Status             VerificationStatus `json:"status"`
	AttestationID      string             `json:"attestation_id,omitempty"`
	AttestationRoot    string             `json:"attestation_root,omitempty"`
	AttestationProof   []ProofStep        `json:"attestation_proof,omitempty"`
	Certificate        *Certificate       `json:"certificate,omitempty"`
	MintStatus         MintStatus         `json:"mint_status"`
	MintStartedAt      *time.Time         `json:"mint_started_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	ResolvedAt         *time.Time         `json:"resolved_at,omitempty"`
	Challenges         []ChallengeRecord  `json:"challenges,omitempty"`
	Rounds             []AttestationRound `json:"rounds,omitempty"`
}

// outputHashLen is the hex length of a SHA-256 digest.
const outputHashLen = 64

// IsWellFormedHash reports whether s is a fixed-length hex digest.
func IsWellFormedHash(s string) bool {
	if len(s) != outputHashLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// NewVerificationRecord constructs a pending record from submitted content.
func NewVerificationRecord(id VerificationID, content SubmitContent, now time.Time) (*VerificationRecord, error) {
	if content.Prompt == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "prompt cannot be empty")
	}
	if content.Output == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "output cannot be empty")
	}
	if content.Model == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "model cannot be empty")
	}
	if content.RequesterAddress == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "requester address cannot be empty")
	}
	if !IsWellFormedHash(content.OutputHash) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "output hash must be a 64-character hex digest")
	}
	return &VerificationRecord{
		ID:                 id,
		Prompt:             content.Prompt,
		Output:             content.Output,
		Model:              content.Model,
		OutputHash:         content.OutputHash,
		RequesterAddress:   content.RequesterAddress,
		RequesterSignature: content.RequesterSignature,
		Status:             StatusPending,
		MintStatus:         MintNone,
		CreatedAt:          now,
	}, nil
}

// CanResolve checks that the record is still awaiting this round's fulfillment.
// Use with ApplyResolution in Execute callbacks.
func (r *VerificationRecord) CanResolve() error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "verification is already resolved")
	}
	return nil
}

// ApplyResolution commits the fulfillment outcome. Call CanResolve first; the
// store's Execute holds the lock across both so concurrent deliveries cannot
// both commit.
func (r *VerificationRecord) ApplyResolution(f Fulfillment, now time.Time) {
	if f.Verified {
		r.Status = StatusVerified
	} else {
		r.Status = StatusRejected
	}
	r.AttestationID = f.AttestationID
	r.AttestationRoot = f.Root
	r.AttestationProof = append([]ProofStep(nil), f.Proof...)
	resolved := now
	r.ResolvedAt = &resolved
}

// CanChallenge checks that a dispute may be filed against this record.
func (r *VerificationRecord) CanChallenge() error {
	if !r.Status.CanTransitionTo(StatusChallenged) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only verified records can be challenged")
	}
	return nil
}

// ApplyChallenge appends the challenge and flips the record to challenged.
func (r *VerificationRecord) ApplyChallenge(ch ChallengeRecord) {
	r.Challenges = append(r.Challenges, ch)
	r.Status = StatusChallenged
}

// CanRetry checks that the record is eligible for a fresh oracle round.
func (r *VerificationRecord) CanRetry() error {
	if !r.Status.CanTransitionTo(StatusPending) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only rejected records can be retried")
	}
	return nil
}

// ApplyRetry archives the finished round, clears attestation fields, and
// re-enters pending. Content fields and ID are untouched.
func (r *VerificationRecord) ApplyRetry() {
	round := AttestationRound{
		AttestationID: r.AttestationID,
		Root:          r.AttestationRoot,
		Proof:         r.AttestationProof,
		Verified:      r.Status == StatusVerified,
	}
	if r.ResolvedAt != nil {
		round.ResolvedAt = *r.ResolvedAt
	}
	r.Rounds = append(r.Rounds, round)

	r.Status = StatusPending
	r.AttestationID = ""
	r.AttestationRoot = ""
	r.AttestationProof = nil
	r.ResolvedAt = nil
}

// mintInFlightExpiry matches the mint lock TTL: an in-flight marker older
// than this belongs to an attempt that crashed before recording its outcome
// and must not block a retry.
const mintInFlightExpiry = 2 * time.Minute

// CanBeginMint checks the at-most-once mint guard: the record must be
// verified, carry no certificate, and have no live mint in flight.
func (r *VerificationRecord) CanBeginMint(now time.Time) error {
	if r.Status != StatusVerified {
		return dErrors.New(dErrors.CodeInvariantViolation, "only verified records are eligible for minting")
	}
	if r.Certificate != nil || r.MintStatus == MintMinted {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate already minted")
	}
	if r.MintStatus == MintInFlight && r.MintStartedAt != nil && now.Sub(*r.MintStartedAt) < mintInFlightExpiry {
		return dErrors.New(dErrors.CodeInvariantViolation, "mint already in flight")
	}
	return nil
}

// ApplyBeginMint marks a mint attempt as in flight.
func (r *VerificationRecord) ApplyBeginMint(now time.Time) {
	r.MintStatus = MintInFlight
	started := now
	r.MintStartedAt = &started
}

// ApplyMintSuccess attaches the certificate. Status is never touched here.
func (r *VerificationRecord) ApplyMintSuccess(cert Certificate) {
	c := cert
	r.Certificate = &c
	r.MintStatus = MintMinted
	r.MintStartedAt = nil
}

// ApplyMintFailure records the failure without affecting verification status.
// A later mint attempt may run again.
func (r *VerificationRecord) ApplyMintFailure() {
	r.MintStatus = MintFailed
	r.MintStartedAt = nil
}

// Clone returns a deep copy so store callers never share mutable state.
func (r *VerificationRecord) Clone() *VerificationRecord {
	cp := *r
	cp.AttestationProof = append([]ProofStep(nil), r.AttestationProof...)
	cp.Challenges = append([]ChallengeRecord(nil), r.Challenges...)
	cp.Rounds = make([]AttestationRound, len(r.Rounds))
	for i, round := range r.Rounds {
		cp.Rounds[i] = round
		cp.Rounds[i].Proof = append([]ProofStep(nil), round.Proof...)
	}
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		cp.ResolvedAt = &t
	}
	if r.MintStartedAt != nil {
		t := *r.MintStartedAt
		cp.MintStartedAt = &t
	}
	if r.Certificate != nil {
		c := *r.Certificate
		cp.Certificate = &c
	}
	return &cp
}
