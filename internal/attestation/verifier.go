// Package attestation validates oracle fulfillments before they are trusted.
//
// Verification is a pure computation: the fulfillment's merkle proof must
// resolve from the attestation subject's leaf hash to the claimed root.
// Malformed input is a data-quality problem and yields false, never an error.
package attestation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"veristamp/internal/verification/models"
)

// Domain-separation prefixes keep leaf and node hashes from colliding.
const (
	leafPrefix = "veristamp:attestation:leaf:v1\x00"
	nodePrefix = "veristamp:attestation:node:v1\x00"
)

// Subject is the fact the oracle attests to: the content digest and the model
// that produced the output.
type Subject struct {
	OutputHash string
	Model      string
}

// SubjectLeafHash computes the merkle leaf for a subject.
// leaf = SHA256(prefix || outputHash || 0x00 || model)
func SubjectLeafHash(subject Subject) string {
	h := sha256.New()
	h.Write([]byte(leafPrefix))
	h.Write([]byte(subject.OutputHash))
	h.Write([]byte{0})
	h.Write([]byte(subject.Model))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether the fulfillment's proof resolves the subject's leaf
// to the claimed root. Empty proofs, unknown step sides, non-hex sibling
// hashes, and root mismatches all yield false.
func Verify(subject Subject, f models.Fulfillment) bool {
	if f.AttestationID == "" || f.Root == "" || len(f.Proof) == 0 {
		return false
	}

	current, err := hex.DecodeString(SubjectLeafHash(subject))
	if err != nil {
		return false
	}

	for _, step := range f.Proof {
		sibling, err := hex.DecodeString(step.SiblingHash)
		if err != nil || len(sibling) != sha256.Size {
			return false
		}

		h := sha256.New()
		h.Write([]byte(nodePrefix))
		switch step.Side {
		case "L":
			h.Write(sibling)
			h.Write(current)
		case "R":
			h.Write(current)
			h.Write(sibling)
		default:
			return false
		}
		current = h.Sum(nil)
	}

	return strings.EqualFold(hex.EncodeToString(current), f.Root)
}
