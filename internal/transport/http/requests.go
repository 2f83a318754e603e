package http

import (
	"veristamp/internal/verification/models"
)

// submitRequest is the submission payload for a new verification.
type submitRequest struct {
	Prompt             string `json:"prompt"`
	Output             string `json:"output"`
	Model              string `json:"model"`
	OutputHash         string `json:"output_hash"`
	RequesterAddress   string `json:"requester_address"`
	RequesterSignature string `json:"requester_signature"`
}

func (r submitRequest) toContent() models.SubmitContent {
	return models.SubmitContent{
		Prompt:             r.Prompt,
		Output:             r.Output,
		Model:              r.Model,
		OutputHash:         r.OutputHash,
		RequesterAddress:   r.RequesterAddress,
		RequesterSignature: r.RequesterSignature,
	}
}

// resolveRequest is the oracle gateway's fulfillment callback payload.
type resolveRequest struct {
	AttestationID string             `json:"attestation_id"`
	Root          string             `json:"root"`
	Proof         []models.ProofStep `json:"proof"`
	Verified      bool               `json:"verified"`
}

func (r resolveRequest) toFulfillment() models.Fulfillment {
	return models.Fulfillment{
		AttestationID: r.AttestationID,
		Root:          r.Root,
		Proof:         r.Proof,
		Verified:      r.Verified,
	}
}

// challengeRequest files a dispute against a verified record.
type challengeRequest struct {
	ChallengerAddress string `json:"challenger_address"`
	Reason            string `json:"reason"`
	Evidence          string `json:"evidence"`
}
