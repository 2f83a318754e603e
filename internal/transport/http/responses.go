package http

import (
	"time"

	"veristamp/internal/verification/models"
)

// verificationResponse is the external shape of a verification record.
type verificationResponse struct {
	ID                 string                    `json:"id"`
	Prompt             string                    `json:"prompt"`
	Output             string                    `json:"output"`
	Model              string                    `json:"model"`
	OutputHash         string                    `json:"output_hash"`
	RequesterAddress   string                    `json:"requester_address"`
	Status             string                    `json:"status"`
	AttestationID      string                    `json:"attestation_id,omitempty"`
	AttestationRoot    string                    `json:"attestation_root,omitempty"`
	Certificate        *certificateResponse      `json:"certificate,omitempty"`
	MintStatus         string                    `json:"mint_status"`
	CreatedAt          time.Time                 `json:"created_at"`
	ResolvedAt         *time.Time                `json:"resolved_at,omitempty"`
	Challenges         []challengeResponse       `json:"challenges,omitempty"`
	Rounds             []models.AttestationRound `json:"rounds,omitempty"`
}

type certificateResponse struct {
	TokenID     string    `json:"token_id"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	MintedAt    time.Time `json:"minted_at"`
}

type challengeResponse struct {
	ID                string    `json:"id"`
	ChallengerAddress string    `json:"challenger_address"`
	Reason            string    `json:"reason"`
	Evidence          string    `json:"evidence,omitempty"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
}

func toVerificationResponse(r *models.VerificationRecord) verificationResponse {
	resp := verificationResponse{
		ID:               r.ID.String(),
		Prompt:           r.Prompt,
		Output:           r.Output,
		Model:            r.Model,
		OutputHash:       r.OutputHash,
		RequesterAddress: r.RequesterAddress,
		Status:           string(r.Status),
		AttestationID:    r.AttestationID,
		AttestationRoot:  r.AttestationRoot,
		MintStatus:       string(r.MintStatus),
		CreatedAt:        r.CreatedAt,
		ResolvedAt:       r.ResolvedAt,
		Rounds:           r.Rounds,
	}
	if r.Certificate != nil {
		resp.Certificate = &certificateResponse{
			TokenID:     r.Certificate.TokenID,
			TxHash:      r.Certificate.TxHash,
			BlockNumber: r.Certificate.BlockNumber,
			MintedAt:    r.Certificate.MintedAt,
		}
	}
	for _, ch := range r.Challenges {
		resp.Challenges = append(resp.Challenges, toChallengeResponse(ch))
	}
	return resp
}

func toChallengeResponse(ch models.ChallengeRecord) challengeResponse {
	return challengeResponse{
		ID:                ch.ID.String(),
		ChallengerAddress: ch.ChallengerAddress,
		Reason:            ch.Reason,
		Evidence:          ch.Evidence,
		Status:            string(ch.Status),
		Timestamp:         ch.Timestamp,
	}
}
