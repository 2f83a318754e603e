// Package oracle integrates the external decentralized attestation network.
//
// Two delivery paths bring fulfillments back: the gateway's HTTP callback
// (handled by the transport layer) and the chain event listener in this
// package. Both call the same Resolve entry point; the store's conditional
// write decides which one wins.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"veristamp/internal/attestation"
	"veristamp/internal/verification/models"
)

// attestationRequest is the dispatch payload the oracle gateway accepts.
type attestationRequest struct {
	VerificationID string `json:"verification_id"`
	OutputHash     string `json:"output_hash"`
	Model          string `json:"model"`
	LeafHash       string `json:"leaf_hash"`
}

// HTTPClient dispatches attestation requests to the oracle gateway over HTTP.
// Dispatch is fire-and-forget from the state machine's perspective; the
// gateway answers later through one of the delivery paths.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) RequestAttestation(ctx context.Context, id models.VerificationID, subject attestation.Subject) error {
	payload, err := json.Marshal(attestationRequest{
		VerificationID: id.String(),
		OutputHash:     subject.OutputHash,
		Model:          subject.Model,
		LeafHash:       attestation.SubjectLeafHash(subject),
	})
	if err != nil {
		return fmt.Errorf("marshal attestation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attestations", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build attestation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch attestation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("oracle gateway returned status %d", resp.StatusCode)
	}
	return nil
}
