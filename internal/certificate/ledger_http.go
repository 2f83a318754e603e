package certificate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"veristamp/internal/verification/models"
)

// HTTPLedger mints certificate tokens through the ledger gateway's REST API.
type HTTPLedger struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLedger(baseURL string) *HTTPLedger {
	return &HTTPLedger{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type mintResponse struct {
	TokenID     string `json:"token_id"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

func (l *HTTPLedger) Mint(ctx context.Context, req MintRequest) (models.Certificate, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return models.Certificate{}, fmt.Errorf("marshal mint request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/certificates", bytes.NewReader(payload))
	if err != nil {
		return models.Certificate{}, fmt.Errorf("build mint request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return models.Certificate{}, fmt.Errorf("call ledger mint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return models.Certificate{}, fmt.Errorf("ledger mint returned status %d", resp.StatusCode)
	}

	var body mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Certificate{}, fmt.Errorf("decode mint response: %w", err)
	}
	return models.Certificate{
		TokenID:     body.TokenID,
		TxHash:      body.TxHash,
		BlockNumber: body.BlockNumber,
		MintedAt:    time.Now(),
	}, nil
}
