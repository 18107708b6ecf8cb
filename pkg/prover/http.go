// Copyright 2025 Certen Protocol

package prover

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type proveRequest struct {
	BatchID      string `json:"batch_id"`
	PublicInputs string `json:"public_inputs"`
}

type proveResponse struct {
	Proof string `json:"proof"`
}

// HTTPProver calls an external prover service at Url via POST /prove.
type HTTPProver struct {
	url        string
	httpClient *http.Client
	logger     *log.Logger
}

// HTTPProverOption configures an HTTPProver at construction time.
type HTTPProverOption func(*HTTPProver)

// WithHTTPClient overrides the default timeout-bound client.
func WithHTTPClient(client *http.Client) HTTPProverOption {
	return func(p *HTTPProver) {
		p.httpClient = client
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) HTTPProverOption {
	return func(p *HTTPProver) {
		p.logger = logger
	}
}

// NewHTTPProver constructs a prover client against the given base URL.
func NewHTTPProver(url string, opts ...HTTPProverOption) *HTTPProver {
	p := &HTTPProver{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.New(log.Writer(), "[Prover/http] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetProof posts the batch id and public inputs to {url}/prove and
// returns the decoded proof bytes. 5xx and transport errors are
// Transient; any other status than 200 is Permanent.
func (p *HTTPProver) GetProof(ctx context.Context, batchID uuid.UUID, publicInputs []byte) ([]byte, error) {
	reqBody, err := json.Marshal(proveRequest{
		BatchID:      batchID.String(),
		PublicInputs: hex.EncodeToString(publicInputs),
	})
	if err != nil {
		return nil, NewError(Permanent, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/prove", bytes.NewReader(reqBody))
	if err != nil {
		return nil, NewError(Permanent, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewError(Transient, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(Transient, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= 500 {
		return nil, NewError(Transient, fmt.Errorf("prover returned status %d: %s", resp.StatusCode, body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewError(Permanent, fmt.Errorf("prover returned status %d: %s", resp.StatusCode, body))
	}

	var proveResp proveResponse
	if err := json.Unmarshal(body, &proveResp); err != nil {
		return nil, NewError(Permanent, fmt.Errorf("failed to parse response: %w", err))
	}

	proof, err := hex.DecodeString(proveResp.Proof)
	if err != nil {
		return nil, NewError(Permanent, fmt.Errorf("failed to decode proof hex: %w", err))
	}

	return proof, nil
}

var _ Provider = (*HTTPProver)(nil)
