package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lightninglabs/zkinv/inventory"
)

const (
	// DefaultRequestTimeout bounds a single proof request. Proving a
	// transition takes a few seconds on commodity hardware.
	DefaultRequestTimeout = 2 * time.Minute

	// maxResponseSize bounds the body we'll read from the prover.
	maxResponseSize = 1 << 20
)

// RequestError is returned when the prover answered a request with an error.
type RequestError struct {
	// Path is the endpoint that was called.
	Path string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Message is the error reported by the prover.
	Message string
}

// Error returns the error message.
func (e *RequestError) Error() string {
	return fmt.Sprintf("prover %v failed (status %d): %v", e.Path,
		e.StatusCode, e.Message)
}

// Unwrap classifies the prover's message into the error taxonomy.
func (e *RequestError) Unwrap() error {
	switch {
	case strings.Contains(e.Message, "Insufficient quantity"):
		return inventory.ErrInsufficientBalance

	case strings.Contains(e.Message, "Capacity exceeded"):
		return inventory.ErrCapacityExceeded

	default:
		return inventory.ErrProver
	}
}

// HttpConfig is the configuration of the HTTP prover client.
type HttpConfig struct {
	// URL is the base URL of the proof server.
	URL string

	// RequestTimeout bounds every single request.
	RequestTimeout time.Duration

	// UserAgent, if set, is sent with every request.
	UserAgent string

	// Client is the HTTP client used. A default client is used if nil.
	Client *http.Client
}

// HttpProver talks to the proof server over its JSON API.
type HttpProver struct {
	cfg *HttpConfig

	client *http.Client
}

// A compile time assertion to ensure HttpProver meets the Prover interface.
var _ Prover = (*HttpProver)(nil)

// NewHttpProver creates a new HTTP prover client.
func NewHttpProver(cfg *HttpConfig) *HttpProver {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	cfg.URL = strings.TrimSuffix(cfg.URL, "/")

	return &HttpProver{
		cfg:    cfg,
		client: client,
	}
}

// do issues a single request and decodes the JSON response into resp. Any
// failure is reported as a prover error, a request that does not complete
// within the configured timeout is failed.
func (h *HttpProver) do(ctx context.Context, method, path string, req,
	resp any) error {

	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	var body io.Reader
	if req != nil {
		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("unable to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, method, h.cfg.URL+path, body,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", inventory.ErrProver, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if h.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", h.cfg.UserAgent)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v timed out after %v",
				inventory.ErrProver, path, h.cfg.RequestTimeout)
		}

		return fmt.Errorf("%w: %v", inventory.ErrProver, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: unable to read response: %v",
			inventory.ErrProver, err)
	}

	log.Tracef("Prover %v returned status %d after %v", path,
		httpResp.StatusCode, time.Since(start))

	if httpResp.StatusCode != http.StatusOK {
		var errResp errorResponseJSON
		if err := json.Unmarshal(raw, &errResp); err != nil ||
			errResp.Error == "" {

			errResp.Error = strings.TrimSpace(string(raw))
		}

		return &RequestError{
			Path:       path,
			StatusCode: httpResp.StatusCode,
			Message:    errResp.Error,
		}
	}

	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("%w: unable to decode response: %v",
			inventory.ErrProver, err)
	}

	return nil
}

// Health checks that the proof server is up.
func (h *HttpProver) Health(ctx context.Context) error {
	var resp healthResponseJSON
	if err := h.do(ctx, http.MethodGet, healthPath, nil, &resp); err != nil {
		return err
	}

	if resp.Status != "ok" {
		return fmt.Errorf("%w: unhealthy status %q", inventory.ErrProver,
			resp.Status)
	}

	return nil
}

// ProveTransition proves a deposit or withdraw.
func (h *HttpProver) ProveTransition(ctx context.Context,
	req *TransitionRequest) (*inventory.ProofArtifact, error) {

	var resp transitionResponseJSON
	err := h.do(
		ctx, http.MethodPost, transitionPath,
		newTransitionRequestJSON(req), &resp,
	)
	if err != nil {
		return nil, err
	}

	artifact, err := resp.artifact(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", inventory.ErrProver, err)
	}

	return artifact, nil
}

// DeriveCommitment asks the prover for the commitment the state opens.
func (h *HttpProver) DeriveCommitment(ctx context.Context,
	state *inventory.State, usedVolume uint64) (inventory.Commitment,
	error) {

	req := &createCommitmentRequestJSON{
		Inventory:     slotsJSON(state),
		CurrentVolume: usedVolume,
		Blinding:      state.Blinding.String(),
	}

	var resp createCommitmentResponseJSON
	err := h.do(ctx, http.MethodPost, createCommitmentPath, req, &resp)
	if err != nil {
		return inventory.Commitment{}, err
	}

	commitment, err := inventory.ParseCommitment(resp.Commitment)
	if err != nil {
		return inventory.Commitment{}, fmt.Errorf("%w: %v",
			inventory.ErrProver, err)
	}

	return commitment, nil
}

// ProveHolding proves the state holds at least minQuantity of an item.
func (h *HttpProver) ProveHolding(ctx context.Context, state *inventory.State,
	usedVolume uint64, item inventory.ItemID,
	minQuantity uint64) (*Attestation, error) {

	req := &itemExistsRequestJSON{
		Inventory:     slotsJSON(state),
		CurrentVolume: usedVolume,
		Blinding:      state.Blinding.String(),
		ItemID:        uint64(item),
		MinQuantity:   minQuantity,
	}

	var resp proofResponseJSON
	err := h.do(ctx, http.MethodPost, itemExistsPath, req, &resp)
	if err != nil {
		return nil, err
	}

	attestation, err := resp.attestation()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", inventory.ErrProver, err)
	}

	return attestation, nil
}

// ProveCapacity proves the state's used volume is within maxCapacity.
func (h *HttpProver) ProveCapacity(ctx context.Context,
	state *inventory.State, usedVolume,
	maxCapacity uint64) (*Attestation, error) {

	req := &capacityRequestJSON{
		Inventory:     slotsJSON(state),
		CurrentVolume: usedVolume,
		Blinding:      state.Blinding.String(),
		MaxCapacity:   maxCapacity,
	}

	var resp proofResponseJSON
	err := h.do(ctx, http.MethodPost, capacityPath, req, &resp)
	if err != nil {
		return nil, err
	}

	attestation, err := resp.attestation()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", inventory.ErrProver, err)
	}

	return attestation, nil
}
