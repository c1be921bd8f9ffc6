package chem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrCalculatorUnavailable signals that no energy/force backend is
// configured. It marks a degraded mode, not a pipeline failure:
// callers substitute deterministic fallbacks.
var ErrCalculatorUnavailable = errors.New("chem: calculator unavailable")

// Calculator evaluates the potential energy (eV) and per-atom forces
// (eV/Å) of a structure.
type Calculator interface {
	Evaluate(ctx context.Context, s *Structure) (energy float64, forces [][3]float64, err error)
}

// Port is the capability view of an optional Calculator, resolved once
// at construction so call sites never re-check availability ad hoc.
// The zero value is the unavailable port.
type Port struct {
	calc Calculator
}

// AvailablePort wraps a working calculator. A nil calculator yields
// the unavailable port.
func AvailablePort(c Calculator) Port {
	return Port{calc: c}
}

// UnavailablePort returns a port with no backend.
func UnavailablePort() Port {
	return Port{}
}

// Available reports whether a backend is present.
func (p Port) Available() bool {
	return p.calc != nil
}

// Evaluate delegates to the backend, or returns
// ErrCalculatorUnavailable when there is none.
func (p Port) Evaluate(ctx context.Context, s *Structure) (float64, [][3]float64, error) {
	if p.calc == nil {
		return 0, nil, ErrCalculatorUnavailable
	}
	return p.calc.Evaluate(ctx, s)
}

// RemoteConfig configures the connection to an external ML-potential
// inference service.
type RemoteConfig struct {
	Endpoint string
	APIToken string
	Model    string
	Device   string
	Timeout  time.Duration
}

// RemoteCalculator evaluates structures against a pretrained
// interatomic-potential service over HTTP.
type RemoteCalculator struct {
	cfg        RemoteConfig
	httpClient *http.Client
}

// NewRemoteCalculator builds the HTTP-backed calculator.
func NewRemoteCalculator(cfg RemoteConfig) *RemoteCalculator {
	if cfg.Model == "" {
		cfg.Model = "gemnet_oc"
	}
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &RemoteCalculator{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type evaluateRequest struct {
	Model     string       `json:"model"`
	Device    string       `json:"device"`
	Symbols   []string     `json:"symbols"`
	Positions [][3]float64 `json:"positions"`
}

type evaluateResponse struct {
	Energy float64      `json:"energy"`
	Forces [][3]float64 `json:"forces"`
	Error  string       `json:"error,omitempty"`
}

// Evaluate posts the structure to the inference endpoint and decodes
// the energy/forces reply.
func (r *RemoteCalculator) Evaluate(ctx context.Context, s *Structure) (float64, [][3]float64, error) {
	reqBody := evaluateRequest{
		Model:     r.cfg.Model,
		Device:    r.cfg.Device,
		Symbols:   s.Symbols,
		Positions: s.Positions,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.cfg.Endpoint+"/v1/evaluate", bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("calculator service returned %d: %s", resp.StatusCode, string(body))
	}

	var result evaluateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}
	if result.Error != "" {
		return 0, nil, fmt.Errorf("calculator service error: %s", result.Error)
	}
	if len(result.Forces) != s.Len() {
		return 0, nil, fmt.Errorf("calculator returned %d force vectors for %d atoms", len(result.Forces), s.Len())
	}

	return result.Energy, result.Forces, nil
}
