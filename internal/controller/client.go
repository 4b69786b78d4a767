package controller

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
)

// ErrTransport marks a request that never got an HTTP response
var ErrTransport = errors.New("decision server unreachable")

// Result is the server's answer for one tag read
type Result struct {
	Granted bool
	UPN     string
}

// DecisionClient talks to the access decision endpoint
type DecisionClient struct {
	baseURL string
	http    *http.Client
}

// NewDecisionClient creates a client with a per-request timeout
func NewDecisionClient(baseURL string, timeout time.Duration) *DecisionClient {
	return &DecisionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type decisionRequest struct {
	RFIDUID string `json:"rfid_uid"`
	DoorID  int64  `json:"door_id"`
}

type decisionResponse struct {
	AccessGranted bool   `json:"access_granted"`
	UPN           string `json:"upn"`
}

// Probe checks that the server answers its health endpoint with 200
func (c *DecisionClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// Decide asks whether uid may open doorID. Only a 200 with
// access_granted true is a grant; every other answer is a deny.
func (c *DecisionClient) Decide(ctx context.Context, uid string, doorID int64) (Result, error) {
	body, err := json.Marshal(decisionRequest{RFIDUID: uid, DoorID: doorID})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/access", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out decisionResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&out); err != nil {
			return Result{}, fmt.Errorf("decode decision: %w", err)
		}
		return Result{Granted: out.AccessGranted, UPN: out.UPN}, nil
	case http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, nil
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, fmt.Errorf("decision server returned %d", resp.StatusCode)
	}
}
