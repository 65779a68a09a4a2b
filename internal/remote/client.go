// Package remote pushes queued mutations to the GanApp backend over
// its REST API. The client is the production applier: the queue hands
// it entries during a drain and it translates HTTP outcomes into the
// error codes the drain state machine acts on.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

// maxErrorBody bounds how much of an error response gets read.
const maxErrorBody = 64 << 10

// Config holds backend connection configuration.
type Config struct {
	BaseURL string        // e.g. https://api.ganapp.example
	APIKey  string        // bearer token issued to the device
	Timeout time.Duration // per-request ceiling, zero means 30s
}

// Client applies queued mutations against the backend. One instance
// serves every data type; routing comes from the entry itself.
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

// NewClient creates a backend client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Apply sends the mutation to the backend. The entry id doubles as an
// idempotency key, so replaying a delivered mutation is harmless.
func (c *Client) Apply(ctx context.Context, op *models.QueuedOperation) error {
	return c.push(ctx, op, false)
}

// ForceApply resends the mutation with the force flag set, asking the
// backend to overwrite its copy for types whose policy allows it.
func (c *Client) ForceApply(ctx context.Context, op *models.QueuedOperation) error {
	return c.push(ctx, op, true)
}

func (c *Client) push(ctx context.Context, op *models.QueuedOperation, force bool) error {
	method, path, err := route(op)
	if err != nil {
		return err
	}

	var body io.Reader
	if op.Operation != models.OperationDelete {
		body = bytes.NewReader(op.Payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "failed to build backend request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", string(op.ID))
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if force {
		req.Header.Set("X-Sync-Force", "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransient, "backend request failed", err)
	}
	defer resp.Body.Close()

	return decodeOutcome(resp)
}

// route maps an entry to its REST endpoint.
func route(op *models.QueuedOperation) (method, path string, err error) {
	base := "/api/" + op.Table
	switch op.Operation {
	case models.OperationCreate:
		return http.MethodPost, base, nil
	case models.OperationUpdate, models.OperationDelete:
		id := op.PayloadID()
		if id == "" {
			return "", "", apperrors.New(apperrors.ErrValidation, "payload carries no id to address the record")
		}
		if op.Operation == models.OperationUpdate {
			return http.MethodPatch, base + "/" + string(id), nil
		}
		return http.MethodDelete, base + "/" + string(id), nil
	}
	return "", "", apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown operation %q", op.Operation))
}

// errorBody is the backend's error envelope. current carries the
// server's copy of the record when the rejection is a conflict.
type errorBody struct {
	Message string          `json:"message"`
	Current json.RawMessage `json:"current,omitempty"`
}

// decodeOutcome translates an HTTP status into the drain error codes.
// 409 is a business conflict for the resolver, 404 and 410 mean the
// remote record is gone, 400 and 422 are terminal rejections, and
// anything else non-2xx is worth retrying on a later drain.
func decodeOutcome(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return apperrors.Conflict(msg, eb.Current)
	case http.StatusNotFound, http.StatusGone:
		return apperrors.New(apperrors.ErrRemoteGone, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.New(apperrors.ErrValidation, msg)
	}
	return apperrors.New(apperrors.ErrTransient,
		fmt.Sprintf("backend returned %d: %s", resp.StatusCode, msg))
}

// Ping checks the backend health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/health", nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "failed to build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransient, "backend unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.ErrTransient,
			fmt.Sprintf("backend health returned %d", resp.StatusCode))
	}
	return nil
}
