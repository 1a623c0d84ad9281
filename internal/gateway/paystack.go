package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"stockpay/internal/model"
)

var (
	// ErrTransactionNotFound means the processor has no record of the
	// reference. Terminal: retrying cannot make the transaction appear.
	ErrTransactionNotFound = errors.New("payment not found")
	// ErrUnavailable covers timeouts, network failures and processor 5xx.
	// Retryable by the caller's transport-level policy.
	ErrUnavailable = errors.New("unable to verify payment")
)

// VerifiedTransaction is the processor's own account of a charge, fetched
// server to server. Amount and currency from here are authoritative; the
// webhook payload is never trusted for either.
type VerifiedTransaction struct {
	Reference    string
	ProcessorRef string
	Amount       int64
	Fee          int64
	Currency     model.Currency
	Status       string
	Metadata     model.JobMetadata
	Raw          string
}

type InitializedTransaction struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Client talks to the Paystack REST API.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	log       *slog.Logger
}

func NewClient(baseURL, secretKey string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
		log:       log.With("service", "paystack"),
	}
}

type verifyResponse struct {
	Status bool            `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type verifyData struct {
	Reference string            `json:"reference"`
	Amount    int64             `json:"amount"`
	Fees      int64             `json:"fees"`
	Currency  model.Currency    `json:"currency"`
	Status    string            `json:"status"`
	Metadata  model.JobMetadata `json:"metadata"`
}

// VerifyTransaction fetches the canonical state of a charge by reference.
// Transient failures are retried with bounded backoff before giving up with
// ErrUnavailable; a processor 400 is a definitive not-found.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	var tx *VerifiedTransaction

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, status, err := c.get(ctx, "/transaction/verify/"+reference)
		if err != nil {
			c.log.Error("error verifying paystack payment", "reference", reference, "error", err)
			return retry.RetryableError(ErrUnavailable)
		}

		switch {
		case status == http.StatusBadRequest:
			return ErrTransactionNotFound
		case status >= 500:
			c.log.Error("paystack verify returned server error", "reference", reference, "status", status)
			return retry.RetryableError(ErrUnavailable)
		case status != http.StatusOK:
			c.log.Error("paystack verify returned unexpected status", "reference", reference, "status", status)
			return ErrUnavailable
		}

		var resp verifyResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode verify response: %w", err)
		}
		var data verifyData
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return fmt.Errorf("decode verify data: %w", err)
		}

		tx = &VerifiedTransaction{
			Reference:    data.Reference,
			ProcessorRef: data.Reference,
			Amount:       data.Amount,
			Fee:          data.Fees,
			Currency:     data.Currency,
			Status:       data.Status,
			Metadata:     data.Metadata,
			Raw:          string(resp.Data),
		}
		return nil
	})
	if err != nil {
		// RetryableError wrappers implement Unwrap, so errors.Is against
		// the sentinels still works for callers.
		return nil, err
	}

	c.log.Info("verified paystack payment", "reference", reference, "status", tx.Status)
	return tx, nil
}

type initializeRequest struct {
	Email     string            `json:"email"`
	Amount    int64             `json:"amount"`
	Currency  model.Currency    `json:"currency"`
	Reference string            `json:"reference"`
	Metadata  model.JobMetadata `json:"metadata"`
}

type initializeResponse struct {
	Status bool                   `json:"status"`
	Data   InitializedTransaction `json:"data"`
}

// InitializeTransaction starts a checkout with the processor and returns the
// authorization URL the buyer is redirected to.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount int64, currency model.Currency, reference string, metadata model.JobMetadata) (*InitializedTransaction, error) {
	payload, err := json.Marshal(initializeRequest{
		Email:     email,
		Amount:    amount,
		Currency:  currency,
		Reference: reference,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encode initialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build initialize request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		c.log.Error("error initializing payment", "reference", reference, "error", err)
		return nil, ErrUnavailable
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil || res.StatusCode != http.StatusOK {
		c.log.Error("error initializing payment", "reference", reference, "status", res.StatusCode)
		return nil, ErrUnavailable
	}

	var resp initializeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode initialize response: %w", err)
	}

	c.log.Info("initialized paystack payment", "reference", reference)
	return &resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	c.authorize(req)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, res.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
}
