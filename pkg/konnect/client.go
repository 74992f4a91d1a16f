package konnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/wbenromdhane/tijara-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.konnect.network/api/v2"
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var (
	errAPIKeyRequired   = errors.New("konnect api key is required")
	errWalletIDRequired = errors.New("konnect wallet id is required")
)

// Payment lifecycle statuses reported by the gateway.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed_payment"
	StatusExpired   = "expired"
)

// Client wraps the Konnect payment gateway REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	walletID   string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout overrides the default HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the Konnect client given the merchant credentials.
func NewClient(apiKey, walletID string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}
	trimmedWallet := strings.TrimSpace(walletID)
	if trimmedWallet == "" {
		return nil, errWalletIDRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		walletID:   trimmedWallet,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// InitPaymentRequest describes the payload sent to the init-payment API.
// Amount is expressed in millimes, which is the gateway's smallest unit.
type InitPaymentRequest struct {
	ReceiverWalletID string   `json:"receiverWalletId"`
	Token            string   `json:"token"`
	Amount           int64    `json:"amount"`
	OrderID          string   `json:"orderId,omitempty"`
	Description      string   `json:"description,omitempty"`
	FirstName        string   `json:"firstName,omitempty"`
	LastName         string   `json:"lastName,omitempty"`
	Email            string   `json:"email,omitempty"`
	PhoneNumber      string   `json:"phoneNumber,omitempty"`
	Webhook          string   `json:"webhook,omitempty"`
	AcceptedMethods  []string `json:"acceptedPaymentMethods,omitempty"`
	Lifespan         int      `json:"lifespan,omitempty"`
}

// InitPaymentResponse holds the gateway reference and the hosted payment page.
type InitPaymentResponse struct {
	PaymentRef string `json:"paymentRef"`
	PayURL     string `json:"payUrl"`
}

// Payment is the normalized state of a gateway payment.
type Payment struct {
	PaymentRef    string
	Status        string
	Amount        int64
	ReachedAmount int64
	Token         string
	OrderID       string
}

// Completed reports whether the gateway considers the payment settled.
func (p *Payment) Completed() bool {
	return p != nil && p.Status == StatusCompleted
}

// InitPayment registers a payment intent and returns the gateway reference.
func (c *Client) InitPayment(ctx context.Context, req InitPaymentRequest) (*InitPaymentResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "konnect client not configured")
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if req.ReceiverWalletID == "" {
		req.ReceiverWalletID = c.walletID
	}
	if req.Token == "" {
		req.Token = "TND"
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal init payment request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("payments/init-payment"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build init payment request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute init payment request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "init payment request failed")
	}

	var apiResp InitPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode init payment response")
	}
	if apiResp.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned empty payment reference")
	}

	return &apiResp, nil
}

// GetPayment fetches the current state of a payment by its gateway reference.
func (c *Client) GetPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "konnect client not configured")
	}
	trimmed := strings.TrimSpace(paymentRef)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	endpoint := fmt.Sprintf("%s/payments/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build get payment request")
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute get payment request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gateway payment not found")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "get payment request failed")
	}

	var apiResp struct {
		Payment struct {
			ID            string `json:"id"`
			Status        string `json:"status"`
			Amount        int64  `json:"amount"`
			ReachedAmount int64  `json:"reachedAmount"`
			Token         string `json:"token"`
			OrderID       string `json:"orderId"`
		} `json:"payment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode get payment response")
	}

	return &Payment{
		PaymentRef:    apiResp.Payment.ID,
		Status:        apiResp.Payment.Status,
		Amount:        apiResp.Payment.Amount,
		ReachedAmount: apiResp.Payment.ReachedAmount,
		Token:         apiResp.Payment.Token,
		OrderID:       apiResp.Payment.OrderID,
	}, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
