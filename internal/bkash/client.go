// Package bkash is a client for the bKash tokenized checkout API.
package bkash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

const (
	tokenCacheKey = "bkash_token"
	// Tokens live 60 minutes; refresh well before that.
	tokenTTL = 50 * time.Minute

	grantPath   = "/tokenized/checkout/token/grant"
	createPath  = "/tokenized/checkout/create"
	executePath = "/tokenized/checkout/execute"
	statusPath  = "/tokenized/checkout/payment/status"

	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
)

// Config holds credentials and endpoints.
type Config struct {
	BaseURL     string
	AppKey      string
	AppSecret   string
	Username    string
	Password    string
	CallbackURL string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// Client talks to bKash. It is safe for concurrent use.
type Client struct {
	cfg   Config
	cache TokenCache
	http  *http.Client
	log   *log.Helper
}

// NewClient creates a client. cache holds the bearer token between calls.
func NewClient(cfg Config, cache TokenCache, logger log.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Client{
		cfg:   cfg,
		cache: cache,
		http:  &http.Client{Timeout: cfg.Timeout},
		log:   log.NewHelper(log.With(logger, "module", "bkash")),
	}
}

// GetToken returns the cached token or grants a new one.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	token, ok, err := c.cache.Get(ctx, tokenCacheKey)
	if err != nil {
		c.log.Warnf("token cache read failed, granting a new token: %v", err)
	}
	if ok && token != "" {
		return token, nil
	}

	headers := map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	}
	body, err := c.post(ctx, grantPath, headers, grantRequest{
		AppKey:    c.cfg.AppKey,
		AppSecret: c.cfg.AppSecret,
	}, true)
	if err != nil {
		c.log.Errorf("token grant failed: %v", err)
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}

	var grant grantResponse
	if err := json.Unmarshal(body, &grant); err != nil {
		return "", fmt.Errorf("%w: %w: decode grant response: %v", ErrNoToken, ErrGateway, err)
	}
	if grant.IDToken == "" {
		c.log.Errorf("token grant returned no id_token: %s %s", grant.StatusCode, grant.StatusMsg)
		return "", fmt.Errorf("%w: %w: %s %s", ErrNoToken, ErrGateway, grant.StatusCode, grant.StatusMsg)
	}

	if err := c.cache.Set(ctx, tokenCacheKey, grant.IDToken, tokenTTL); err != nil {
		c.log.Warnf("token cache write failed: %v", err)
	}
	return grant.IDToken, nil
}

// CreatePayment opens a checkout for amount. invoiceNumber must be unique per
// payment; it is echoed back as merchantInvoiceNumber.
func (c *Client) CreatePayment(ctx context.Context, amount decimal.Decimal, invoiceNumber, intent string) (*CreatePaymentResponse, error) {
	if intent == "" {
		intent = intentSale
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, createPath, headers, createRequest{
		Mode:                  checkoutMode,
		PayerReference:        invoiceNumber,
		CallbackURL:           c.cfg.CallbackURL,
		Amount:                amount.StringFixed(2),
		Currency:              currencyBDT,
		Intent:                intent,
		MerchantInvoiceNumber: invoiceNumber,
	}, true)
	if err != nil {
		c.log.Errorf("create payment invoice=%s: %v", invoiceNumber, err)
		return nil, err
	}

	var resp CreatePaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode create response: %v", ErrGateway, err)
	}
	if resp.StatusCode != StatusSuccess || resp.PaymentID == "" {
		c.log.Errorf("create payment invoice=%s rejected: %s %s", invoiceNumber, resp.StatusCode, resp.StatusMessage)
		return nil, fmt.Errorf("%w: create payment: %s %s", ErrGateway, resp.StatusCode, resp.StatusMessage)
	}
	return &resp, nil
}

// ExecutePayment confirms a created payment. It is attempted once: a retry
// after an ambiguous failure is left to QueryPayment.
func (c *Client) ExecutePayment(ctx context.Context, paymentID string) (*ExecutePaymentResponse, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, executePath, headers, paymentIDRequest{PaymentID: paymentID}, false)
	if err != nil {
		c.log.Errorf("execute payment %s: %v", paymentID, err)
		return nil, err
	}

	var resp ExecutePaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode execute response: %v", ErrGateway, err)
	}
	if resp.StatusCode != StatusSuccess {
		c.log.Errorf("execute payment %s rejected: %s %s", paymentID, resp.StatusCode, resp.StatusMessage)
		return nil, fmt.Errorf("%w: execute payment: %s %s", ErrGateway, resp.StatusCode, resp.StatusMessage)
	}
	return &resp, nil
}

// QueryPayment returns the current gateway view of a payment.
func (c *Client) QueryPayment(ctx context.Context, paymentID string) (*QueryPaymentResponse, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, statusPath, headers, paymentIDRequest{PaymentID: paymentID}, true)
	if err != nil {
		c.log.Errorf("query payment %s: %v", paymentID, err)
		return nil, err
	}

	var resp QueryPaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", ErrGateway, err)
	}
	if resp.StatusCode != StatusSuccess {
		return nil, fmt.Errorf("%w: query payment: %s %s", ErrGateway, resp.StatusCode, resp.StatusMessage)
	}
	return &resp, nil
}

func (c *Client) authHeaders(ctx context.Context) (map[string]string, error) {
	token, err := c.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"authorization": token,
		"x-app-key":     c.cfg.AppKey,
	}, nil
}

// post sends payload as JSON and returns the body of a 200 response. With
// retry set, transport errors, 429 and 5xx are retried with exponential backoff.
func (c *Client) post(ctx context.Context, path string, headers map[string]string, payload interface{}, retry bool) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}

	attempts := 1
	if retry {
		attempts += c.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.cfg.RetryDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s: %w", ErrGateway, path, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", path, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s: %w", ErrGateway, path, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read %s response: %w", ErrGateway, path, err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr errorResponse
			detail := string(body)
			if json.Unmarshal(body, &apiErr) == nil && apiErr.describe() != "" {
				detail = apiErr.describe()
			}
			lastErr = fmt.Errorf("%w: %s returned %d: %s", ErrGateway, path, resp.StatusCode, detail)

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}

		return body, nil
	}

	if attempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", attempts, lastErr)
}
