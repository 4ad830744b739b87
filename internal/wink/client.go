// Package wink talks to the Wink retail API: one login per sync pass, then
// per-product inventory lookups keyed by Wink id.
package wink

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/eyewearops/syncdeck/internal/core/circuitbreaker"
	"github.com/eyewearops/syncdeck/internal/core/logger"
)

var (
	ErrMissingCredentials = errors.New("missing Wink API credentials")
	ErrLoginFailed        = errors.New("wink login failed")
	ErrNoToken            = errors.New("wink login returned no token")
)

// Default store id to display name mapping. The Wink API reports inventory
// by numeric store id; the record store wants names.
var DefaultStoreNames = map[string]string{
	"1":  "Niagara Falls",
	"10": "Niagara On The Lake",
	"8":  "St. Catharines",
	"11": "Welland",
}

type Options struct {
	BaseURL   string
	AccountID int
	Username  string
	Password  string
	StoreID   int

	// StoreNames overrides DefaultStoreNames when non-nil.
	StoreNames map[string]string

	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	accountID  int
	username   string
	password   string
	storeID    int
	storeNames map[string]string

	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	token   string
}

func NewClient(opts Options) (*Client, error) {
	if opts.Username == "" || opts.Password == "" || opts.AccountID == 0 {
		return nil, ErrMissingCredentials
	}
	if opts.StoreID == 0 {
		opts.StoreID = 1
	}
	if opts.StoreNames == nil {
		opts.StoreNames = DefaultStoreNames
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    opts.BaseURL,
		accountID:  opts.AccountID,
		username:   opts.Username,
		password:   opts.Password,
		storeID:    opts.StoreID,
		storeNames: opts.StoreNames,
		http:       opts.HTTPClient,
		breaker:    circuitbreaker.New("wink-api"),
	}, nil
}

// StoreNames returns the id to name mapping used for this client.
func (c *Client) StoreNames() map[string]string {
	return c.storeNames
}

// Login authenticates with basic auth and captures the session token from
// the response header. Authentication failure is fatal to a sync run.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"accountsId": strconv.Itoa(c.accountID),
		"storeId":    strconv.Itoa(c.storeID),
		"expiration": "24",
		"thirdParty": true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Web/login/doctors", bytes.NewReader(body))
	if err != nil {
		return err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")

	var resp *http.Response
	err = c.breaker.Execute(ctx, func() error {
		var doErr error
		resp, doErr = c.http.Do(req)
		return doErr
	})
	if err != nil {
		return fmt.Errorf("wink login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	token := resp.Header.Get("token")
	if token == "" {
		return ErrNoToken
	}
	c.token = token
	logger.Info("authenticated with Wink API")
	return nil
}

// Product fetches a product by Wink id. found is false on a 404. A 429 is
// retried once after honoring the server's Retry-After hint; a 401 triggers
// one re-login and retry.
func (c *Client) Product(ctx context.Context, winkID string) (map[string]any, bool, error) {
	data, found, retryAfter, err := c.product(ctx, winkID)
	if err != nil {
		return nil, false, err
	}
	if retryAfter > 0 {
		logger.Warn("rate limit exceeded, honoring wait hint", "wink_id", winkID, "retry_after", retryAfter)
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		data, found, retryAfter, err = c.product(ctx, winkID)
		if err != nil {
			return nil, false, err
		}
		if retryAfter > 0 {
			return nil, false, fmt.Errorf("still rate limited for wink id %s", winkID)
		}
	}
	return data, found, nil
}

func (c *Client) product(ctx context.Context, winkID string) (data map[string]any, found bool, retryAfter time.Duration, err error) {
	resp, err := c.get(ctx, winkID)
	if err != nil {
		return nil, false, 0, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		data, err = decodeProduct(resp)
		return data, data != nil, 0, err
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, false, 0, nil
	case http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		return nil, false, wait, nil
	case http.StatusUnauthorized:
		resp.Body.Close()
		logger.Info("token expired, re-authenticating")
		if err := c.Login(ctx); err != nil {
			return nil, false, 0, err
		}
		resp, err = c.get(ctx, winkID)
		if err != nil {
			return nil, false, 0, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, false, 0, fmt.Errorf("wink api returned status %d for wink id %s", resp.StatusCode, winkID)
		}
		data, err = decodeProduct(resp)
		return data, data != nil, 0, err
	default:
		resp.Body.Close()
		return nil, false, 0, fmt.Errorf("wink api returned status %d for wink id %s", resp.StatusCode, winkID)
	}
}

func (c *Client) get(ctx context.Context, winkID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/Web/Product/"+winkID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Token", c.token)
	req.Header.Set("Accept", "application/json")

	var resp *http.Response
	err = c.breaker.Execute(ctx, func() error {
		var doErr error
		resp, doErr = c.http.Do(req)
		return doErr
	})
	if err != nil {
		return nil, fmt.Errorf("wink product request: %w", err)
	}
	return resp, nil
}

// decodeProduct tolerates both a single object and a list response; a list
// yields its first element.
func decodeProduct(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode wink product: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		if m, ok := v[0].(map[string]any); ok {
			return m, nil
		}
		return nil, nil
	case map[string]any:
		return v, nil
	default:
		return nil, nil
	}
}

func parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}
