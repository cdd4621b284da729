package predictions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"xmrbet/internal/models"
)

// Client talks to the remote predictions API. All methods are safe for
// concurrent use; per-call deadlines come from ctx on top of the transport
// timeout configured on httpClient.
type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if err := windowError(body); err != nil {
			return nil, err
		}
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// windowError maps structured server rejections onto the shared window
// sentinels so callers can distinguish them from generic failures.
func windowError(body []byte) error {
	switch parseErrorCode(body) {
	case "betting_closed":
		return models.ErrBettingClosed
	case "already_resolved":
		return models.ErrAlreadyResolved
	default:
		return nil
	}
}

func (c *Client) ListMarkets(ctx context.Context, includeResolved bool) ([]Market, error) {
	query := url.Values{}
	if includeResolved {
		query.Set("include_resolved", "true")
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/predictions/markets", query, nil)
	if err != nil {
		return nil, err
	}
	var out []Market
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}
	return out, nil
}

func (c *Client) GetMarket(ctx context.Context, marketID string) (*Market, error) {
	if marketID == "" {
		return nil, fmt.Errorf("market_id is required")
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/predictions/markets/"+url.PathEscape(marketID), nil, nil)
	if err != nil {
		return nil, err
	}
	var out Market
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode market: %w", err)
	}
	return &out, nil
}

func (c *Client) CreateMarket(ctx context.Context, req CreateMarketRequest) (*Market, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/predictions/markets", nil, req)
	if err != nil {
		return nil, err
	}
	var out Market
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode market: %w", err)
	}
	return &out, nil
}

// DeleteMarket removes a market. The server only honors this while the market
// has zero bets placed.
func (c *Client) DeleteMarket(ctx context.Context, marketID string) error {
	if marketID == "" {
		return fmt.Errorf("market_id is required")
	}
	_, err := c.doRequest(ctx, http.MethodDelete, "/predictions/markets/"+url.PathEscape(marketID), nil, nil)
	return err
}

func (c *Client) ResolveMarket(ctx context.Context, marketID string, outcome models.Side) error {
	if marketID == "" {
		return fmt.Errorf("market_id is required")
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/predictions/markets/"+url.PathEscape(marketID)+"/resolve", nil,
		ResolveMarketRequest{Outcome: string(outcome)})
	return err
}

func (c *Client) ProcessPayouts(ctx context.Context, marketID string) error {
	if marketID == "" {
		return fmt.Errorf("market_id is required")
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/predictions/markets/"+url.PathEscape(marketID)+"/process-payouts", nil, nil)
	return err
}

// GetPool probes whether a market's deposit pool actually exists. Markets can
// be listed while their pool record is missing or expired.
func (c *Client) GetPool(ctx context.Context, marketID string) (*Pool, error) {
	if marketID == "" {
		return nil, fmt.Errorf("market_id is required")
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/predictions/pool/"+url.PathEscape(marketID), nil, nil)
	if err != nil {
		return nil, err
	}
	var out Pool
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode pool: %w", err)
	}
	return &out, nil
}

func (c *Client) CreateBet(ctx context.Context, req CreateBetRequest) (*BetReceipt, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/predictions/bet", nil, req)
	if err != nil {
		return nil, err
	}
	var out BetReceipt
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bet receipt: %w", err)
	}
	return &out, nil
}

func (c *Client) GetBetStatus(ctx context.Context, betID string) (*BetStatus, error) {
	if betID == "" {
		return nil, fmt.Errorf("bet_id is required")
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/predictions/bet/"+url.PathEscape(betID)+"/status", nil, nil)
	if err != nil {
		return nil, err
	}
	var out BetStatus
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bet status: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateBetPayoutAddress(ctx context.Context, betID, address string) error {
	if betID == "" {
		return fmt.Errorf("bet_id is required")
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/predictions/bet/"+url.PathEscape(betID)+"/payout-address", nil,
		PayoutAddressRequest{PayoutAddress: address})
	return err
}

func (c *Client) CreateSlip(ctx context.Context, req CreateSlipRequest) (*SlipReceipt, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/predictions/slip", nil, req)
	if err != nil {
		return nil, err
	}
	var out SlipReceipt
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode slip receipt: %w", err)
	}
	return &out, nil
}

func (c *Client) GetSlipStatus(ctx context.Context, slipID string) (*SlipStatus, error) {
	if slipID == "" {
		return nil, fmt.Errorf("slip_id is required")
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/predictions/slip/"+url.PathEscape(slipID)+"/status", nil, nil)
	if err != nil {
		return nil, err
	}
	var out SlipStatus
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode slip status: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateSlipPayoutAddress(ctx context.Context, slipID, address string) error {
	if slipID == "" {
		return fmt.Errorf("slip_id is required")
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/predictions/slip/"+url.PathEscape(slipID)+"/payout-address", nil,
		PayoutAddressRequest{PayoutAddress: address})
	return err
}

// Register submits a solved PoW puzzle to create an anonymous account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/predictions/register", nil, req)
	if err != nil {
		return nil, err
	}
	var out RegisterResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode register response: %w", err)
	}
	return &out, nil
}
