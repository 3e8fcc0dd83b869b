package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// ErrNotConnected is returned when the server has no wallet for this client's session.
var ErrNotConnected = errors.New("wallet not connected")

// Status reports whether the session has a program client.
type Status struct {
	Ready      bool   `json:"ready"`
	ProgramID  string `json:"program_id,omitempty"`
	Signer     string `json:"signer,omitempty"`
	Commitment string `json:"commitment,omitempty"`
	Network    string `json:"network,omitempty"`
}

// Market is a prediction market as returned by the server.
type Market struct {
	Address       string `json:"address"`
	Creator       string `json:"creator"`
	Question      string `json:"question"`
	Description   string `json:"description"`
	EndTime       int64  `json:"end_time"`
	YesPool       uint64 `json:"yes_pool"`
	NoPool        uint64 `json:"no_pool"`
	TotalPool     uint64 `json:"total_pool"`
	TotalBets     uint64 `json:"total_bets"`
	IsResolved    bool   `json:"is_resolved"`
	WinningOption string `json:"winning_option,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	ResolvedAt    *int64 `json:"resolved_at,omitempty"`
	Ended         bool   `json:"ended"`
	MyBet         *Bet   `json:"my_bet,omitempty"`
}

// Bet is the session wallet's position in a market.
type Bet struct {
	Address   string `json:"address"`
	Market    string `json:"market"`
	User      string `json:"user"`
	Amount    uint64 `json:"amount"`
	Option    string `json:"option"`
	Timestamp int64  `json:"timestamp"`
	Claimed   bool   `json:"claimed"`
}

// UnsignedTransaction is a transaction built by the server for the wallet to sign.
type UnsignedTransaction struct {
	Instruction     string `json:"instruction"`
	Transaction     string `json:"transaction"`
	Signer          string `json:"signer"`
	RecentBlockhash string `json:"recent_blockhash"`
	Address         string `json:"address,omitempty"`
}

// Client is the HTTP client for the SolanaPredict server. The server keys
// wallet state by session cookie, so the underlying http.Client needs a jar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new client. When httpClient is nil a client with its own
// cookie jar is created.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// cookiejar.New only fails on bad options
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: 30 * time.Second, Jar: jar}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Connect attaches a wallet public key to this client's session.
func (c *Client) Connect(ctx context.Context, publicKey string) (*Status, error) {
	var out struct {
		SessionID string `json:"session_id"`
		Status    Status `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/session", map[string]string{"public_key": publicKey}, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("wallet connected", "public_key", publicKey, "session_id", out.SessionID)
	return &out.Status, nil
}

// Disconnect drops the session's wallet.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/session", nil, http.StatusNoContent, nil)
}

// ProgramStatus reports whether the session has a program client.
func (c *Client) ProgramStatus(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/program", nil, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListMarkets returns every market of the program.
func (c *Client) ListMarkets(ctx context.Context) ([]*Market, error) {
	var out struct {
		Markets []*Market `json:"markets"`
		Count   int       `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/markets", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Markets, nil
}

// GetMarket returns one market and, if any, the session wallet's bet on it.
func (c *Client) GetMarket(ctx context.Context, address string) (*Market, error) {
	var market Market
	if err := c.do(ctx, http.MethodGet, "/api/v1/markets/"+url.PathEscape(address), nil, http.StatusOK, &market); err != nil {
		return nil, err
	}
	return &market, nil
}

// BuildTransaction asks the server for an unsigned transaction. params is the
// instruction's JSON body.
func (c *Client) BuildTransaction(ctx context.Context, instruction string, params interface{}) (*UnsignedTransaction, error) {
	var tx UnsignedTransaction
	if err := c.do(ctx, http.MethodPost, "/api/v1/transactions/"+url.PathEscape(instruction), params, http.StatusOK, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotConnected
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
