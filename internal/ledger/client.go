// Package ledger is the HTTP client for the remote ledger service: the
// authentication, wallet, games and staff endpoint groups.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"casino-miniapp/internal/models"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderAuthToken = "X-Auth-Token"
)

type Endpoints struct {
	Auth   string `yaml:"auth"`
	Wallet string `yaml:"wallet"`
	Games  string `yaml:"games"`
	Staff  string `yaml:"staff"`
}

// Credentials yields the caller identity for authenticated requests.
type Credentials func() (userID int64, token string, ok bool)

type Client struct {
	endpoints   Endpoints
	client      *http.Client
	credentials Credentials
}

func NewClient(endpoints Endpoints, timeout time.Duration, credentials Credentials) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoints:   endpoints,
		client:      &http.Client{Timeout: timeout},
		credentials: credentials,
	}
}

// Authenticate logs in or registers. The returned account carries the session
// token when the ledger issued one.
func (c *Client) Authenticate(ctx context.Context, req models.AuthRequest) (*models.Account, string, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, "authenticate", http.MethodPost, c.endpoints.Auth, req, &resp, false, true); err != nil {
		return nil, "", err
	}
	if resp.User == nil {
		return nil, "", &TransportError{Op: "authenticate", Err: fmt.Errorf("%w: missing user", ErrMalformed)}
	}

	account := *resp.User
	account.Token = resp.Token
	return &account, resp.Message, nil
}

func (c *Client) Balance(ctx context.Context) (models.Balances, error) {
	var b models.Balances
	err := c.do(ctx, "get balance", http.MethodGet, c.endpoints.Wallet, nil, &b, true, false)
	return b, err
}

// MyRequests lists the caller's own deposit/withdraw requests, any status.
func (c *Client) MyRequests(ctx context.Context) ([]models.PendingRequest, error) {
	var list []models.PendingRequest
	err := c.do(ctx, "list own requests", http.MethodGet, c.endpoints.Wallet+"?view=requests", nil, &list, true, false)
	return list, err
}

func (c *Client) SubmitRequest(ctx context.Context, typ models.RequestType, amount decimal.Decimal, currency models.Currency) (int64, error) {
	req := models.WalletRequest{
		Action:   models.WalletActionRequest,
		Type:     typ,
		Amount:   amount,
		Currency: currency,
	}

	var resp models.WalletResponse
	if err := c.do(ctx, "submit request", http.MethodPost, c.endpoints.Wallet, req, &resp, true, true); err != nil {
		return 0, err
	}
	return resp.RequestID, nil
}

func (c *Client) Exchange(ctx context.Context, amount decimal.Decimal, from, to models.Currency) (models.Balances, string, error) {
	req := models.WalletRequest{
		Action:       models.WalletActionExchange,
		Amount:       amount,
		FromCurrency: from,
		ToCurrency:   to,
	}

	var resp models.WalletResponse
	if err := c.do(ctx, "exchange", http.MethodPost, c.endpoints.Wallet, req, &resp, true, true); err != nil {
		return models.Balances{}, "", err
	}
	if resp.Balance == nil {
		return models.Balances{}, "", &TransportError{Op: "exchange", Err: fmt.Errorf("%w: missing balance", ErrMalformed)}
	}
	return *resp.Balance, resp.Message, nil
}

func (c *Client) StartMines(ctx context.Context, bet decimal.Decimal, mines int) (*models.GameResponse, error) {
	req := models.GameRequest{
		GameType:   models.GameTypeMines,
		BetAmount:  bet,
		MinesCount: mines,
	}
	return c.game(ctx, "start mines", req)
}

func (c *Client) RevealMines(ctx context.Context, roundID string, cell int) (*models.GameResponse, error) {
	req := models.GameRequest{
		GameType: models.GameTypeMines,
		Action:   models.MinesActionReveal,
		RoundID:  roundID,
		Cell:     &cell,
	}
	return c.game(ctx, "reveal cell", req)
}

func (c *Client) CashoutMines(ctx context.Context, roundID string, opened int) (*models.GameResponse, error) {
	req := models.GameRequest{
		GameType:    models.GameTypeMines,
		Action:      models.MinesActionCashout,
		RoundID:     roundID,
		OpenedCells: opened,
	}
	return c.game(ctx, "cash out", req)
}

// ActiveMines asks for a mines round still open on the ledger. The response
// has no round when there is none.
func (c *Client) ActiveMines(ctx context.Context) (*models.GameResponse, error) {
	var resp models.GameResponse
	if err := c.do(ctx, "active mines", http.MethodGet, c.endpoints.Games+"/active", nil, &resp, true, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SpinRoulette(ctx context.Context, bet decimal.Decimal) (*models.GameResponse, error) {
	req := models.GameRequest{
		GameType:  models.GameTypeRoulette,
		BetAmount: bet,
	}
	return c.game(ctx, "spin roulette", req)
}

func (c *Client) game(ctx context.Context, op string, req models.GameRequest) (*models.GameResponse, error) {
	var resp models.GameResponse
	if err := c.do(ctx, op, http.MethodPost, c.endpoints.Games, req, &resp, true, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PendingRequests fetches the staff queue snapshot.
func (c *Client) PendingRequests(ctx context.Context) ([]models.PendingRequest, error) {
	var list []models.PendingRequest
	if err := c.do(ctx, "list pending requests", http.MethodGet, c.endpoints.Staff, nil, &list, true, false); err != nil {
		return nil, err
	}
	if list == nil {
		// "null" is not a collection
		return nil, &TransportError{Op: "list pending requests", Err: ErrMalformed}
	}
	return list, nil
}

func (c *Client) ProcessRequest(ctx context.Context, requestID int64, decision models.Decision) (string, error) {
	req := models.StaffRequest{
		Action:    models.StaffActionProcess,
		RequestID: requestID,
		Decision:  decision,
	}

	var resp models.StaffResponse
	if err := c.do(ctx, "process request", http.MethodPost, c.endpoints.Staff, req, &resp, true, true); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) ManageBalance(ctx context.Context, req models.StaffRequest) (*models.StaffResponse, error) {
	req.Action = models.StaffActionManage

	var resp models.StaffResponse
	if err := c.do(ctx, "manage balance", http.MethodPost, c.endpoints.Staff, req, &resp, true, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, op, method, url string, body, out any, authenticated, enveloped bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		userID, token, ok := c.credentials()
		if !ok {
			return &TransportError{Op: op, Err: fmt.Errorf("no credentials")}
		}
		req.Header.Set(HeaderUserID, strconv.FormatInt(userID, 10))
		if token != "" {
			req.Header.Set(HeaderAuthToken, token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	failed := resp.StatusCode >= http.StatusBadRequest
	if failed || enveloped {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			if failed {
				return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
			}
			return &TransportError{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		if failed || !env.Success {
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
			return &RejectedError{Status: resp.StatusCode, Message: msg}
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
	}
	return nil
}
