package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/ledger"
	"casino-miniapp/internal/models"
)

func newClient(t *testing.T, handler http.HandlerFunc) *ledger.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	endpoints := ledger.Endpoints{
		Auth:   srv.URL + "/auth",
		Wallet: srv.URL + "/wallet",
		Games:  srv.URL + "/games",
		Staff:  srv.URL + "/staff",
	}
	return ledger.NewClient(endpoints, time.Second, func() (int64, string, bool) {
		return 7, "tok", true
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestAuthenticate(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth", r.URL.Path)
		assert.Empty(t, r.Header.Get(ledger.HeaderUserID), "auth is unauthenticated")

		var req models.AuthRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.AuthLogin, req.Action)
		assert.Equal(t, "1234", req.PinCode)

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    map[string]any{"id": 7, "full_name": "Ivan", "is_staff": false, "balance_rub": 1000, "balance_usd": 0},
			"token":   "jwt-token",
			"message": "ok",
		})
	})

	account, msg, err := client.Authenticate(context.Background(), models.AuthRequest{Action: models.AuthLogin, FullName: "Ivan", PinCode: "1234"})
	require.NoError(t, err)
	assert.Equal(t, "ok", msg)
	assert.Equal(t, int64(7), account.ID)
	assert.Equal(t, "jwt-token", account.Token)
	assert.Equal(t, "1000", account.BalanceRUB.String())
}

func TestAuthenticateRejected(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "wrong name or PIN"})
	})

	_, _, err := client.Authenticate(context.Background(), models.AuthRequest{Action: models.AuthLogin})
	var rerr *ledger.RejectedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusUnauthorized, rerr.Status)
	assert.Equal(t, "wrong name or PIN", rerr.Message)
}

func TestCredentialHeaders(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.Header.Get(ledger.HeaderUserID))
		assert.Equal(t, "tok", r.Header.Get(ledger.HeaderAuthToken))
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, map[string]any{"balance_rub": 10.5, "balance_usd": 1})
	})

	b, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.5", b.RUB.String())
	assert.Equal(t, "1", b.USD.String())
}

func TestStartMinesPayload(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mines", body["game_type"])
		assert.Equal(t, float64(100), body["bet_amount"])
		assert.Equal(t, float64(3), body["mines_count"])
		assert.Equal(t, float64(0), body["opened_cells"])

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "round_id": "r1", "mines": []int{1, 2, 3}, "balance": 900})
	})

	resp, err := client.StartMines(context.Background(), decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.RoundID)
	assert.Equal(t, []int{1, 2, 3}, resp.Mines)
	assert.Equal(t, "900", resp.Balance.String())
}

func TestBusinessRejection(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "insufficient funds"})
	})

	_, err := client.SpinRoulette(context.Background(), decimal.NewFromInt(500))
	assert.True(t, ledger.IsRejected(err))
	assert.EqualError(t, err, "insufficient funds")
}

func TestTransportFailure(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := client.SubmitRequest(context.Background(), models.RequestTypeDeposit, decimal.NewFromInt(10), models.CurrencyRUB)
	var terr *ledger.TransportError
	require.ErrorAs(t, err, &terr)
	assert.False(t, ledger.IsRejected(err))
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := ledger.NewClient(ledger.Endpoints{Wallet: srv.URL}, time.Second, func() (int64, string, bool) { return 1, "", true })
	_, err := client.Balance(context.Background())
	var terr *ledger.TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestPendingRequestsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"object": `{"error":"db down"}`,
		"null":   `null`,
		"junk":   `not json`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := client.PendingRequests(context.Background())
			assert.True(t, errors.Is(err, ledger.ErrMalformed), "got %v", err)
		})
	}
}

func TestPendingRequests(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 3, "full_name": "Ivan", "type": "deposit", "amount": 100, "currency": "RUB", "status": "pending", "created_at": "2026-10-19T10:00:00Z"},
		})
	})

	list, err := client.PendingRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, models.RequestTypeDeposit, list[0].Type)
}

func TestManageBalanceByName(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "manage_balance", body["action"])
		assert.Equal(t, "Ivan", body["full_name"])
		assert.NotContains(t, body, "user_id")
		assert.Equal(t, "USD", body["currency"])
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "balance": 15, "message": "done"})
	})

	resp, err := client.ManageBalance(context.Background(), models.StaffRequest{
		Amount:    decimal.NewFromInt(10),
		Operation: models.OperationAdd,
		Currency:  models.CurrencyUSD,
		FullName:  "Ivan",
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Message)
}

func TestExchange(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.WalletRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.WalletActionExchange, req.Action)
		assert.Equal(t, models.CurrencyRUB, req.FromCurrency)
		assert.Equal(t, models.CurrencyUSD, req.ToCurrency)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"balance": map[string]any{"balance_rub": 50, "balance_usd": 10},
			"message": "exchanged",
		})
	})

	b, msg, err := client.Exchange(context.Background(), decimal.NewFromInt(950), models.CurrencyRUB, models.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, "exchanged", msg)
	assert.Equal(t, "50", b.RUB.String())
	assert.Equal(t, "10", b.USD.String())
}
