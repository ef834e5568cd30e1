package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-wallet/cmd/httpserver"
	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/internal/middleware"
	"github.com/go-petr/pet-wallet/pkg/configpkg"
	"github.com/go-petr/pet-wallet/pkg/randompkg"
	"github.com/go-petr/pet-wallet/pkg/tokenpkg"
)

type client struct {
	t      *testing.T
	server *httpserver.Server
	maker  tokenpkg.Maker
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

func memoryConfig() configpkg.Config {
	return configpkg.Config{
		TokenSymmetricKey:   randompkg.String(32),
		TokenType:           configpkg.TokenPaseto,
		AccessTokenDuration: time.Minute,
		LedgerStore:         configpkg.StoreMemory,
		LockBackend:         configpkg.LockLocal,
		LockTimeout:         2 * time.Second,
		CommitAttempts:      3,
	}
}

func newClient(t *testing.T, config configpkg.Config) *client {
	t.Helper()

	server, err := httpserver.New(nil, zerolog.Nop(), config)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	maker, err := tokenpkg.New(config.TokenType, config.TokenSymmetricKey)
	require.NoError(t, err)

	return &client{t: t, server: server, maker: maker}
}

// do sends the request as owner. An empty owner sends no credentials.
func (c *client) do(method, path, owner string, body any) (int, envelope) {
	c.t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&payload).Encode(body))
	}

	req, err := http.NewRequest(method, path, &payload)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	if owner != "" {
		err := middleware.AddAuthorization(req, c.maker, middleware.AuthTypeBearer, owner, time.Minute)
		require.NoError(c.t, err)
	}

	recorder := httptest.NewRecorder()
	c.server.ServeHTTP(recorder, req)

	var res envelope
	require.NoError(c.t, json.Unmarshal(recorder.Body.Bytes(), &res), recorder.Body.String())

	return recorder.Code, res
}

func (c *client) decode(res envelope, v any) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal(res.Data, v), string(res.Data))
}

func (c *client) open(owner string) domain.Account {
	c.t.Helper()

	code, res := c.do(http.MethodPost, "/accounts", owner, nil)
	require.Equal(c.t, http.StatusCreated, code, res.Error)

	var data struct {
		Account domain.Account `json:"account"`
	}
	c.decode(res, &data)

	return data.Account
}

func TestWalletFlow(t *testing.T) {
	c := newClient(t, memoryConfig())

	alice := c.open("alice")
	bob := c.open("bob")
	require.Len(t, alice.WalletAddress, 26)
	require.NotEqual(t, alice.WalletAddress, bob.WalletAddress)

	code, res := c.do(http.MethodGet, "/accounts/wallets/"+bob.WalletAddress, "alice", nil)
	require.Equal(t, http.StatusOK, code, res.Error)

	var holder struct {
		Owner string `json:"owner"`
	}
	c.decode(res, &holder)
	require.Equal(t, "bob", holder.Owner)

	code, res = c.do(http.MethodPost, "/accounts", "alice", nil)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, domain.ErrAccountAlreadyExists.Error(), res.Error)

	code, res = c.do(http.MethodPost, "/transactions/fund-wallet", "alice", map[string]string{"amount": "1000"})
	require.Equal(t, http.StatusOK, code, res.Error)

	var funded domain.OperationResult
	c.decode(res, &funded)
	require.Equal(t, "1000.00", funded.Balance.String())
	require.Equal(t, domain.KindCredit, funded.Transaction.Kind)
	require.Equal(t, "0.00", funded.Transaction.Fee.String())

	transfer := map[string]string{"amount": "100", "recipient_wallet": bob.WalletAddress}
	code, res = c.do(http.MethodPost, "/transactions", "alice", transfer)
	require.Equal(t, http.StatusOK, code, res.Error)

	var sent domain.TransferResult
	c.decode(res, &sent)
	require.Equal(t, domain.StatusSuccess, sent.Status)
	require.Equal(t, "899.00", sent.Balance.String())
	require.Equal(t, "1.00", sent.Fee.String())
	require.Equal(t, "bob", sent.RecipientOwner)

	code, res = c.do(http.MethodGet, "/transactions/balance", "bob", nil)
	require.Equal(t, http.StatusOK, code, res.Error)

	var balance struct {
		WalletAddress string `json:"wallet_address"`
		Balance       string `json:"balance"`
	}
	c.decode(res, &balance)
	require.Equal(t, bob.WalletAddress, balance.WalletAddress)
	require.Equal(t, "100.00", balance.Balance)

	code, res = c.do(http.MethodGet, "/transactions?sort_by=created_at:asc", "alice", nil)
	require.Equal(t, http.StatusOK, code, res.Error)

	var page domain.HistoryPage
	c.decode(res, &page)
	require.EqualValues(t, 2, page.TotalTransactions)
	require.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Transactions, 2)
	require.Equal(t, domain.KindCredit, page.Transactions[0].Kind)
	require.Equal(t, domain.KindDebit, page.Transactions[1].Kind)

	debit := page.Transactions[1]
	require.True(t, debit.LinkID.Valid)

	code, res = c.do(http.MethodGet, "/transactions/summary/statistics", "alice", nil)
	require.Equal(t, http.StatusOK, code, res.Error)

	var stats domain.Stats
	c.decode(res, &stats)
	require.EqualValues(t, 2, stats.TotalTransactions)
	require.Equal(t, "1000.00", stats.TotalCredit.String())
	require.Equal(t, "100.00", stats.TotalDebit.String())
	require.Equal(t, "550.00", stats.AverageAmount.String())

	code, res = c.do(http.MethodGet, "/transactions?transaction_type=credit", "bob", nil)
	require.Equal(t, http.StatusOK, code, res.Error)
	c.decode(res, &page)
	require.Len(t, page.Transactions, 1)

	credit := page.Transactions[0]
	require.Equal(t, debit.LinkID, credit.LinkID)
	require.Equal(t, sent.TransactionID, debit.ID)

	code, res = c.do(http.MethodGet, "/transactions/"+credit.ID.String(), "bob", nil)
	require.Equal(t, http.StatusOK, code, res.Error)

	code, _ = c.do(http.MethodGet, "/transactions/"+credit.ID.String(), "alice", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestWalletErrors(t *testing.T) {
	c := newClient(t, memoryConfig())

	alice := c.open("alice")
	c.open("bob")

	testCases := []struct {
		name      string
		method    string
		path      string
		owner     string
		body      any
		wantCode  int
		wantError string
	}{
		{
			name:      "NoAuthorization",
			method:    http.MethodGet,
			path:      "/transactions/balance",
			wantCode:  http.StatusUnauthorized,
			wantError: middleware.ErrAuthHeaderNotFound.Error(),
		},
		{
			name:     "NoAccount",
			method:   http.MethodGet,
			path:     "/transactions/balance",
			owner:    "carol",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "InvalidAmount",
			method:   http.MethodPost,
			path:     "/transactions/fund-wallet",
			owner:    "alice",
			body:     map[string]string{"amount": "-5"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:      "InsufficientFunds",
			method:    http.MethodPost,
			path:      "/transactions/withdrawal",
			owner:     "alice",
			body:      map[string]string{"amount": "10"},
			wantCode:  http.StatusUnprocessableEntity,
			wantError: domain.ErrInsufficientFunds.Error(),
		},
		{
			name:      "SelfTransfer",
			method:    http.MethodPost,
			path:      "/transactions",
			owner:     "alice",
			body:      map[string]string{"amount": "10", "recipient_wallet": alice.WalletAddress},
			wantCode:  http.StatusUnprocessableEntity,
			wantError: domain.ErrSelfTransfer.Error(),
		},
		{
			name:      "RecipientNotFound",
			method:    http.MethodPost,
			path:      "/transactions",
			owner:     "alice",
			body:      map[string]string{"amount": "10", "recipient_wallet": "01ARZ3NDEKTSV4RRFFQ69G5FAV"},
			wantCode:  http.StatusNotFound,
			wantError: domain.ErrRecipientNotFound.Error(),
		},
		{
			name:     "UnknownSort",
			method:   http.MethodGet,
			path:     "/transactions?sort_by=owner",
			owner:    "alice",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "MalformedTransactionID",
			method:   http.MethodGet,
			path:     "/transactions/not-a-uuid",
			owner:    "alice",
			wantCode: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, res := c.do(tc.method, tc.path, tc.owner, tc.body)

			require.Equal(t, tc.wantCode, code, res.Error)
			require.NotEmpty(t, res.Error)

			if tc.wantError != "" {
				require.Equal(t, tc.wantError, res.Error)
			}
		})
	}
}

func TestRedisLocks(t *testing.T) {
	mr := miniredis.RunT(t)

	config := memoryConfig()
	config.LockBackend = configpkg.LockRedis
	config.RedisAddress = mr.Addr()
	config.LockExpiry = 5 * time.Second

	c := newClient(t, config)
	c.open("alice")

	code, res := c.do(http.MethodPost, "/transactions/fund-wallet", "alice", map[string]string{"amount": "25.50"})
	require.Equal(t, http.StatusOK, code, res.Error)

	code, res = c.do(http.MethodPost, "/transactions/withdrawal", "alice", map[string]string{"amount": "10"})
	require.Equal(t, http.StatusOK, code, res.Error)

	var withdrawn domain.OperationResult
	c.decode(res, &withdrawn)
	require.Equal(t, "15.40", withdrawn.Balance.String())
	require.Equal(t, "0.10", withdrawn.Transaction.Fee.String())
}

func TestNewErrors(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *configpkg.Config)
	}{
		{
			name:   "PostgresWithoutConnection",
			modify: func(c *configpkg.Config) { c.LedgerStore = configpkg.StorePostgres },
		},
		{
			name:   "UnknownStore",
			modify: func(c *configpkg.Config) { c.LedgerStore = "sqlite" },
		},
		{
			name:   "UnknownLockBackend",
			modify: func(c *configpkg.Config) { c.LockBackend = "zookeeper" },
		},
		{
			name:   "ShortTokenKey",
			modify: func(c *configpkg.Config) { c.TokenSymmetricKey = "short" },
		},
		{
			name:   "UnknownTokenType",
			modify: func(c *configpkg.Config) { c.TokenType = "macaroon" },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := memoryConfig()
			tc.modify(&config)

			server, err := httpserver.New(nil, zerolog.Nop(), config)
			require.Error(t, err)
			require.Nil(t, server)
		})
	}
}
