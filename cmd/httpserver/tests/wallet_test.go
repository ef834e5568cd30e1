//go:build integration

package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/internal/integrationtest"
	"github.com/go-petr/pet-wallet/internal/middleware"
	"github.com/go-petr/pet-wallet/pkg/randompkg"
	"github.com/go-petr/pet-wallet/pkg/web"
)

func call(t *testing.T, method, path, owner string, body, data any) (int, web.Response) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req, err := http.NewRequest(method, path, &payload)
	require.NoError(t, err)
	require.NoError(t, middleware.AddAuthorization(req, tokenMaker, middleware.AuthTypeBearer, owner, time.Minute))

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	res := web.Response{Data: data}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &res), recorder.Body.String())

	return recorder.Code, res
}

// transfer is safe to call from any goroutine. It returns 0 when the request
// cannot be built.
func transfer(owner, wallet, amount string) int {
	body, err := json.Marshal(map[string]string{"amount": amount, "recipient_wallet": wallet})
	if err != nil {
		return 0
	}

	req, err := http.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(body))
	if err != nil {
		return 0
	}

	if err := middleware.AddAuthorization(req, tokenMaker, middleware.AuthTypeBearer, owner, time.Minute); err != nil {
		return 0
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	return recorder.Code
}

func openFunded(t *testing.T, amount string) (string, domain.Account) {
	t.Helper()

	owner := randompkg.Owner()

	var created struct {
		Account domain.Account `json:"account"`
	}

	code, res := call(t, http.MethodPost, "/accounts", owner, nil, &created)
	require.Equal(t, http.StatusCreated, code, res.Error)

	code, res = call(t, http.MethodPost, "/transactions/fund-wallet", owner, map[string]string{"amount": amount}, nil)
	require.Equal(t, http.StatusOK, code, res.Error)

	return owner, created.Account
}

func balanceOf(t *testing.T, owner string) string {
	t.Helper()

	var data struct {
		Balance string `json:"balance"`
	}

	code, res := call(t, http.MethodGet, "/transactions/balance", owner, nil, &data)
	require.Equal(t, http.StatusOK, code, res.Error)

	return data.Balance
}

func TestTransferAPI(t *testing.T) {
	t.Cleanup(func() { integrationtest.Flush(t, server.DB) })

	sender, _ := openFunded(t, "1000")
	recipient, recipientAccount := openFunded(t, "1")

	var result domain.TransferResult

	body := map[string]string{"amount": "100", "recipient_wallet": recipientAccount.WalletAddress}
	code, res := call(t, http.MethodPost, "/transactions", sender, body, &result)
	require.Equal(t, http.StatusOK, code, res.Error)
	require.Equal(t, "899.00", result.Balance.String())

	require.Equal(t, "899.00", balanceOf(t, sender))
	require.Equal(t, "101.00", balanceOf(t, recipient))

	var got domain.Transaction

	code, res = call(t, http.MethodGet, "/transactions/"+result.TransactionID.String(), sender, nil, &got)
	require.Equal(t, http.StatusOK, code, res.Error)
	require.Equal(t, domain.KindDebit, got.Kind)
	require.Equal(t, "1000.00", got.BalanceBefore.String())

	var page domain.HistoryPage

	code, res = call(t, http.MethodGet, "/transactions?limit=1&sort_by=amount:desc", sender, nil, &page)
	require.Equal(t, http.StatusOK, code, res.Error)
	require.EqualValues(t, 2, page.TotalTransactions)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Transactions, 1)
	require.Equal(t, "1000.00", page.Transactions[0].Amount.String())

	code, res = call(t, http.MethodPost, "/transactions/withdrawal", recipient, map[string]string{"amount": "101"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, domain.ErrInsufficientFunds.Error(), res.Error)
}

func TestConcurrentTransfersAPI(t *testing.T) {
	t.Cleanup(func() { integrationtest.Flush(t, server.DB) })

	a, accountA := openFunded(t, "500")
	b, accountB := openFunded(t, "500")

	const n = 10

	var wg sync.WaitGroup

	codes := make(chan int, 2*n)

	for i := 0; i < n; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			codes <- transfer(a, accountB.WalletAddress, "10")
		}()

		go func() {
			defer wg.Done()

			codes <- transfer(b, accountA.WalletAddress, "10")
		}()
	}

	wg.Wait()
	close(codes)

	for code := range codes {
		require.Equal(t, http.StatusOK, code)
	}

	// Each side moved 10 transfers of 10 out and in and paid 10 fees of 0.10.
	require.Equal(t, "499.00", balanceOf(t, a))
	require.Equal(t, "499.00", balanceOf(t, b))
}
