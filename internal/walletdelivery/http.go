// Package walletdelivery manages delivery layer of wallet transactions.
package walletdelivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/internal/middleware"
	"github.com/go-petr/pet-wallet/pkg/moneypkg"
	"github.com/go-petr/pet-wallet/pkg/web"
)

// Service provides service layer interface needed by wallet delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package walletdelivery
type Service interface {
	Fund(ctx context.Context, accountID int64, amount moneypkg.Money) (domain.OperationResult, error)
	Withdraw(ctx context.Context, accountID int64, amount moneypkg.Money) (domain.OperationResult, error)
	Transfer(ctx context.Context, senderID int64, recipientWallet string, amount moneypkg.Money) (domain.TransferResult, error)
	Balance(ctx context.Context, accountID int64) (moneypkg.Money, error)
	Transaction(ctx context.Context, id string) (domain.Transaction, error)
	Stats(ctx context.Context, accountID int64) (domain.Stats, error)
	History(ctx context.Context, accountID int64, params domain.HistoryParams) (domain.HistoryPage, error)
}

// AccountService resolves the authenticated owner to an account.
type AccountService interface {
	GetByOwner(ctx context.Context, owner string) (domain.Account, error)
}

// Handler facilitates wallet delivery layer logic.
type Handler struct {
	service  Service
	accounts AccountService
}

// NewHandler returns wallet handler.
func NewHandler(ws Service, as AccountService) Handler {
	return Handler{service: ws, accounts: as}
}

// Routes mounts every wallet route on rg.
func (h *Handler) Routes(rg *gin.RouterGroup) {
	rg.POST("/fund-wallet", h.Fund)
	rg.POST("/withdrawal", h.Withdraw)
	rg.POST("", h.Transfer)
	rg.GET("", h.History)
	rg.GET("/balance", h.Balance)
	rg.GET("/summary/statistics", h.Stats)
	rg.GET("/summary/credited", h.Credited)
	rg.GET("/summary/debited", h.Debited)
	rg.GET("/:id", h.Get)
}

// account resolves the caller. It writes the error response when it fails.
func (h *Handler) account(gctx *gin.Context) (domain.Account, bool) {
	account, err := h.accounts.GetByOwner(gctx.Request.Context(), middleware.Actor(gctx))
	if err != nil {
		middleware.RespondError(gctx, err)
		return account, false
	}

	return account, true
}

type amountRequest struct {
	Amount moneypkg.Money `json:"amount" binding:"required,money"`
}

// Fund handles http request to fund the caller's wallet.
func (h *Handler) Fund(gctx *gin.Context) {
	h.operation(gctx, h.service.Fund)
}

// Withdraw handles http request to withdraw from the caller's wallet.
func (h *Handler) Withdraw(gctx *gin.Context) {
	h.operation(gctx, h.service.Withdraw)
}

type operationFunc func(ctx context.Context, accountID int64, amount moneypkg.Money) (domain.OperationResult, error)

func (h *Handler) operation(gctx *gin.Context, op operationFunc) {
	var req amountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindError(gctx, err)
		return
	}

	account, ok := h.account(gctx)
	if !ok {
		return
	}

	res, err := op(gctx.Request.Context(), account.ID, req.Amount)
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: res})
}

type transferRequest struct {
	Amount          moneypkg.Money `json:"amount" binding:"required,money"`
	RecipientWallet string         `json:"recipient_wallet" binding:"required,len=26,alphanum"`
}

// Transfer handles http request to send money to another wallet.
func (h *Handler) Transfer(gctx *gin.Context) {
	var req transferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindError(gctx, err)
		return
	}

	account, ok := h.account(gctx)
	if !ok {
		return
	}

	res, err := h.service.Transfer(gctx.Request.Context(), account.ID, req.RecipientWallet, req.Amount)
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: res})
}

type balanceData struct {
	WalletAddress string         `json:"wallet_address"`
	Balance       moneypkg.Money `json:"balance"`
}

// Balance handles http request to view the caller's balance.
func (h *Handler) Balance(gctx *gin.Context) {
	account, ok := h.account(gctx)
	if !ok {
		return
	}

	balance, err := h.service.Balance(gctx.Request.Context(), account.ID)
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: balanceData{
		WalletAddress: account.WalletAddress,
		Balance:       balance,
	}})
}

type getRequest struct {
	ID string `uri:"id" binding:"required"`
}

// Get handles http request to get one of the caller's transactions.
func (h *Handler) Get(gctx *gin.Context) {
	var req getRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		middleware.RespondBindError(gctx, err)
		return
	}

	account, ok := h.account(gctx)
	if !ok {
		return
	}

	t, err := h.service.Transaction(gctx.Request.Context(), req.ID)
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	if t.AccountID != account.ID {
		zerolog.Ctx(gctx.Request.Context()).Warn().
			Str("transaction_id", req.ID).
			Int64("account_id", account.ID).
			Msg("transaction of another account requested")
		middleware.RespondError(gctx, domain.ErrTransactionNotFound)

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: t})
}

type historyRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	Limit         int    `form:"limit" binding:"omitempty,min=1"`
	Kind          string `form:"transaction_type" binding:"omitempty,oneof=credit debit"`
	Status        string `form:"transaction_status" binding:"omitempty,oneof=pending success failed"`
	Wallet        string `form:"wallet"`
	TransactionID string `form:"transaction_id"`
	StartDate     string `form:"start_date"`
	EndDate       string `form:"end_date"`
	SortBy        string `form:"sort_by"`
}

// History handles http request to list the caller's transactions.
func (h *Handler) History(gctx *gin.Context) {
	var req historyRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		middleware.RespondBindError(gctx, err)
		return
	}

	params := domain.HistoryParams{
		Page:          req.Page,
		Size:          req.Limit,
		Kind:          req.Kind,
		Status:        req.Status,
		Wallet:        req.Wallet,
		TransactionID: req.TransactionID,
		SortBy:        req.SortBy,
	}

	var err error

	if params.StartDate, err = parseDate(req.StartDate, false); err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	if params.EndDate, err = parseDate(req.EndDate, true); err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	account, ok := h.account(gctx)
	if !ok {
		return
	}

	page, err := h.service.History(gctx.Request.Context(), account.ID, params)
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: page})
}

// Stats handles http request to summarize the caller's transactions.
func (h *Handler) Stats(gctx *gin.Context) {
	h.stats(gctx, func(s domain.Stats) any { return s })
}

type creditedData struct {
	TotalCredit moneypkg.Money `json:"total_credit"`
}

// Credited handles http request to sum the caller's credits.
func (h *Handler) Credited(gctx *gin.Context) {
	h.stats(gctx, func(s domain.Stats) any { return creditedData{TotalCredit: s.TotalCredit} })
}

type debitedData struct {
	TotalDebit moneypkg.Money `json:"total_debit"`
}

// Debited handles http request to sum the caller's debits.
func (h *Handler) Debited(gctx *gin.Context) {
	h.stats(gctx, func(s domain.Stats) any { return debitedData{TotalDebit: s.TotalDebit} })
}

func (h *Handler) stats(gctx *gin.Context, view func(domain.Stats) any) {
	account, ok := h.account(gctx)
	if !ok {
		return
	}

	stats, err := h.service.Stats(gctx.Request.Context(), account.ID)
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: view(stats)})
}

const dateLayout = "2006-01-02"

// parseDate accepts RFC 3339 timestamps and plain dates. A plain end date
// covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}

	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", domain.ErrInvalidFilter, raw)
	}

	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}

	return &t, nil
}
