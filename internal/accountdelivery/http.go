// Package accountdelivery manages delivery layer of accounts.
package accountdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/internal/middleware"
	"github.com/go-petr/pet-wallet/pkg/web"
)

// Service provides service layer interface needed by account delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package accountdelivery
type Service interface {
	Open(ctx context.Context, owner string) (domain.Account, error)
	GetByOwner(ctx context.Context, owner string) (domain.Account, error)
	GetByWallet(ctx context.Context, wallet string) (domain.Account, error)
}

// Handler facilitates account delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns account handler.
func NewHandler(as Service) Handler {
	return Handler{service: as}
}

type data struct {
	Account domain.Account `json:"account"`
}

// Create handles http request to open the caller's wallet account.
func (h *Handler) Create(gctx *gin.Context) {
	account, err := h.service.Open(gctx.Request.Context(), middleware.Actor(gctx))
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: data{account}})
}

// Get handles http request to get the caller's account.
func (h *Handler) Get(gctx *gin.Context) {
	account, err := h.service.GetByOwner(gctx.Request.Context(), middleware.Actor(gctx))
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: data{account}})
}

type lookupRequest struct {
	Wallet string `uri:"wallet" binding:"required,len=26,alphanum"`
}

type walletHolder struct {
	Owner         string `json:"owner"`
	WalletAddress string `json:"wallet_address"`
}

// Lookup handles http request to resolve a wallet address to its holder,
// e.g. to confirm a transfer recipient. The balance is not disclosed.
func (h *Handler) Lookup(gctx *gin.Context) {
	var req lookupRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		middleware.RespondBindError(gctx, err)
		return
	}

	account, err := h.service.GetByWallet(gctx.Request.Context(), req.Wallet)
	if err != nil {
		middleware.RespondError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: walletHolder{
		Owner:         account.Owner,
		WalletAddress: account.WalletAddress,
	}})
}
