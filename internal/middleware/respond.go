package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-wallet/internal/domain"
	"github.com/go-petr/pet-wallet/pkg/errorspkg"
	"github.com/go-petr/pet-wallet/pkg/web"
)

// HeaderRetryable is set on responses whose request may be retried as a whole.
const HeaderRetryable = "X-Retryable"

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:        http.StatusBadRequest,
	domain.KindInsufficientFunds: http.StatusUnprocessableEntity,
	domain.KindSelfTransfer:      http.StatusUnprocessableEntity,
	domain.KindRecipientNotFound: http.StatusNotFound,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindAlreadyExists:     http.StatusConflict,
	domain.KindConflict:          http.StatusServiceUnavailable,
	domain.KindLockTimeout:       http.StatusServiceUnavailable,
	domain.KindTransferAborted:   http.StatusServiceUnavailable,
}

// StatusOf returns the http status reported for err.
func StatusOf(err error) int {
	if status, ok := kindStatus[domain.KindOf(err)]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// RespondError writes err with its status and machine readable kind.
// Internal errors never leak their message.
func RespondError(gctx *gin.Context, err error) {
	l := zerolog.Ctx(gctx.Request.Context())
	kind := domain.KindOf(err)
	status := StatusOf(err)

	if status == http.StatusInternalServerError {
		l.Error().Err(err).Send()
		gctx.JSON(status, web.ErrorWithCode(errorspkg.ErrInternal, string(kind)))

		return
	}

	if domain.IsRetryable(err) {
		gctx.Header(HeaderRetryable, "true")
	}

	l.Info().Err(err).Str("kind", string(kind)).Send()
	gctx.JSON(status, web.ErrorWithCode(err, string(kind)))
}

// RespondBindError writes a 400 for a request that failed binding or validation.
func RespondBindError(gctx *gin.Context, err error) {
	var (
		ve     validator.ValidationErrors
		errMsg = "invalid request"
	)

	if errors.As(err, &ve) {
		field := ve[0]
		errMsg = field.Field() + web.GetErrorMsg(field)
	}

	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()
	gctx.JSON(http.StatusBadRequest, web.Response{Error: errMsg, Code: string(domain.KindValidation)})
}
