package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/compiler"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/provider"
)

// Error codes returned in ErrorResponse.Code.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeValidation   = "validation_failed"
	ErrCodeSyntax       = "syntax_error"
	ErrCodeLowering     = "lowering_error"
	ErrCodeUpstream     = "upstream_unavailable"
	ErrCodeNotFound     = "not_found"
	ErrCodeDisabled     = "not_configured"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp ErrorResponse

	switch kind := compiler.KindOf(err); {
	case kind == compiler.KindValidation:
		statusCode = http.StatusUnprocessableEntity
		errResp = ErrorResponse{Code: ErrCodeValidation, Message: err.Error()}
	case kind == compiler.KindSyntax:
		statusCode = http.StatusUnprocessableEntity
		errResp = ErrorResponse{Code: ErrCodeSyntax, Message: err.Error()}
	case kind == compiler.KindLowering:
		statusCode = http.StatusUnprocessableEntity
		errResp = ErrorResponse{Code: ErrCodeLowering, Message: err.Error()}
	case kind == compiler.KindNetwork,
		errors.Is(err, ledger.ErrUnavailable),
		errors.Is(err, provider.ErrProviderFailed):
		statusCode = http.StatusBadGateway
		errResp = ErrorResponse{Code: ErrCodeUpstream, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, ledger.ErrBadRequest):
		statusCode = http.StatusBadRequest
		errResp = ErrorResponse{Code: ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = ErrorResponse{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrStoreDisabled), errors.Is(err, provider.ErrNotConfigured):
		statusCode = http.StatusServiceUnavailable
		errResp = ErrorResponse{Code: ErrCodeDisabled, Message: err.Error()}
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		errResp = ErrorResponse{Code: ErrCodeUnauthorized, Message: err.Error()}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = ErrorResponse{Code: ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
