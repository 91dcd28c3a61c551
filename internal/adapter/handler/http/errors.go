package http

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	appErrors "github.com/wekeepgrowing/semo-billing-webhooks/pkg/errors"
	"go.uber.org/zap"
)

// toAppError assigns an application code to a domain error.
func toAppError(err error, message string) *appErrors.AppError {
	var perr *provider.ProviderError
	switch {
	case errors.As(err, &perr) && perr.Code == provider.CodeTimeout,
		errors.Is(err, context.DeadlineExceeded):
		return appErrors.NewAppError(appErrors.ErrTimeout, message, err)
	case errors.Is(err, domainErrors.ErrUnknownProvider),
		errors.Is(err, domainErrors.ErrPurchaseNotFound),
		errors.Is(err, domainErrors.ErrLogNotFound),
		errors.Is(err, domainErrors.ErrDeliveryNotFound):
		return appErrors.NewAppError(appErrors.ErrNotFound, message, err)
	case errors.Is(err, domainErrors.ErrLookupUnsupported):
		return appErrors.NewAppError(appErrors.ErrNotImplemented, message, err)
	case errors.Is(err, domainErrors.ErrCredentialsMissing),
		errors.Is(err, domainErrors.ErrStorageUnavailable):
		return appErrors.NewAppError(appErrors.ErrUnavailable, message, err)
	case errors.Is(err, domainErrors.ErrDownstreamAuth):
		return appErrors.NewAppError(appErrors.ErrDownstreamFailure, message, err)
	case errors.Is(err, domainErrors.ErrEmptySearchTerm):
		return appErrors.NewAppError(appErrors.ErrInvalidArgument, message, err)
	}
	return appErrors.NewAppError(appErrors.ErrInternal, message, err)
}

// fail logs err and converts it for echo's error handler.
func fail(logger *zap.Logger, err error, message string, fields ...zap.Field) *echo.HTTPError {
	appErr := toAppError(err, message)
	appErrors.LogError(logger, appErr, message, fields...)
	return appErrors.ToHTTPError(appErr)
}

func badRequest(message string) *echo.HTTPError {
	return appErrors.ToHTTPError(appErrors.NewAppError(appErrors.ErrInvalidArgument, message, nil))
}
