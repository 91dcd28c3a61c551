package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func ToHTTPStatus(code string) int {
	httpStatus, _ := GetCodeMapping(code)
	return httpStatus
}

// ToHTTPError converts err into an echo HTTP error. Internal errors hide
// their cause from the response body.
func ToHTTPError(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if As(err, &appErr) {
		httpStatus := ToHTTPStatus(appErr.Code())
		if httpStatus >= 500 && appErr.Code() == ErrInternal {
			return echo.NewHTTPError(httpStatus, appErr.Message()).SetInternal(err)
		}
		return echo.NewHTTPError(httpStatus, appErr.Error()).SetInternal(err)
	}

	var echoErr *echo.HTTPError
	if As(err, &echoErr) {
		return echoErr
	}

	return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)).SetInternal(err)
}
