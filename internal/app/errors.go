package app

import (
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/labstack/echo/v4"
)

// errorHandler is the terminal error translator for the server. Client errors
// are reported with their message; server errors are logged and reported
// with a generic message so internal details never reach the client.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		httpErr := toHTTPError(err)
		message := httpErr.Message
		if httpErr.Code >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				slog.String("method", c.Request().Method),
				slog.String("uri", c.Request().RequestURI),
				slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				slog.Int("status", httpErr.Code),
				slog.Any("error", err),
			)
			message = http.StatusText(httpErr.Code)
		}

		var respErr error
		if c.Request().Method == http.MethodHead {
			respErr = c.NoContent(httpErr.Code)
		} else {
			respErr = c.JSON(httpErr.Code, map[string]any{"message": message})
		}
		if respErr != nil {
			logger.ErrorContext(c.Request().Context(), "failed to write error response", slog.Any("error", respErr))
		}
	}
}

// toHTTPError converts an error to an Echo HTTPError with the appropriate
// HTTP status code. ConnectRPC errors are mapped to their corresponding HTTP
// status codes; any other error is an internal server error.
func toHTTPError(err error) *echo.HTTPError {
	// Already an HTTP error - pass through
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	// Map ConnectRPC codes to HTTP status codes
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return echo.NewHTTPError(connectCodeToHTTPStatus(connectErr.Code()), connectErr.Message()).SetInternal(err)
	}

	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

// connectCodeToHTTPStatus maps ConnectRPC error codes to HTTP status codes.
// See: https://connectrpc.com/docs/protocol/#error-codes
func connectCodeToHTTPStatus(code connect.Code) int {
	switch code {
	case connect.CodeInvalidArgument, connect.CodeFailedPrecondition, connect.CodeOutOfRange:
		return http.StatusBadRequest // 400
	case connect.CodeUnauthenticated:
		return http.StatusUnauthorized // 401
	case connect.CodePermissionDenied:
		return http.StatusForbidden // 403
	case connect.CodeNotFound:
		return http.StatusNotFound // 404
	case connect.CodeCanceled:
		return http.StatusRequestTimeout // 408
	case connect.CodeAlreadyExists, connect.CodeAborted:
		return http.StatusConflict // 409
	case connect.CodeResourceExhausted:
		return http.StatusTooManyRequests // 429
	case connect.CodeUnimplemented:
		return http.StatusNotImplemented // 501
	case connect.CodeUnavailable:
		return http.StatusServiceUnavailable // 503
	case connect.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout // 504
	case connect.CodeInternal, connect.CodeDataLoss, connect.CodeUnknown:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}
