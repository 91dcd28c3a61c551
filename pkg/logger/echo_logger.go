package logger

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"
)

// maskedHeaders are logged only as a short prefix.
var maskedHeaders = map[string]bool{
	"Authorization":       true,
	"Stripe-Signature":    true,
	"X-Hotmart-Signature": true,
	"X-Hotmart-Hottok":    true,
	"X-Signature":         true,
}

// NewEchoRequestLogger returns a request logging middleware that writes one
// zap entry per request. /health and /metrics are skipped.
func NewEchoRequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		HandleError: true,

		LogLatency:       true,
		LogRemoteIP:      true,
		LogMethod:        true,
		LogURI:           true,
		LogRoutePath:     true,
		LogRequestID:     true,
		LogUserAgent:     true,
		LogStatus:        true,
		LogError:         true,
		LogContentLength: true,
		LogResponseSize:  true,
		LogHeaders: []string{
			"Content-Type",
			"Authorization",
			"Stripe-Signature",
			"X-Hotmart-Signature",
			"X-Signature",
			"X-Relay-Delivery-Id",
		},

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request.remote_ip", v.RemoteIP),
				zap.String("request.method", v.Method),
				zap.String("request.uri", v.URI),
				zap.String("request.route", v.RoutePath),
				zap.String("request.user_agent", v.UserAgent),
				zap.String("request.request_id", v.RequestID),
				zap.String("request.content_length", v.ContentLength),
				zap.Int("response.status", v.Status),
				zap.Duration("response.latency", v.Latency),
				zap.Int64("response.response_size", v.ResponseSize),
			}

			if len(v.Headers) > 0 {
				headers := make(map[string]string, len(v.Headers))
				for k, values := range v.Headers {
					if len(values) == 0 {
						continue
					}
					headers[k] = maskHeader(k, values[0])
				}
				fields = append(fields, zap.Any("request.headers", headers))
			}

			switch {
			case v.Error != nil:
				fields = append(fields, zap.Error(v.Error))
				logger.Error("Request failed", fields...)
			case v.Status >= 500:
				logger.Error("Server error", fields...)
			case v.Status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Info("Request completed", fields...)
			}
			return nil
		},
	})
}

func maskHeader(name, value string) string {
	if !maskedHeaders[http.CanonicalHeaderKey(name)] {
		return value
	}
	if len(value) > 15 {
		return value[:10] + "..." + value[len(value)-5:]
	}
	return "[MASKED]"
}

// WithEchoLogger installs the zap backed echo.Logger and a JSON error handler.
func WithEchoLogger(e *echo.Echo, logger *zap.Logger) {
	e.Logger = NewEchoZapLogger(logger)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		}

		if code >= 500 {
			logger.Error("HTTP error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("ip", c.RealIP()),
			)
		}

		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]interface{}{"error": message})
		}
		if err != nil {
			logger.Error("Failed to send error response", zap.Error(err))
		}
	}
}

// EchoZapLogger implements echo.Logger on top of zap. Level and output
// setters are no-ops; zap's own configuration wins.
type EchoZapLogger struct {
	Logger *zap.Logger
	prefix string
}

func NewEchoZapLogger(logger *zap.Logger) *EchoZapLogger {
	return &EchoZapLogger{Logger: logger.Named("echo")}
}

func (l *EchoZapLogger) Output() io.Writer {
	return &zapWriter{logger: l.Logger}
}

func (l *EchoZapLogger) SetOutput(w io.Writer) {}

func (l *EchoZapLogger) Level() log.Lvl {
	switch {
	case l.Logger.Core().Enabled(zap.DebugLevel):
		return log.DEBUG
	case l.Logger.Core().Enabled(zap.InfoLevel):
		return log.INFO
	case l.Logger.Core().Enabled(zap.WarnLevel):
		return log.WARN
	default:
		return log.ERROR
	}
}

func (l *EchoZapLogger) SetLevel(v log.Lvl) {}

func (l *EchoZapLogger) SetHeader(h string) {}

func (l *EchoZapLogger) Prefix() string {
	return l.prefix
}

func (l *EchoZapLogger) SetPrefix(p string) {
	l.prefix = p
}

func (l *EchoZapLogger) Print(i ...interface{}) {
	l.Logger.Sugar().Info(i...)
}

func (l *EchoZapLogger) Printf(format string, i ...interface{}) {
	l.Logger.Sugar().Infof(format, i...)
}

func (l *EchoZapLogger) Printj(j log.JSON) {
	l.Logger.Info("json_message", zap.Any("json", j))
}

func (l *EchoZapLogger) Debug(i ...interface{}) {
	l.Logger.Sugar().Debug(i...)
}

func (l *EchoZapLogger) Debugf(format string, i ...interface{}) {
	l.Logger.Sugar().Debugf(format, i...)
}

func (l *EchoZapLogger) Debugj(j log.JSON) {
	l.Logger.Debug("json_message", zap.Any("json", j))
}

func (l *EchoZapLogger) Info(i ...interface{}) {
	l.Logger.Sugar().Info(i...)
}

func (l *EchoZapLogger) Infof(format string, i ...interface{}) {
	l.Logger.Sugar().Infof(format, i...)
}

func (l *EchoZapLogger) Infoj(j log.JSON) {
	l.Logger.Info("json_message", zap.Any("json", j))
}

func (l *EchoZapLogger) Warn(i ...interface{}) {
	l.Logger.Sugar().Warn(i...)
}

func (l *EchoZapLogger) Warnf(format string, i ...interface{}) {
	l.Logger.Sugar().Warnf(format, i...)
}

func (l *EchoZapLogger) Warnj(j log.JSON) {
	l.Logger.Warn("json_message", zap.Any("json", j))
}

func (l *EchoZapLogger) Error(i ...interface{}) {
	l.Logger.Sugar().Error(i...)
}

func (l *EchoZapLogger) Errorf(format string, i ...interface{}) {
	l.Logger.Sugar().Errorf(format, i...)
}

func (l *EchoZapLogger) Errorj(j log.JSON) {
	l.Logger.Error("json_message", zap.Any("json", j))
}

func (l *EchoZapLogger) Fatal(i ...interface{}) {
	l.Logger.Sugar().Fatal(i...)
}

func (l *EchoZapLogger) Fatalf(format string, i ...interface{}) {
	l.Logger.Sugar().Fatalf(format, i...)
}

func (l *EchoZapLogger) Fatalj(j log.JSON) {
	l.Logger.Fatal("json_message", zap.Any("json", j))
}

func (l *EchoZapLogger) Panic(i ...interface{}) {
	l.Logger.Sugar().Panic(i...)
}

func (l *EchoZapLogger) Panicf(format string, i ...interface{}) {
	l.Logger.Sugar().Panicf(format, i...)
}

func (l *EchoZapLogger) Panicj(j log.JSON) {
	l.Logger.Panic("json_message", zap.Any("json", j))
}

type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
