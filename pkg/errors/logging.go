package errors

import (
	"go.uber.org/zap"
)

// LogError writes err with its application code as a structured entry.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields, zap.Error(err), zap.String("error_code", CodeOf(err)))
	allFields = append(allFields, fields...)

	if ToHTTPStatus(CodeOf(err)) >= 500 {
		logger.Error(msg, allFields...)
		return
	}
	logger.Warn(msg, allFields...)
}
