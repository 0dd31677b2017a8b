package market

import "go.uber.org/zap"

// Log statuses. LogStatusError is used for hard failures that propagate
// to the caller; the Result vocabulary only carries success/fallback.
const (
	LogStatusError = "error"
)

// LogConversion emits the single structured record every conversion
// attempt must produce: marketplace, original and converted link,
// status, and error. Converted and err may be empty/nil.
func LogConversion(log *zap.Logger, marketplace, original, converted, status string, err error) {
	fields := []zap.Field{
		zap.String("marketplace", marketplace),
		zap.String("original_link", original),
		zap.String("converted_link", converted),
		zap.String("status", status),
	}
	if err != nil {
		fields = append(fields, zap.String("error", err.Error()))
	}

	switch status {
	case StatusSuccess:
		log.Info("conversion succeeded", fields...)
	case StatusFallback:
		log.Warn("conversion fell back to original link", fields...)
	default:
		log.Error("conversion failed", fields...)
	}
}
