package errors

import "errors"

var (
	// Configuration errors
	ErrConfiguration = errors.New("configuration error")

	// Client errors
	ErrConnection        = errors.New("connection failed")
	ErrAlertsUnavailable = errors.New("alerts client is not available")

	// Tagging errors
	ErrRuleCompilation = errors.New("tagging rule compilation failed")

	// Input errors
	ErrInvalidPair        = errors.New("expected KEY=VALUE")
	ErrUnknownMetricType  = errors.New("unknown metric type")
	ErrInvalidMetricValue = errors.New("invalid metric value")
)
