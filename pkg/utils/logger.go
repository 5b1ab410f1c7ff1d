package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger. In debug mode it is a development logger
// (console-encoded, debug level); otherwise a production logger (JSON-encoded,
// info level). Security-sensitive call sites must never pass raw query text or
// raw identifiers to it directly — callers hash or mask first.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
