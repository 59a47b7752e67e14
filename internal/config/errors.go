package config

import "errors"

// Errors returned by Load, Validate and the garage file readers. Callers
// match them with errors.Is; the wrapped cause carries the detail.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
	ErrInvalidGarage = errors.New("invalid garage file")
)
