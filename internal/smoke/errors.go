package smoke

import "errors"

// Sentinel kinds for smoke run errors.
var (
	ErrUnhealthy       = errors.New("service health check failed")
	ErrScenariosFailed = errors.New("smoke scenarios failed")
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrUnexpected      = errors.New("unexpected response")
)
