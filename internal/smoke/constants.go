package smoke

import "time"

// Defaults used by the CLI.
const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultWorkers = 4
	DefaultTimeout = 10 * time.Second
)

// RunIDHeader tags every request of a run so server logs can be correlated.
const RunIDHeader = "X-Request-ID"
