package agent

import "errors"

// ErrNetwork wraps any transport-level failure (connection refused, host
// unreachable, reset, or an otherwise unclassified socket error) so the
// Query Engine can treat it uniformly as a retryable server failure.
var ErrNetwork = errors.New("agent: network error")
