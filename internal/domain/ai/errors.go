package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrNoCredentials indicates no provider API key is configured. Analysis
// jobs fail outright on this rather than burning through their batches.
var ErrNoCredentials = errors.New("ai provider credentials not configured")
