package models

import "errors"

// Error taxonomy for the intelligence core. Everything except configuration
// errors is non-fatal: normalization and classification failures degrade the
// affected game, quote, or candidate and the cycle proceeds.
var (
	// ErrMalformedPayload marks provider data that cannot be parsed. A malformed
	// game inside a payload is dropped; only a fully unparsable payload surfaces
	// this error to the caller.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrStaleQuote marks a quote older than the stored latest for its key.
	// Rejected silently by the store, never an error to the ingestion path.
	ErrStaleQuote = errors.New("stale quote")

	// ErrInvalidMarketTransition marks a line change arriving under an existing
	// series key. Logged as a defect; the original history is untouched.
	ErrInvalidMarketTransition = errors.New("invalid market transition")

	// ErrArithmeticDefect marks a computed stake outside [0,1] or a probability
	// outside (0,1). The derived opportunity is discarded, never surfaced.
	ErrArithmeticDefect = errors.New("arithmetic defect")

	// ErrProviderTimeout and ErrProviderUnavailable degrade one provider's
	// contribution to a cycle without failing the cycle.
	ErrProviderTimeout     = errors.New("provider timeout")
	ErrProviderUnavailable = errors.New("provider unavailable")
)
