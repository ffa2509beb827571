package errors

import "strings"

// ClassifyAuthFailure maps a raw JWT validation failure message to the
// Unauthenticated SchedulerError, preserving the underlying reason in
// Details for logging without leaking it to the caller as a distinct code
// (spec section 7: validation failures are not retried and all collapse to
// Unauthenticated).
func ClassifyAuthFailure(reason string) *SchedulerError {
	return Unauthenticated(reason)
}

// IsExpiredTokenReason reports whether a JWT library's error text indicates
// the token's exp claim has passed, distinct from a signature or issuer
// mismatch. Used only for logging/metrics labeling, never for control flow.
func IsExpiredTokenReason(reason string) bool {
	lower := strings.ToLower(reason)
	return strings.Contains(lower, "expired") || strings.Contains(lower, "exp claim")
}
