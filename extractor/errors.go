package extractor

import "errors"

// Sentinel errors for the extraction pipeline. All of them surface to
// the caller unmodified; none are retried internally, since repeated
// verification of the same unverifiable provenance will not succeed.
var (
	// ErrMissingParameter is returned when a required parameter key is
	// absent. Wrapped with the missing key.
	ErrMissingParameter = errors.New("extractor: missing parameter")

	// ErrUnsupportedType is returned when no factory is registered for
	// a provenance type. Wrapped with the type name.
	ErrUnsupportedType = errors.New("extractor: unsupported provenance type")

	// ErrVerificationFailed is returned when the cryptographic or
	// structural check rejects the provenance. Wrapped with the reason.
	ErrVerificationFailed = errors.New("extractor: provenance verification failed")

	// ErrNotImplemented is returned when extraction logic for an
	// otherwise-verified provenance format does not exist yet.
	ErrNotImplemented = errors.New("extractor: digest extraction not implemented")
)
