// Package extractor implements the provenance extraction pipeline: a
// pluggable verifier registry with instance-on-demand construction, and
// a coordinator that runs a chosen verifier inside an isolated
// working-directory sandbox and turns its output into a reference
// value.
//
// One [Extractor] exists per provenance format. Formats are compiled
// in; a process registers the factories it enables at startup:
//
//	reg := extractor.NewRegistry()
//	reg.Register(intoto.TypeName, func() extractor.Extractor { return intoto.New() })
//
//	h := extractor.NewHandler(reg, extractor.WithTimeout(30*time.Second))
//	rv, err := h.HandleProvenance(ctx, "in-toto", "myapp.tar.gz", doc, params)
package extractor

import "context"

// WorkingDirKey is the universal parameter naming the sandbox directory
// every extractor runs in. The coordinator requires it before any
// extractor code executes.
const WorkingDirKey = "working_dir"

// ExpirationKey is the optional parameter carrying a caller-supplied
// expiration in the reference value wire layout.
const ExpirationKey = "expiration"

// Extractor verifies one provenance format and extracts the artifact
// digest it attests to.
type Extractor interface {
	// VerifyAndExtract checks the provenance document and returns the
	// extracted digest on success. The digest may be in OCI
	// "alg:encoded" form, in which case the coordinator preserves the
	// reported algorithm; a bare value is attributed to the
	// coordinator's default algorithm.
	//
	// provenance is the raw or encoded document; it may be empty when
	// the verifier instead reads files named by params. params carries
	// format-specific out-of-band inputs, validated by the extractor
	// itself. Relative paths in params resolve against the sandbox
	// working directory.
	//
	// Failures: [ErrMissingParameter] when a required key is absent,
	// [ErrVerificationFailed] when the document is rejected, and
	// [ErrNotImplemented] when a verified format has no extraction
	// logic yet (a valid terminal state, not a bug).
	//
	// Implementations may read files relative to the process's current
	// working directory. They are not responsible for restoring
	// process-global state; the coordinator owns the sandbox.
	VerifyAndExtract(ctx context.Context, provenance []byte, params map[string]string) (string, error)
}

// Factory constructs an extractor for one provenance format. Factories
// are pure constructors: the registry invokes each at most once per
// type name and reuses the instance, so formats whose verifiers hold
// expensive state (key material, parsed schemas) pay the cost once.
type Factory func() Extractor
