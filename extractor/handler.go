package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/refval"
)

// DefaultValidity is the validity window applied when a submission does
// not carry an expiration parameter.
const DefaultValidity = 30 * 24 * time.Hour

// Handler coordinates sandboxed extraction: it resolves the extractor
// for a provenance type, runs it inside the submission's working
// directory, and turns the extracted digest into a reference value.
//
// The working-directory sandbox is process-global state, so Handler
// serializes extractor invocations behind an internal lock; no two
// extractions run concurrently in one process. A shared Handler is safe
// for concurrent use.
type Handler struct {
	registry   *Registry
	logger     *slog.Logger
	timeout    time.Duration
	validity   time.Duration
	defaultAlg digest.Algorithm

	// sandbox guards the process working directory across steps
	// chdir -> extract -> restore.
	sandbox sync.Mutex
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets a custom logger for the handler.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithTimeout bounds each extractor invocation. Extractors receive the
// deadline through their context; untrusted provenance must not block
// the pipeline forever. Zero disables the bound.
func WithTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.timeout = timeout
	}
}

// WithValidity sets the validity window used when the submission does
// not supply an expiration parameter.
func WithValidity(validity time.Duration) HandlerOption {
	return func(h *Handler) {
		h.validity = validity
	}
}

// WithDefaultAlgorithm sets the algorithm attributed to extracted
// digests that are not in OCI "alg:encoded" form. Defaults to
// digest.Canonical (sha256).
func WithDefaultAlgorithm(alg digest.Algorithm) HandlerOption {
	return func(h *Handler) {
		h.defaultAlg = alg
	}
}

// NewHandler returns a Handler dispatching through the given registry.
func NewHandler(registry *Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry:   registry,
		logger:     slog.New(slog.DiscardHandler),
		validity:   DefaultValidity,
		defaultAlg: digest.Canonical,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h
}

// HandleProvenance verifies the provenance document with the extractor
// registered for provenanceType and returns the resulting reference
// value.
//
// params must name the sandbox directory under [WorkingDirKey]; the
// check happens before any extractor code runs. Extractor failures
// propagate unchanged, so callers can test them with errors.Is against
// the sentinel kinds in this package.
//
// Whatever the outcome, the process working directory is restored to
// its value from immediately before the call. A verifier that fails
// partway never leaks its sandbox directory as ambient state.
func (h *Handler) HandleProvenance(ctx context.Context, provenanceType, artifactName string, provenance []byte, params map[string]string) (*refval.ReferenceValue, error) {
	instance, err := h.registry.Instance(provenanceType)
	if err != nil {
		return nil, err
	}

	workingDir, ok := params[WorkingDirKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingParameter, WorkingDirKey)
	}

	expiration, err := h.expiration(params)
	if err != nil {
		return nil, err
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	extracted, err := h.extractSandboxed(ctx, instance, workingDir, provenance, params)
	if err != nil {
		return nil, err
	}

	alg, value := h.splitDigest(extracted)
	rv := refval.New().
		SetName(artifactName).
		SetExpiration(expiration).
		AddHashValue(alg, value)
	if err := rv.Validate(); err != nil {
		return nil, err
	}

	h.logger.Debug("extracted reference value",
		slog.String("type", provenanceType),
		slog.String("name", artifactName),
		slog.String("alg", alg))
	return rv, nil
}

// extractSandboxed runs the extractor inside workingDir and restores
// the original working directory on every exit path. The original
// directory is recorded as an absolute path, so the restore holds even
// if the verifier itself changed directory again.
func (h *Handler) extractSandboxed(ctx context.Context, instance Extractor, workingDir string, provenance []byte, params map[string]string) (extracted string, err error) {
	h.sandbox.Lock()
	defer h.sandbox.Unlock()

	original, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("extractor: resolve working directory: %w", err)
	}
	if err := os.Chdir(workingDir); err != nil {
		return "", fmt.Errorf("extractor: enter sandbox %q: %w", workingDir, err)
	}
	defer func() {
		if restoreErr := os.Chdir(original); restoreErr != nil {
			// An unrestored working directory would corrupt every later
			// request in this process.
			h.logger.Error("failed to restore working directory",
				slog.String("dir", original),
				slog.Any("error", restoreErr))
			if err == nil {
				err = fmt.Errorf("extractor: restore working directory: %w", restoreErr)
			}
		}
	}()

	return instance.VerifyAndExtract(ctx, provenance, params)
}

// expiration resolves the record's expiration from the optional
// parameter, defaulting to now plus the configured validity window.
func (h *Handler) expiration(params map[string]string) (time.Time, error) {
	if s, ok := params[ExpirationKey]; ok {
		return refval.ParseExpiration(s)
	}
	return time.Now().Add(h.validity), nil
}

// splitDigest separates an extracted digest into algorithm and value.
// OCI-form digests keep their reported algorithm; anything else is
// attributed to the default algorithm.
func (h *Handler) splitDigest(extracted string) (alg, value string) {
	if d, err := digest.Parse(extracted); err == nil {
		return d.Algorithm().String(), d.Encoded()
	}
	return h.defaultAlg.String(), extracted
}
