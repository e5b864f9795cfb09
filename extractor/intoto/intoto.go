// Package intoto implements the in-toto provenance extractor.
//
// The extractor verifies a DSSE-enveloped in-toto layout against the
// submitter's public keys. Digest extraction for verified layouts is
// deliberately unimplemented: verification succeeding and extraction
// failing with [extractor.ErrNotImplemented] is a valid terminal state
// for this format, not a bug.
package intoto

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/secure-systems-lab/go-securesystemslib/dsse"

	"github.com/meigma/refval/extractor"
	"github.com/meigma/refval/internal/dssekey"
)

// TypeName is the provenance-type name this extractor registers under.
const TypeName = "in-toto"

// Parameter keys consumed by the extractor. All of them are required;
// paths resolve relative to the sandbox working directory.
const (
	// LayoutPathKey names the DSSE-enveloped layout file.
	LayoutPathKey = "layout_path"
	// PubKeyPathsKey is a JSON array of layout public key files.
	PubKeyPathsKey = "pub_key_paths"
	// IntermediatePathsKey is a JSON array of intermediate certificate
	// files for certificate-backed functionaries.
	IntermediatePathsKey = "intermediate_paths"
	// LinkDirKey names the directory holding step link metadata.
	LinkDirKey = "link_dir"
	// LineNormalizationKey toggles CRLF normalization when hashing
	// artifacts ("true"/"false").
	LineNormalizationKey = "line_normalization"
)

// PayloadType is the DSSE payload type accepted for layouts.
const PayloadType = "application/vnd.in-toto+json"

// Extractor verifies in-toto layout provenance.
type Extractor struct{}

// New returns an in-toto extractor.
func New() *Extractor {
	return &Extractor{}
}

// layout is the subset of an in-toto layout needed for structural
// validation after signature verification.
type layout struct {
	Type  string            `json:"_type"`
	Steps []json.RawMessage `json:"steps"`
}

// VerifyAndExtract implements extractor.Extractor.
func (e *Extractor) VerifyAndExtract(ctx context.Context, _ []byte, params map[string]string) (string, error) {
	layoutPath, err := require(params, LayoutPathKey)
	if err != nil {
		return "", err
	}
	pubKeyPaths, err := requireJSONPaths(params, PubKeyPathsKey)
	if err != nil {
		return "", err
	}
	intermediatePaths, err := requireJSONPaths(params, IntermediatePathsKey)
	if err != nil {
		return "", err
	}
	linkDir, err := require(params, LinkDirKey)
	if err != nil {
		return "", err
	}
	rawNormalization, err := require(params, LineNormalizationKey)
	if err != nil {
		return "", err
	}
	if _, err := strconv.ParseBool(rawNormalization); err != nil {
		return "", fmt.Errorf("intoto: parse %s: %w", LineNormalizationKey, err)
	}

	verifiers, err := dssekey.LoadAll(pubKeyPaths)
	if err != nil {
		return "", err
	}
	if err := loadIntermediates(intermediatePaths); err != nil {
		return "", err
	}

	if err := e.verifyLayout(ctx, layoutPath, verifiers); err != nil {
		return "", err
	}
	if info, err := os.Stat(linkDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: link directory %q is not readable", extractor.ErrVerificationFailed, linkDir)
	}

	// The layout and its signatures check out; the digest-extraction
	// half of this format does not exist yet.
	return "", fmt.Errorf("%w: in-toto", extractor.ErrNotImplemented)
}

// verifyLayout checks the layout envelope's signatures and structure.
func (e *Extractor) verifyLayout(ctx context.Context, layoutPath string, verifiers []dsse.Verifier) error {
	data, err := os.ReadFile(layoutPath)
	if err != nil {
		return fmt.Errorf("intoto: read layout %q: %w", layoutPath, err)
	}
	var envelope dsse.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%w: layout is not a DSSE envelope: %v", extractor.ErrVerificationFailed, err)
	}
	if envelope.PayloadType != PayloadType {
		return fmt.Errorf("%w: unexpected payload type %q", extractor.ErrVerificationFailed, envelope.PayloadType)
	}

	ev, err := dsse.NewEnvelopeVerifier(verifiers...)
	if err != nil {
		return fmt.Errorf("intoto: build envelope verifier: %w", err)
	}
	if _, err := ev.Verify(ctx, &envelope); err != nil {
		return fmt.Errorf("%w: %v", extractor.ErrVerificationFailed, err)
	}

	payload, err := envelope.DecodeB64Payload()
	if err != nil {
		return fmt.Errorf("%w: decode layout payload: %v", extractor.ErrVerificationFailed, err)
	}
	var l layout
	if err := json.Unmarshal(payload, &l); err != nil {
		return fmt.Errorf("%w: parse layout: %v", extractor.ErrVerificationFailed, err)
	}
	if l.Type == "" {
		return fmt.Errorf("%w: layout missing _type", extractor.ErrVerificationFailed)
	}
	return nil
}

// loadIntermediates checks that every intermediate certificate file is
// readable. Chain validation happens per-functionary during link
// verification, which extraction does not reach yet.
func loadIntermediates(paths []string) error {
	for _, path := range paths {
		if _, err := os.ReadFile(path); err != nil {
			return fmt.Errorf("intoto: read intermediate %q: %w", path, err)
		}
	}
	return nil
}

// require fetches a mandatory parameter.
func require(params map[string]string, key string) (string, error) {
	value, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", extractor.ErrMissingParameter, key)
	}
	return value, nil
}

// requireJSONPaths fetches a mandatory JSON-array-of-strings parameter.
func requireJSONPaths(params map[string]string, key string) ([]string, error) {
	raw, err := require(params, key)
	if err != nil {
		return nil, err
	}
	var paths []string
	if err := json.Unmarshal([]byte(raw), &paths); err != nil {
		return nil, fmt.Errorf("intoto: parse %s: %w", key, err)
	}
	return paths, nil
}

var _ extractor.Extractor = (*Extractor)(nil)
