// Package slsaprov implements the SLSA provenance extractor.
//
// The extractor parses a DSSE-enveloped in-toto statement carrying SLSA
// provenance (v1 or v0.2), optionally verifies the envelope signatures
// against submitter-supplied public keys, and extracts the attested
// subject digest.
package slsaprov

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/opencontainers/go-digest"
	"github.com/secure-systems-lab/go-securesystemslib/dsse"

	"github.com/meigma/refval/extractor"
	"github.com/meigma/refval/internal/dssekey"
)

// TypeName is the provenance-type name this extractor registers under.
const TypeName = "slsa-provenance"

// Parameter keys consumed by the extractor.
const (
	// SubjectNameKey selects the statement subject to extract. Optional;
	// the first subject is used when absent.
	SubjectNameKey = "subject_name"
	// PubKeyPathsKey is an optional JSON array of public key files. When
	// present, the DSSE envelope signatures are verified against them.
	PubKeyPathsKey = "pub_key_paths"
)

// PayloadType is the DSSE payload type accepted for in-toto statements.
const PayloadType = "application/vnd.in-toto+json"

// predicateTypes are the supported SLSA provenance predicate types.
var predicateTypes = []string{
	"https://slsa.dev/provenance/v1",
	"https://slsa.dev/provenance/v0.2",
}

// algorithmPreference orders digest algorithms when a subject carries
// more than one.
var algorithmPreference = []string{"sha256", "sha512", "sha384"}

// Extractor extracts subject digests from SLSA provenance.
type Extractor struct{}

// New returns a SLSA provenance extractor.
func New() *Extractor {
	return &Extractor{}
}

// statement is an in-toto statement carrying SLSA provenance.
type statement struct {
	Type          string    `json:"_type"`
	PredicateType string    `json:"predicateType"`
	Subject       []subject `json:"subject"`
}

type subject struct {
	Name   string            `json:"name"`
	Digest map[string]string `json:"digest"`
}

// VerifyAndExtract implements extractor.Extractor.
func (e *Extractor) VerifyAndExtract(ctx context.Context, provenance []byte, params map[string]string) (string, error) {
	stmt, err := e.parse(ctx, provenance, params)
	if err != nil {
		return "", err
	}

	if !supportedPredicateType(stmt.PredicateType) {
		return "", fmt.Errorf("%w: unsupported predicate type %q", extractor.ErrVerificationFailed, stmt.PredicateType)
	}
	if len(stmt.Subject) == 0 {
		return "", fmt.Errorf("%w: statement has no subjects", extractor.ErrVerificationFailed)
	}

	sub, err := selectSubject(stmt.Subject, params[SubjectNameKey])
	if err != nil {
		return "", err
	}
	return subjectDigest(sub)
}

// parse decodes the provenance into a statement, verifying envelope
// signatures when public keys are supplied. A bare statement (no DSSE
// envelope) is accepted only for unsigned submissions.
func (e *Extractor) parse(ctx context.Context, provenance []byte, params map[string]string) (*statement, error) {
	raw, verifyKeys := params[PubKeyPathsKey]

	var envelope dsse.Envelope
	if err := json.Unmarshal(provenance, &envelope); err == nil && envelope.Payload != "" {
		return e.parseEnvelope(ctx, &envelope, raw, verifyKeys)
	}

	if verifyKeys {
		return nil, fmt.Errorf("%w: signature verification requested but provenance is not a DSSE envelope", extractor.ErrVerificationFailed)
	}
	var stmt statement
	if err := json.Unmarshal(provenance, &stmt); err != nil {
		return nil, fmt.Errorf("%w: provenance is neither a DSSE envelope nor a statement: %v", extractor.ErrVerificationFailed, err)
	}
	return &stmt, nil
}

func (e *Extractor) parseEnvelope(ctx context.Context, envelope *dsse.Envelope, rawKeyPaths string, verify bool) (*statement, error) {
	if envelope.PayloadType != PayloadType {
		return nil, fmt.Errorf("%w: unexpected payload type %q", extractor.ErrVerificationFailed, envelope.PayloadType)
	}

	if verify {
		var paths []string
		if err := json.Unmarshal([]byte(rawKeyPaths), &paths); err != nil {
			return nil, fmt.Errorf("slsaprov: parse %s: %w", PubKeyPathsKey, err)
		}
		verifiers, err := dssekey.LoadAll(paths)
		if err != nil {
			return nil, err
		}
		ev, err := dsse.NewEnvelopeVerifier(verifiers...)
		if err != nil {
			return nil, fmt.Errorf("slsaprov: build envelope verifier: %w", err)
		}
		if _, err := ev.Verify(ctx, envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", extractor.ErrVerificationFailed, err)
		}
	}

	payload, err := envelope.DecodeB64Payload()
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", extractor.ErrVerificationFailed, err)
	}
	var stmt statement
	if err := json.Unmarshal(payload, &stmt); err != nil {
		return nil, fmt.Errorf("%w: parse statement: %v", extractor.ErrVerificationFailed, err)
	}
	return &stmt, nil
}

func supportedPredicateType(pt string) bool {
	for _, valid := range predicateTypes {
		if pt == valid {
			return true
		}
	}
	return false
}

// selectSubject picks the subject named by the parameter, or the first
// subject when no name is given.
func selectSubject(subjects []subject, name string) (*subject, error) {
	if name == "" {
		return &subjects[0], nil
	}
	for i := range subjects {
		if subjects[i].Name == name {
			return &subjects[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no subject named %q", extractor.ErrVerificationFailed, name)
}

// subjectDigest returns the subject's digest in OCI "alg:encoded" form,
// preferring stronger well-known algorithms and falling back to the
// lexicographically first entry for determinism.
func subjectDigest(sub *subject) (string, error) {
	if len(sub.Digest) == 0 {
		return "", fmt.Errorf("%w: subject %q has no digest", extractor.ErrVerificationFailed, sub.Name)
	}
	for _, alg := range algorithmPreference {
		if value, ok := sub.Digest[alg]; ok {
			return formatDigest(alg, value), nil
		}
	}
	algs := make([]string, 0, len(sub.Digest))
	for alg := range sub.Digest {
		algs = append(algs, alg)
	}
	sort.Strings(algs)
	return formatDigest(algs[0], sub.Digest[algs[0]]), nil
}

func formatDigest(alg, value string) string {
	return digest.NewDigestFromEncoded(digest.Algorithm(alg), value).String()
}

var _ extractor.Extractor = (*Extractor)(nil)
