package refval

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the reference value format version emitted by this
// library, and the default applied when deserializing a record that
// omits the field.
const Version = "0.1"

// expirationLayout is the wire layout of the "expired" field. The
// attestation service parses this exact shape; time.RFC3339 is a
// superset and must not be used for output.
const expirationLayout = "2006-01-02T15:04:05Z"

// Sentinel errors for reference value handling.
var (
	// ErrMalformedExpiration is returned when a serialized record omits
	// the "expired" field or carries one that does not match the wire
	// layout.
	ErrMalformedExpiration = errors.New("refval: missing or malformed expired field")

	// ErrEmptyName is returned when a record without an artifact name
	// is validated. The name is the cache key, so a nameless record can
	// never be stored or published.
	ErrEmptyName = errors.New("refval: artifact name is empty")
)

// HashValuePair is one (algorithm, digest) entry of a reference value.
type HashValuePair struct {
	Alg   string `json:"alg"`
	Value string `json:"value"`
}

// ReferenceValue is the canonical record of an artifact's expected
// digests and validity window.
//
// Records are constructed with [New] and the chainable setters, and are
// treated as immutable once handed to the broadcaster. Hash pairs keep
// insertion order through serialization round-trips.
type ReferenceValue struct {
	version    string
	name       string
	expiration time.Time
	hashValues []HashValuePair
}

// New returns a record with the default format version and an
// expiration of the current instant. Callers are expected to override
// the expiration; the default only keeps the zero record serializable.
func New() *ReferenceValue {
	return &ReferenceValue{
		version:    Version,
		expiration: time.Now().UTC().Truncate(time.Second),
	}
}

// SetVersion overrides the format version.
func (rv *ReferenceValue) SetVersion(version string) *ReferenceValue {
	rv.version = version
	return rv
}

// SetName sets the artifact name, the key under which the record is
// cached.
func (rv *ReferenceValue) SetName(name string) *ReferenceValue {
	rv.name = name
	return rv
}

// SetExpiration sets the instant after which the record is no longer
// trusted to be current. The value is normalized to UTC at second
// precision, the granularity of the wire form. Nothing in this module
// enforces expiration; validity checking belongs to consumers.
func (rv *ReferenceValue) SetExpiration(expiration time.Time) *ReferenceValue {
	rv.expiration = expiration.UTC().Truncate(time.Second)
	return rv
}

// AddHashValue appends an (algorithm, digest) pair.
func (rv *ReferenceValue) AddHashValue(alg, value string) *ReferenceValue {
	rv.hashValues = append(rv.hashValues, HashValuePair{Alg: alg, Value: value})
	return rv
}

// Version returns the format version.
func (rv *ReferenceValue) Version() string { return rv.version }

// Name returns the artifact name.
func (rv *ReferenceValue) Name() string { return rv.name }

// Expiration returns the expiration instant in UTC.
func (rv *ReferenceValue) Expiration() time.Time { return rv.expiration }

// HashValues returns a copy of the hash pairs in insertion order.
func (rv *ReferenceValue) HashValues() []HashValuePair {
	out := make([]HashValuePair, len(rv.hashValues))
	copy(out, rv.hashValues)
	return out
}

// Clone returns a deep copy. The cache stores clones so that a caller
// holding the original can never mutate cached state.
func (rv *ReferenceValue) Clone() *ReferenceValue {
	if rv == nil {
		return nil
	}
	out := *rv
	out.hashValues = rv.HashValues()
	return &out
}

// Equal reports structural equality over all four fields, including
// hash pair order.
func (rv *ReferenceValue) Equal(other *ReferenceValue) bool {
	if rv == nil || other == nil {
		return rv == other
	}
	if rv.version != other.version || rv.name != other.name {
		return false
	}
	if !rv.expiration.Equal(other.expiration) {
		return false
	}
	if len(rv.hashValues) != len(other.hashValues) {
		return false
	}
	for i, hv := range rv.hashValues {
		if hv != other.hashValues[i] {
			return false
		}
	}
	return true
}

// Validate reports whether the record can serve as a cache entry.
func (rv *ReferenceValue) Validate() error {
	if rv.name == "" {
		return ErrEmptyName
	}
	return nil
}

// wireReferenceValue is the JSON object consumed by the attestation
// service.
type wireReferenceValue struct {
	Version    string          `json:"version"`
	Name       string          `json:"name"`
	Expired    *string         `json:"expired"`
	HashValues []HashValuePair `json:"hash-value"`
}

// MarshalJSON implements json.Marshaler using the wire form.
func (rv *ReferenceValue) MarshalJSON() ([]byte, error) {
	expired := rv.expiration.UTC().Format(expirationLayout)
	pairs := rv.hashValues
	if pairs == nil {
		pairs = []HashValuePair{}
	}
	return json.Marshal(wireReferenceValue{
		Version:    rv.version,
		Name:       rv.name,
		Expired:    &expired,
		HashValues: pairs,
	})
}

// UnmarshalJSON implements json.Unmarshaler. A missing or malformed
// "expired" field is rejected; an absent "version" defaults to
// [Version].
func (rv *ReferenceValue) UnmarshalJSON(data []byte) error {
	var wire wireReferenceValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Expired == nil {
		return ErrMalformedExpiration
	}
	expiration, err := time.Parse(expirationLayout, *wire.Expired)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedExpiration, err)
	}
	if wire.Version == "" {
		wire.Version = Version
	}
	rv.version = wire.Version
	rv.name = wire.Name
	rv.expiration = expiration.UTC()
	rv.hashValues = wire.HashValues
	return nil
}

// ParseExpiration parses a timestamp in the wire layout. The extraction
// coordinator uses it for caller-supplied expiration parameters so that
// submitters and subscribers speak the same format.
func ParseExpiration(s string) (time.Time, error) {
	t, err := time.Parse(expirationLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedExpiration, err)
	}
	return t.UTC(), nil
}

// Interface compliance.
var (
	_ json.Marshaler   = (*ReferenceValue)(nil)
	_ json.Unmarshaler = (*ReferenceValue)(nil)
)
