package refval

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalWireForm(t *testing.T) {
	rv := New().
		SetVersion("1.0").
		SetName("artifact").
		SetExpiration(time.Unix(0, 0)).
		AddHashValue("sha512", "123")

	data, err := json.Marshal(rv)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"version": "1.0",
		"name": "artifact",
		"expired": "1970-01-01T00:00:00Z",
		"hash-value": [{"alg": "sha512", "value": "123"}]
	}`, string(data))
}

func TestMarshalEmptyHashValues(t *testing.T) {
	rv := New().SetName("artifact").SetExpiration(time.Unix(0, 0))

	data, err := json.Marshal(rv)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hash-value":[]`)
}

func TestUnmarshal(t *testing.T) {
	input := `{
		"version": "1.0",
		"name": "artifact",
		"expired": "1970-01-01T00:00:00Z",
		"hash-value": [{"alg": "sha512", "value": "123"}]
	}`

	var rv ReferenceValue
	require.NoError(t, json.Unmarshal([]byte(input), &rv))

	want := New().
		SetVersion("1.0").
		SetName("artifact").
		SetExpiration(time.Unix(0, 0)).
		AddHashValue("sha512", "123")
	assert.True(t, rv.Equal(want))
}

func TestUnmarshalDefaultsVersion(t *testing.T) {
	input := `{"name": "artifact", "expired": "1970-01-01T00:00:00Z", "hash-value": []}`

	var rv ReferenceValue
	require.NoError(t, json.Unmarshal([]byte(input), &rv))
	assert.Equal(t, Version, rv.Version())
}

func TestUnmarshalRejectsBadExpiration(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing", `{"name": "artifact", "hash-value": []}`},
		{"empty", `{"name": "artifact", "expired": "", "hash-value": []}`},
		{"offset instead of Z", `{"name": "artifact", "expired": "1970-01-01T00:00:00+02:00", "hash-value": []}`},
		{"date only", `{"name": "artifact", "expired": "1970-01-01", "hash-value": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rv ReferenceValue
			err := json.Unmarshal([]byte(tt.input), &rv)
			assert.ErrorIs(t, err, ErrMalformedExpiration)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rv := New().
		SetName("myapp.tar.gz").
		SetExpiration(time.Date(2026, 9, 23, 11, 30, 0, 0, time.UTC)).
		AddHashValue("sha256", "aaa").
		AddHashValue("sha512", "bbb").
		AddHashValue("sha384", "ccc")

	data, err := json.Marshal(rv)
	require.NoError(t, err)

	var decoded ReferenceValue
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, decoded.Equal(rv))
	// Insertion order survives the round trip.
	assert.Equal(t, rv.HashValues(), decoded.HashValues())
}

func TestHashValueOrderPreserved(t *testing.T) {
	rv := New().SetName("artifact")
	for _, alg := range []string{"sha512", "sha256", "md5", "sha384"} {
		rv.AddHashValue(alg, "v-"+alg)
	}

	pairs := rv.HashValues()
	require.Len(t, pairs, 4)
	assert.Equal(t, "sha512", pairs[0].Alg)
	assert.Equal(t, "sha256", pairs[1].Alg)
	assert.Equal(t, "md5", pairs[2].Alg)
	assert.Equal(t, "sha384", pairs[3].Alg)
}

func TestEqual(t *testing.T) {
	base := func() *ReferenceValue {
		return New().
			SetVersion("1.0").
			SetName("artifact").
			SetExpiration(time.Unix(1000, 0)).
			AddHashValue("sha256", "aaa")
	}

	assert.True(t, base().Equal(base()))
	assert.False(t, base().Equal(base().SetVersion("2.0")))
	assert.False(t, base().Equal(base().SetName("other")))
	assert.False(t, base().Equal(base().SetExpiration(time.Unix(2000, 0))))
	assert.False(t, base().Equal(base().AddHashValue("sha512", "bbb")))
}

func TestCloneIsolation(t *testing.T) {
	original := New().SetName("artifact").AddHashValue("sha256", "aaa")
	clone := original.Clone()
	require.True(t, clone.Equal(original))

	clone.SetName("mutated").AddHashValue("sha512", "bbb")
	assert.Equal(t, "artifact", original.Name())
	assert.Len(t, original.HashValues(), 1)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, New().Validate(), ErrEmptyName)
	assert.NoError(t, New().SetName("artifact").Validate())
}

func TestParseExpiration(t *testing.T) {
	got, err := ParseExpiration("1970-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Unix(0, 0)))

	_, err = ParseExpiration("not-a-time")
	assert.ErrorIs(t, err, ErrMalformedExpiration)
}
