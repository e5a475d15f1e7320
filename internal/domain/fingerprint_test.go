package domain

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestFingerprint_IgnoresKeyOrder(t *testing.T) {
	a := decode(t, `{"timestamp":"2020-11-23T17:13:26.239647Z","actor":{"name":"x","id":7},"type$":"login"}`)
	b := decode(t, `{"type$":"login","actor":{"id":7,"name":"x"},"timestamp":"2020-11-23T17:13:26.239647Z"}`)

	fa, err := FingerprintOf(a)
	require.NoError(t, err)
	fb, err := FingerprintOf(b)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.Len(t, string(fa), 64)
}

func TestFingerprint_DiffersOnAnyValue(t *testing.T) {
	base := decode(t, `{"t":100,"id":"a","tags":["x","y"]}`)
	variants := []string{
		`{"t":100,"id":"b","tags":["x","y"]}`,
		`{"t":101,"id":"a","tags":["x","y"]}`,
		`{"t":100,"id":"a","tags":["y","x"]}`,
		`{"t":100,"id":"a","tags":["x","y"],"extra":null}`,
	}

	fp, err := FingerprintOf(base)
	require.NoError(t, err)

	for _, raw := range variants {
		other, err := FingerprintOf(decode(t, raw))
		require.NoError(t, err)
		assert.NotEqual(t, fp, other, raw)
	}
}

func TestCanonicalJSON_NoHTMLEscaping(t *testing.T) {
	out, err := CanonicalJSON(map[string]any{"b": "<a&b>", "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":"<a&b>"}`, string(out))
}
