package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCSSortsKeys(t *testing.T) {
	out, err := JCS(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(out))
}

func TestJCSDisablesHTMLEscaping(t *testing.T) {
	out, err := JCS(map[string]string{"k": "a<b>&c"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"a<b>&c"}`, string(out))
}

func TestCanonicalHashInsensitiveToFieldOrder(t *testing.T) {
	type ab struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	type ba struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	h1, err := CanonicalHash(ab{A: "x", B: 7})
	require.NoError(t, err)
	h2, err := CanonicalHash(ba{A: "x", B: 7})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}
