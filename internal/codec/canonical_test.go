package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_KeyOrderUTF16(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b": int64(2),
		"a": int64(1),
		"Z": int64(0),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"Z":0,"a":1,"b":2}`, string(got))
}

func TestMarshalCanonical_SupplementaryPlaneOrdering(t *testing.T) {
	// U+1F600 encodes as the surrogate pair D83D DE00; 0xD83D sorts before
	// 0xFB01 under UTF-16 even though the code point is higher, so the
	// emoji key comes first. UTF-8 byte order would flip this.
	got, err := MarshalCanonical(map[string]any{
		"\U0001F600": int64(1),
		"\uFB01":     int64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uFB01\":2}", string(got))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical("<a>&b</a>")
	require.NoError(t, err)
	assert.Equal(t, `"<a>&b</a>"`, string(got))
}

func TestMarshalCanonical_NFCNormalisation(t *testing.T) {
	composed, err := MarshalCanonical("caf\u00e9")
	require.NoError(t, err)
	decomposed, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	// A literal backslash followed by the text "u2028" must stay escaped.
	got, err = MarshalCanonical("a\\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\\\\u2028b\"", string(got))
}

func TestMarshalCanonical_Floats(t *testing.T) {
	got, err := MarshalCanonical(2.0)
	require.NoError(t, err)
	assert.Equal(t, "2", string(got), "integral floats print like integers")

	got, err = MarshalCanonical(4.5)
	require.NoError(t, err)
	assert.Equal(t, "4.5", string(got))

	_, err = MarshalCanonical(math.NaN())
	assert.Error(t, err)
	_, err = MarshalCanonical(math.Inf(1))
	assert.Error(t, err)
}

func TestMarshalCanonical_Forbidden(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestMarshalCanonical_NestedStructure(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"objects": []any{
			map[string]any{"id": "b", "ok": true},
			map[string]any{"id": "a"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"objects":[{"id":"b","ok":true},{"id":"a"}]}`, string(got))
}
