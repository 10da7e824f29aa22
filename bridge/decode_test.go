package bridge

import (
	"encoding/base64"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecodeURLSafeAlphabet(t *testing.T) {
	// "??>" encodes to "Pz8-" in the URL-safe alphabet and "Pz8+" in the standard one.
	source, err := Decode("Pz8-")
	require.NoError(t, err)
	assert.Equal(t, "??>", source)

	source, err = Decode("Pz8_")
	require.NoError(t, err)
	assert.Equal(t, "???", source)
}

func TestDecodeWithoutPadding(t *testing.T) {
	source, err := Decode("aGk")
	require.NoError(t, err)
	assert.Equal(t, "hi", source)
}

func TestDecodeToleratesPadding(t *testing.T) {
	source, err := Decode("aGk=")
	require.NoError(t, err)
	assert.Equal(t, "hi", source)
}

func TestDecodeToleratesFullPadding(t *testing.T) {
	source, err := Decode("YQ==")
	require.NoError(t, err)
	assert.Equal(t, "a", source)

	source, err = Decode(Encode(`print("hi")`) + "=")
	require.NoError(t, err)
	assert.Equal(t, `print("hi")`, source)
}

func TestDecodeMissing(t *testing.T) {
	_, err := Decode("")
	assert.ErrorIs(t, err, ErrMissingCode)
	assert.Equal(t, ReasonMissingCode, Reason(err))
	assert.True(t, IsClientError(err))
}

func TestDecodeMalformed(t *testing.T) {
	for _, payload := range []string{
		"a",
		"not base64!",
		"Pz8+",
		"a$b",
		"cHJpbnQoImhpIik====",
		"aGk==",
		"YQ=",
		"====",
		"aG=k",
		"cHJpbnQo\nImhpIik",
		"cHJpbnQo\r\nImhpIik",
		"aGk\n",
	} {
		t.Run(payload, func(t *testing.T) {
			_, err := Decode(payload)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, ReasonMalformedBase64, Reason(err))
			assert.True(t, IsClientError(err))
		})
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte{'o', 'k', 0xff, 0xfe})

	_, err := Decode(payload)
	var encodingErr *EncodingError
	require.ErrorAs(t, err, &encodingErr)
	assert.Equal(t, 2, encodingErr.Offset)
	assert.Equal(t, ReasonInvalidUTF8, Reason(err))
}

func TestDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringN(1, 256, -1).Draw(t, "text")

		decoded, err := Decode(Encode(text))
		if err != nil {
			t.Fatalf("decode(encode(%q)): %v", text, err)
		}
		if decoded != text {
			t.Fatalf("round trip mismatch: got %q, want %q", decoded, text)
		}
	})
}

func TestDecodeRejectsArbitraryInvalidUTF8(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "raw")
		_, err := Decode(Encode(string(raw)))
		if utf8.Valid(raw) {
			if err != nil {
				t.Fatalf("valid UTF-8 rejected: %v", err)
			}
			return
		}
		var encodingErr *EncodingError
		if !errors.As(err, &encodingErr) {
			t.Fatalf("expected EncodingError, got %v", err)
		}
	})
}
