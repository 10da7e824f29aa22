package bridge

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// Decode turns a URL-safe, unpadded base64 payload into UTF-8 source text.
// Standard trailing padding is tolerated; any other '=' and line breaks are
// rejected.
func Decode(payload string) (string, error) {
	if payload == "" {
		return "", ErrMissingCode
	}

	if i := strings.IndexAny(payload, "\r\n"); i >= 0 {
		return "", &DecodeError{Err: base64.CorruptInputError(i)}
	}
	data, err := stripPadding(payload)
	if err != nil {
		return "", &DecodeError{Err: err}
	}

	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return "", &DecodeError{Err: err}
	}

	if !utf8.Valid(raw) {
		return "", &EncodingError{Offset: firstInvalidUTF8(raw)}
	}
	return string(raw), nil
}

// stripPadding removes trailing '=' only when the payload is a padded
// quantum: a multiple of four long with exactly the padding its data needs.
func stripPadding(payload string) (string, error) {
	data := strings.TrimRight(payload, "=")
	pad := len(payload) - len(data)
	if pad == 0 {
		return data, nil
	}
	if len(payload)%4 != 0 || pad != (4-len(data)%4)%4 {
		return "", base64.CorruptInputError(len(data))
	}
	return data, nil
}

// Encode is the client-side counterpart of Decode.
func Encode(source string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(source))
}

func firstInvalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
