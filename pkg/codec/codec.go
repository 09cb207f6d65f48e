// Package codec converts bridge params to and from the transport token
// carried in the "params" query value and in host response envelopes.
//
// Encoding: JSON -> percent-encoding -> base64. Decoding is the inverse.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const logPrefix = "codec:codec"

// Encode serializes v into a params token. The JSON text matches
// JSON.stringify: <, > and & stay literal and U+2028/U+2029 are written raw.
func Encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Hosts decode with JSON.parse; keep <, > and & literal like JSON.stringify.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", &EncodeError{Err: err}
	}
	text := unescapeLineSeparators(bytes.TrimRight(buf.Bytes(), "\n"))
	return base64.StdEncoding.EncodeToString([]byte(PercentEncode(string(text)))), nil
}

// Decode reverses Encode into out.
func Decode(token string, out any) error {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return &DecodeError{Stage: StageBase64, Err: err}
	}
	text, err := PercentDecode(string(raw))
	if err != nil {
		return &DecodeError{Stage: StagePercent, Err: err}
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &DecodeError{Stage: StageJSON, Err: err}
	}
	return nil
}

// DecodeValue decodes a token holding a JSON object.
func DecodeValue(token string) (map[string]any, error) {
	out := map[string]any{}
	if err := Decode(token, &out); err != nil {
		return nil, err
	}
	if out == nil {
		// token held JSON null
		out = map[string]any{}
	}
	return out, nil
}

// DecodeRaw decodes a token into its JSON text without interpreting it.
func DecodeRaw(token string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := Decode(token, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// MustEncode is Encode for values known to be serializable (literals, plain structs).
func MustEncode(v any) string {
	s, err := Encode(v)
	if err != nil {
		panic(fmt.Sprintf("%s - MustEncode: %v", logPrefix, err))
	}
	return s
}

// unescapeLineSeparators turns encoding/json's \u2028 and \u2029 escapes back
// into the raw characters. Escaped backslashes are skipped as pairs so a
// literal `\\u2028` in a string is left alone.
func unescapeLineSeparators(text []byte) []byte {
	if !bytes.Contains(text, []byte(`\u202`)) {
		return text
	}
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		if text[i] != '\\' || i+1 >= len(text) {
			out = append(out, text[i])
			continue
		}
		if i+5 < len(text) && text[i+1] == 'u' && text[i+2] == '2' && text[i+3] == '0' && text[i+4] == '2' {
			switch text[i+5] {
			case '8':
				out = append(out, "\u2028"...)
				i += 5
				continue
			case '9':
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, text[i], text[i+1])
		i++
	}
	return out
}

