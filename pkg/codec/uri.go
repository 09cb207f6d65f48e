package codec

import (
	"fmt"
	"strings"
)

const uriLogPrefix = "codec:uri"

// ParsedURI holds the components of a bridge URI.
type ParsedURI struct {
	// Protocol without "://" (e.g. "meetone")
	Protocol string
	// Route path (e.g. "eos/transfer")
	Route string
	// ParamsToken is the raw "params" query value
	ParamsToken string
	CallbackID  string
	// Hash is the fragment without '#'
	Hash string
	// Params is ParamsToken decoded; empty when the token is absent
	Params map[string]any
}

// ParseURI splits a bridge URI of the form
// <protocol>://<route>?params=<token>&callbackId=<id>#<hash>.
//
// Query values are split on '&' and '=' only; base64 tokens may carry '='
// padding, so everything after the first '=' belongs to the value.
func ParseURI(raw string) (*ParsedURI, error) {
	sep := strings.Index(raw, "://")
	if sep <= 0 {
		return nil, fmt.Errorf("%s - missing scheme in %q", uriLogPrefix, raw)
	}
	out := &ParsedURI{Protocol: raw[:sep]}
	rest := raw[sep+3:]

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		out.Hash = rest[i+1:]
		rest = rest[:i]
	}
	query := ""
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		query = rest[i+1:]
		rest = rest[:i]
	}
	out.Route = rest
	if out.Route == "" {
		return nil, fmt.Errorf("%s - missing route in %q", uriLogPrefix, raw)
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		switch key {
		case "params":
			out.ParamsToken = value
		case "callbackId":
			out.CallbackID = value
		}
	}

	out.Params = map[string]any{}
	if out.ParamsToken != "" {
		params, err := DecodeValue(out.ParamsToken)
		if err != nil {
			return nil, fmt.Errorf("%s - params: %w", uriLogPrefix, err)
		}
		out.Params = params
	}
	return out, nil
}
