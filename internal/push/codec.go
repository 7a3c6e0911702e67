package push

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Encode merges the caller-supplied fields over the package defaults and
// always produces a complete payload. It never fails.
//
// A missing Tag is filled from the default TagSource so that every encoded
// delivery is individually addressable.
func Encode(in Payload) Payload {
	out := in
	if out.Title == "" {
		out.Title = DefaultTitle
	}
	if out.Body == "" {
		out.Body = DefaultBody
	}
	if out.Icon == "" {
		out.Icon = DefaultIcon
	}
	if out.Badge == "" {
		out.Badge = DefaultBadge
	}
	if out.Tag == "" {
		out.Tag = NextTag()
	}
	return out
}

// Decode parses the raw bytes of a push message into a complete payload.
//
// Strategy, in order:
//  1. structured JSON decode;
//  2. on failure, the raw text becomes the Body of an otherwise-default payload;
//  3. empty or non-text input degrades to the pure defaults.
//
// Decode never returns an error. Malformed input must not be able to break
// the delivery path.
func Decode(raw []byte) Payload {
	if len(raw) > 0 {
		var p Payload
		if err := json.Unmarshal(raw, &p); err == nil {
			return Encode(p)
		}
	}

	body := strings.TrimSpace(string(raw))
	if body == "" || !utf8.ValidString(body) {
		return Encode(Payload{})
	}
	return Encode(Payload{Body: body})
}
