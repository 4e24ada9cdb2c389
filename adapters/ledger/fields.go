package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// decodeString normalizes the loosely-typed field encodings the ledger uses
// interchangeably: a plain JSON string, a {"bytes": <base64>} wrapper, or a
// numeric byte array. Everything above this boundary sees plain strings.
func decodeString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case map[string]any:
		raw, ok := val["bytes"]
		if !ok {
			return "", fmt.Errorf("object field has no bytes variant: %v", val)
		}
		enc, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("bytes variant is not a string: %v", raw)
		}
		decoded, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return "", fmt.Errorf("failed to decode bytes variant: %w", err)
		}
		return string(decoded), nil
	case []any:
		buf := make([]byte, len(val))
		for i, b := range val {
			n, ok := b.(float64)
			if !ok || n < 0 || n > 255 {
				return "", fmt.Errorf("byte array element %d is not a byte: %v", i, b)
			}
			buf[i] = byte(n)
		}
		return string(buf), nil
	default:
		return "", fmt.Errorf("unsupported field encoding: %T", v)
	}
}

// decodeUint normalizes a numeric field transmitted either as a JSON number
// or as a decimal string.
func decodeUint(v any) (uint64, error) {
	switch val := v.(type) {
	case string:
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse numeric field %q: %w", val, err)
		}
		return n, nil
	case float64:
		if val < 0 {
			return 0, fmt.Errorf("numeric field is negative: %v", val)
		}
		return uint64(val), nil
	case json.Number:
		n, err := strconv.ParseUint(val.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse numeric field %q: %w", val, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported numeric encoding: %T", v)
	}
}

// decodeFields flattens a raw field map to plain strings, stringifying
// numeric values on the way.
func decodeFields(raw map[string]any) (map[string]string, error) {
	fields := make(map[string]string, len(raw))
	for name, v := range raw {
		switch v.(type) {
		case float64, json.Number:
			n, err := decodeUint(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			fields[name] = strconv.FormatUint(n, 10)
		default:
			s, err := decodeString(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			fields[name] = s
		}
	}
	return fields, nil
}
