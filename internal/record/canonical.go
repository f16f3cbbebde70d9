package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for a Value. This is
// the only serialization that may feed content-addressed identity.
//
// Differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats (rejected at the decode boundary)
//
// Tombstones serialize as null, matching the wire encoding.
func MarshalCanonical(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Tombstone:
		return []byte("null"), nil
	case String:
		return marshalCanonicalString(string(val))
	case Int:
		return []byte(fmt.Sprintf("%d", int64(val))), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			elemBytes, err := MarshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(elemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := marshalCanonicalString(k)
			if err != nil {
				return nil, fmt.Errorf("object key %q: %w", k, err)
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := MarshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString produces a canonical JSON string literal.
// RFC 8785 requirements:
//   - strings NFC normalized at the serialization boundary
//   - no HTML escaping (<, >, & stay literal)
//   - U+2028 and U+2029 stay literal; only control characters, backslash,
//     and quote are escaped
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder appends a trailing newline.
	result := buf.Bytes()
	if n := len(result); n > 0 && result[n-1] == '\n' {
		result = result[:n-1]
	}

	// Go's encoder escapes U+2028/U+2029 for JavaScript embedding, which
	// violates RFC 8785. Undo that here.
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators rewrites   and   escape sequences back
// to their literal UTF-8 bytes. Escape sequences are consumed pairwise
// (\\ first), so a literal backslash followed by the text "u2028" is left
// untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			i++
			continue
		}
		if seq := data[i : min(i+6, len(data))]; len(seq) == 6 && seq[1] == 'u' && seq[2] == '2' && seq[3] == '0' && seq[4] == '2' && (seq[5] == '8' || seq[5] == '9') {
			if seq[5] == '8' {
				out = append(out, 0xE2, 0x80, 0xA8) // U+2028
			} else {
				out = append(out, 0xE2, 0x80, 0xA9) // U+2029
			}
			i += 6
			continue
		}
		// Any other escape sequence: copy the backslash and the escaped
		// byte atomically so \\u2028 is never re-inspected mid-sequence.
		out = append(out, data[i], data[i+1])
		i += 2
	}
	return out
}
