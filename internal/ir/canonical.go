package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// This is the ONLY serialization used for content digests.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats and no null (returns error)
//
// Accepted inputs: string, bool, int, int64, uint32, []any, map[string]any,
// Row, and any Value.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return writeCanonicalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	case Row:
		arr := make([]any, len(val))
		for i, elem := range val {
			arr[i] = elem
		}
		return writeCanonicalArray(buf, arr)
	case Value:
		return writeCanonical(buf, valueJSON(val))
	case []any:
		return writeCanonicalArray(buf, val)
	case map[string]any:
		return writeCanonicalObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// valueJSON maps a fact value onto plain JSON data. Ids encode their
// 1-based local index, so a digest does not depend on which interner
// issued them; the object key names the id space.
func valueJSON(v Value) any {
	switch val := v.(type) {
	case NameID:
		return map[string]any{"name": val.Local()}
	case ExprID:
		return map[string]any{"expr": val.Local()}
	case PathID:
		return map[string]any{"path": val.Local()}
	case Index:
		return uint32(val)
	case TypeKind:
		return val.String()
	case PathVar:
		return map[string]any{"kind": "var", "name": val.Name.Local()}
	case PathProject:
		return map[string]any{"kind": "project", "parent": val.Parent.Local(), "index": uint32(val.Index)}
	case Let:
		return map[string]any{"kind": "let", "name": val.Name.Local(), "value": val.Value.Local(), "body": val.Body.Local()}
	case Var:
		return map[string]any{"kind": "var", "name": val.Name.Local()}
	case Tuple:
		elems := make([]any, len(val.Elems))
		for i, id := range val.Elems {
			elems[i] = id.Local()
		}
		return map[string]any{"kind": "tuple", "elems": elems}
	case Project:
		return map[string]any{"kind": "project", "tuple": val.Tuple.Local(), "index": uint32(val.Index)}
	case I32:
		return map[string]any{"kind": "i32", "value": int64(val.Value)}
	case U32:
		return map[string]any{"kind": "u32", "value": val.Value}
	case Str:
		return map[string]any{"kind": "str", "value": val.Value}
	case Add:
		return map[string]any{"kind": "add", "left": val.Left.Local(), "right": val.Right.Local()}
	case Equ:
		return map[string]any{"kind": "equ", "left": val.Left.Local(), "right": val.Right.Local()}
	default:
		return val.Key()
	}
}

// writeCanonicalString writes a JSON string with NFC normalization.
// RFC 8785: only control characters, backslash and quote are escaped;
// U+2028 and U+2029 stay literal.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns \u2028 and \u2029 escapes back into literal
// characters. An escape preceded by an odd run of backslashes is literal
// text and is kept.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if i+6 <= len(data) && data[i] == '\\' && bytes.HasPrefix(data[i+1:], []byte("u202")) &&
			(data[i+5] == '8' || data[i+5] == '9') {
			slashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				slashes++
			}
			if slashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

func writeCanonicalArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// compareKeysRFC8785 orders strings by UTF-16 code units.
// Go's default string comparison uses UTF-8, which differs above U+FFFF.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
