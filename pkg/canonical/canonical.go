// Package canonical implements the deterministic JSON codec that is the
// trust root of the whole verification core (component C1): every hash,
// signature, and hash-chain link in the system is computed over bytes this
// package produces, never over whatever a JSON encoder happens to emit.
//
// Numbers marshal exactly as Go's encoding/json already does (integers with
// no decimal point, floats via the shortest round-trip decimal Go's
// encoder already computes) — canonicalization only has to re-sort object
// keys and strip the whitespace/ordering choices encoding/json makes, not
// reinvent number formatting.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// InvalidValueError reports that a value could not be canonicalized:
// it contains a cycle, a channel/func/complex field, or (for Parse) raw
// bytes that are not well-formed JSON or that repeat an object key.
type InvalidValueError struct {
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("canonical: invalid value: %s", e.Reason)
}

// ErrDuplicateKey is wrapped into InvalidValueError when Parse encounters
// an object with a repeated key — RFC 8785 and this codec both forbid it.
var ErrDuplicateKey = errors.New("duplicate object key")

// Marshal returns the canonical byte representation of v: object keys
// sorted lexicographically, arrays left in declared order, no insignificant
// whitespace, no trailing newline.
//
// v is first passed through the standard library's json.Marshal so that
// struct tags, omitempty, and custom MarshalJSON methods are honored
// exactly as everywhere else in the codebase; the result is then decoded
// into a generic tree (numbers preserved losslessly via json.Number) and
// re-encoded in canonical form. This two-pass approach — marshal for
// shape, canonicalize for bytes — is what lets every existing Go type in
// this module serialize canonically without a bespoke encoder per type.
func Marshal(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, &InvalidValueError{Reason: err.Error()}
	}
	return Parse(intermediate)
}

// Parse canonicalizes an already-serialized JSON document, rejecting
// duplicate object keys. Use this when re-canonicalizing bytes that
// arrived from outside the process (e.g. a transcript file on disk) rather
// than a value this process constructed.
func Parse(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tree, err := decodeValue(dec)
	if err != nil {
		return nil, &InvalidValueError{Reason: err.Error()}
	}
	if dec.More() {
		return nil, &InvalidValueError{Reason: "trailing data after JSON value"}
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalString is Marshal with the result converted to a string.
func MarshalString(v interface{}) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Hash returns the lowercase hex SHA-256 digest of the canonical form of v.
func Hash(v interface{}) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashHex(b), nil
}

// HashHex returns the lowercase hex SHA-256 digest of already-canonical
// bytes (or of any byte string the caller wants hashed directly).
func HashHex(canonicalBytes []byte) string {
	sum := sha256.Sum256(canonicalBytes)
	return hex.EncodeToString(sum[:])
}

// HashRaw is HashHex returning the raw 32-byte digest instead of hex.
func HashRaw(canonicalBytes []byte) [32]byte {
	return sha256.Sum256(canonicalBytes)
}

// decodeValue reads one JSON value from dec into Go's generic
// representation (map[string]interface{}, []interface{}, json.Number,
// string, bool, nil), rejecting duplicate object keys as it goes.
func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (interface{}, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := make(map[string]interface{})
			seen := make(map[string]struct{})
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("non-string object key %v", keyTok)
				}
				if _, dup := seen[key]; dup {
					return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
				}
				seen[key] = struct{}{}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj[key] = val
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []interface{}{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return tok, nil
	}
}

// encodeValue writes v's canonical byte form to buf.
func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(t.String())
		return nil
	case string:
		return encodeString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return &InvalidValueError{Reason: fmt.Sprintf("unsupported kind %T", v)}
	}
}

// encodeString writes a JSON string literal with HTML-escaping disabled,
// matching RFC 8785's requirement that canonical strings use the minimal
// escaping standard JSON requires and nothing more.
func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}
