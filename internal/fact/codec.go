package fact

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// binaryFormatVersion is the first byte of every binary encoding. It is
// bumped only for incompatible layout changes; decoders reject anything
// newer than what they understand.
const binaryFormatVersion = 0x01

// EncodeBinary serializes a record into the compact binary form used by the
// storage backends. The payload is a single version byte followed by a
// field-tagged msgpack document, so the format stays self-describing and
// unknown optional fields added later decode cleanly.
func EncodeBinary(r *Record) ([]byte, error) {
	payload, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, binaryFormatVersion)
	return append(buf, payload...), nil
}

// DecodeBinary deserializes a binary encoding produced by EncodeBinary.
//
// Failure modes:
//   - empty or truncated input wraps ErrInvalidFormat
//   - a version byte newer than binaryFormatVersion wraps ErrVersionMismatch
func DecodeBinary(data []byte) (*Record, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidFormat, len(data))
	}
	if data[0] > binaryFormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrVersionMismatch, data[0])
	}
	var r Record
	if err := msgpack.Unmarshal(data[1:], &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return &r, nil
}

// EncodeJSON serializes a record into the human-readable JSON form used for
// import/export and by the file backend's JSON mode. Timestamps become
// RFC 3339 strings.
func EncodeJSON(r *Record) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record as JSON: %w", err)
	}
	return data, nil
}

// DecodeJSON deserializes the JSON form. Unknown fields are rejected so a
// record written by a newer schema surfaces as ErrSchemaMismatch instead of
// being silently truncated.
func DecodeJSON(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var r Record
	if err := dec.Decode(&r); err != nil {
		// The decoder mirrors encoding/json, which reports unknown fields
		// as a plain "json: unknown field %q" error with no exported type;
		// the message match is the only classification hook either exposes.
		if strings.Contains(err.Error(), "unknown field") {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return &r, nil
}
