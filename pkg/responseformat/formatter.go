// Package responseformat encodes and decodes values as JSON or MessagePack,
// using the json struct tags for both.
package responseformat

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the wire encoding.
type Format string

const (
	JSON    Format = "json"
	MsgPack Format = "msgpack"
)

// ParseFormat maps a configuration string to a Format. The empty string
// selects MessagePack.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", MsgPack:
		return MsgPack, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("unknown format %q: use json or msgpack", s)
}

// Formatter handles encoding values in JSON or MessagePack format
type Formatter struct {
	format Format
}

// NewFormatter creates a new formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{format: format}
}

// Write encodes data to w. JSON values are newline-terminated.
func (f *Formatter) Write(w io.Writer, data any) error {
	if f.format == JSON {
		return json.NewEncoder(w).Encode(data)
	}
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}

// Decoder reads a stream of values written by a Formatter.
type Decoder struct {
	next func(v any) error
}

// NewDecoder returns a decoder for a stream in the given format.
func NewDecoder(r io.Reader, format Format) *Decoder {
	if format == JSON {
		return &Decoder{next: json.NewDecoder(r).Decode}
	}
	decoder := msgpack.NewDecoder(r)
	decoder.SetCustomStructTag("json")
	return &Decoder{next: decoder.Decode}
}

// Decode reads the next value into v. It returns io.EOF at the end of the
// stream.
func (d *Decoder) Decode(v any) error {
	return d.next(v)
}
