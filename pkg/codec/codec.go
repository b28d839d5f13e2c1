// Package codec implements the binary wire format for channel chat messages.
//
// A ChatMessage is serialized as a sequence of tagged fields, each field
// prefixed with a varint key (field number << 3 | wire type). Decoders skip
// unknown fields, so older nodes stay compatible with newer senders.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTruncated     = errors.New("codec: truncated message")
	ErrWireType      = errors.New("codec: unexpected wire type")
	ErrFieldTooLarge = errors.New("codec: field exceeds size limit")
	ErrEmptyField    = errors.New("codec: empty required field")
)

// Wire types (protobuf-compatible subset)
const (
	wireVarint uint64 = 0
	wire64Bit  uint64 = 1
	wireBytes  uint64 = 2
	wire32Bit  uint64 = 5
)

// Field numbers for ChatMessage
const (
	fieldTimestamp uint64 = 1
	fieldSender    uint64 = 2
	fieldBody      uint64 = 3
)

// MaxFieldBytes bounds the size of a single text field on the wire.
const MaxFieldBytes = 65535

// ChatMessage is the value type carried over the channel. Timestamp is
// producer-assigned send time in Unix milliseconds; a zero timestamp means
// the sender did not set one and a higher layer substitutes receipt time.
type ChatMessage struct {
	Timestamp uint64 `json:"timestamp"`
	Sender    string `json:"sender"`
	Body      string `json:"body"`
}

// NewChatMessage creates a message stamped with the given send time.
// Sender and body must be non-empty.
func NewChatMessage(timestamp uint64, sender, body string) (*ChatMessage, error) {
	if sender == "" || body == "" {
		return nil, ErrEmptyField
	}
	return &ChatMessage{
		Timestamp: timestamp,
		Sender:    sender,
		Body:      body,
	}, nil
}

// Encode serializes the message into its wire form. Fields are written in
// ascending field-number order so encoding is deterministic.
func (m *ChatMessage) Encode() ([]byte, error) {
	if len(m.Sender) > MaxFieldBytes {
		return nil, fmt.Errorf("%w: sender is %d bytes", ErrFieldTooLarge, len(m.Sender))
	}
	if len(m.Body) > MaxFieldBytes {
		return nil, fmt.Errorf("%w: body is %d bytes", ErrFieldTooLarge, len(m.Body))
	}

	buf := make([]byte, 0, 2+binary.MaxVarintLen64+2+len(m.Sender)+2+len(m.Body))

	if m.Timestamp != 0 {
		buf = appendKey(buf, fieldTimestamp, wireVarint)
		buf = binary.AppendUvarint(buf, m.Timestamp)
	}

	buf = appendKey(buf, fieldSender, wireBytes)
	buf = binary.AppendUvarint(buf, uint64(len(m.Sender)))
	buf = append(buf, m.Sender...)

	buf = appendKey(buf, fieldBody, wireBytes)
	buf = binary.AppendUvarint(buf, uint64(len(m.Body)))
	buf = append(buf, m.Body...)

	return buf, nil
}

// Decode deserializes a wire record into a ChatMessage. Unknown fields are
// skipped; a missing timestamp is left zero for the caller to substitute.
// Structurally malformed input (truncated varints or payloads, wrong wire
// types for known fields) fails the decode.
func Decode(buf []byte) (*ChatMessage, error) {
	var msg ChatMessage
	offset := 0

	for offset < len(buf) {
		key, n := binary.Uvarint(buf[offset:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad field key at offset %d", ErrTruncated, offset)
		}
		offset += n

		fieldNum := key >> 3
		wireType := key & 0x7

		switch fieldNum {
		case fieldTimestamp:
			if wireType != wireVarint {
				return nil, fmt.Errorf("%w: timestamp has wire type %d", ErrWireType, wireType)
			}
			v, n := binary.Uvarint(buf[offset:])
			if n <= 0 {
				return nil, fmt.Errorf("%w: timestamp varint", ErrTruncated)
			}
			msg.Timestamp = v
			offset += n

		case fieldSender:
			s, n, err := readBytes(buf[offset:], wireType)
			if err != nil {
				return nil, fmt.Errorf("sender: %w", err)
			}
			msg.Sender = string(s)
			offset += n

		case fieldBody:
			s, n, err := readBytes(buf[offset:], wireType)
			if err != nil {
				return nil, fmt.Errorf("body: %w", err)
			}
			msg.Body = string(s)
			offset += n

		default:
			// Unknown field: skip by wire type for forward compatibility
			n, err := skipField(buf[offset:], wireType)
			if err != nil {
				return nil, err
			}
			offset += n
		}
	}

	return &msg, nil
}

// appendKey appends a field key (number + wire type) as a varint.
func appendKey(buf []byte, fieldNum, wireType uint64) []byte {
	return binary.AppendUvarint(buf, fieldNum<<3|wireType)
}

// readBytes reads a length-delimited field payload.
func readBytes(buf []byte, wireType uint64) ([]byte, int, error) {
	if wireType != wireBytes {
		return nil, 0, fmt.Errorf("%w: got wire type %d", ErrWireType, wireType)
	}

	length, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, 0, fmt.Errorf("%w: length prefix", ErrTruncated)
	}
	if length > MaxFieldBytes {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrFieldTooLarge, length)
	}
	if uint64(len(buf)-n) < length {
		return nil, 0, fmt.Errorf("%w: want %d bytes, have %d", ErrTruncated, length, len(buf)-n)
	}

	return buf[n : n+int(length)], n + int(length), nil
}

// skipField advances past an unknown field's payload.
func skipField(buf []byte, wireType uint64) (int, error) {
	switch wireType {
	case wireVarint:
		_, n := binary.Uvarint(buf)
		if n <= 0 {
			return 0, fmt.Errorf("%w: skipped varint", ErrTruncated)
		}
		return n, nil

	case wire64Bit:
		if len(buf) < 8 {
			return 0, fmt.Errorf("%w: skipped fixed64", ErrTruncated)
		}
		return 8, nil

	case wireBytes:
		length, n := binary.Uvarint(buf)
		if n <= 0 || uint64(len(buf)-n) < length {
			return 0, fmt.Errorf("%w: skipped bytes field", ErrTruncated)
		}
		return n + int(length), nil

	case wire32Bit:
		if len(buf) < 4 {
			return 0, fmt.Errorf("%w: skipped fixed32", ErrTruncated)
		}
		return 4, nil

	default:
		return 0, fmt.Errorf("%w: cannot skip wire type %d", ErrWireType, wireType)
	}
}
