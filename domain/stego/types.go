// Package stego defines secret messages carried inside visual encodings.
package stego

import (
	"encoding/hex"
	"fmt"
	"strings"

	"gonomen/domain/core"
)

// PayloadSize is the fixed payload capacity of a frame in bytes. Text and
// metadata longer than this are rejected, not truncated.
const PayloadSize = 11

// MessageType tags the meaning of a payload. Values fit in four bits.
type MessageType uint8

const (
	MessageSignature MessageType = iota + 1
	MessageTimestamp
	MessageMetadata
	MessageChecksum
	MessageText
)

var messageTypeNames = map[MessageType]string{
	MessageSignature: "signature",
	MessageTimestamp: "timestamp",
	MessageMetadata:  "metadata",
	MessageChecksum:  "checksum",
	MessageText:      "text",
}

// MessageTypes lists the declared message types.
func MessageTypes() []MessageType {
	return []MessageType{MessageSignature, MessageTimestamp, MessageMetadata, MessageChecksum, MessageText}
}

// Valid reports whether t is declared.
func (t MessageType) Valid() bool {
	_, ok := messageTypeNames[t]
	return ok
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("message(%d)", uint8(t))
}

// ParseMessageType parses a message type name.
func ParseMessageType(s string) (MessageType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range messageTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown message type %q", core.ErrInvalidMessage, s)
}

// MarshalText encodes the type by name.
func (t MessageType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: message type %d", core.ErrInvalidMessage, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *MessageType) UnmarshalText(text []byte) error {
	parsed, err := ParseMessageType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Method selects which encoding fields carry the frame.
type Method string

const (
	MethodLSB          Method = "lsb"
	MethodPosition     Method = "position"
	MethodMultiChannel Method = "multi_channel"
)

// Methods lists the declared injection methods in extraction order.
func Methods() []Method {
	return []Method{MethodLSB, MethodPosition, MethodMultiChannel}
}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, candidate := range Methods() {
		if candidate == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown injection method %q", core.ErrInputValidation, s)
}

// Message is a typed payload of at most PayloadSize bytes.
type Message struct {
	Type    MessageType `json:"type"`
	Payload []byte      `json:"payload"`
}

// Validate checks type and payload size.
func (m Message) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: message type %d", core.ErrInvalidMessage, uint8(m.Type))
	}
	if len(m.Payload) > PayloadSize {
		return fmt.Errorf("%w: payload has %d bytes, capacity is %d", core.ErrInvalidMessage, len(m.Payload), PayloadSize)
	}
	return nil
}

// Equal compares type and payload bytes.
func (m Message) Equal(other Message) bool {
	return m.Type == other.Type && string(m.Payload) == string(other.Payload)
}

// Hex returns the payload in hexadecimal.
func (m Message) Hex() string {
	return hex.EncodeToString(m.Payload)
}

// Extraction is the result of reading an encoding, where Found is false on a miss.
type Extraction struct {
	Found   bool     `json:"found"`
	Method  Method   `json:"method,omitempty"`
	Message *Message `json:"message,omitempty"`
}
