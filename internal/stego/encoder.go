// Package stego hides short typed messages in the low mantissa bits of a
// visual encoding and issues keyed authentication codes for encodings.
package stego

import (
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"

	"gonomen/domain/core"
	"gonomen/domain/encoding"
	domstego "gonomen/domain/stego"
	"gonomen/internal"
	"gonomen/internal/metrics"
)

// MaxKeySize is the largest key blake2b accepts.
const MaxKeySize = blake2b.Size

// AuthCodeLength is the length of a hex authentication code.
const AuthCodeLength = 16

const tagLabel = "gonomen/stego/frame-tag/v1"

// Encoder is safe for concurrent use; it holds only its key.
type Encoder struct {
	key    []byte
	tag    uint16
	logger *internal.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the encoder logger.
func WithLogger(l *internal.Logger) Option {
	return func(e *Encoder) {
		if l != nil {
			e.logger = l.With("Stego")
		}
	}
}

// NewEncoder creates an encoder keyed by key, which must be 1 to 64 bytes.
func NewEncoder(key []byte, opts ...Option) (*Encoder, error) {
	if len(key) == 0 || len(key) > MaxKeySize {
		return nil, core.NewConfigError("stego key", fmt.Sprintf("must be 1-%d bytes, got %d", MaxKeySize, len(key)))
	}
	e := &Encoder{
		key:    append([]byte(nil), key...),
		logger: internal.DefaultLogger.With("Stego"),
	}
	for _, opt := range opts {
		opt(e)
	}
	sum := e.digest([]byte(tagLabel))
	e.tag = binary.BigEndian.Uint16(sum[:2])
	return e, nil
}

func (e *Encoder) mac() hash.Hash {
	h, err := blake2b.New256(e.key)
	if err != nil {
		// key length is checked in NewEncoder
		panic(err)
	}
	return h
}

func (e *Encoder) digest(data []byte) []byte {
	h := e.mac()
	h.Write(data)
	return h.Sum(nil)
}

// CreateMessage builds a typed message from raw input:
//   - signature: keyed digest of data, truncated to the payload size
//   - timestamp: data is RFC3339 or unix seconds, stored as 8 big-endian bytes
//   - metadata: data verbatim
//   - checksum: CRC-32 of data
//   - text: data as UTF-8
//
// Metadata and text are limited to domstego.PayloadSize (11) bytes; longer
// input fails with core.ErrInvalidMessage.
func (e *Encoder) CreateMessage(t domstego.MessageType, data []byte) (domstego.Message, error) {
	var payload []byte
	switch t {
	case domstego.MessageSignature:
		payload = e.digest(data)[:domstego.PayloadSize]
	case domstego.MessageTimestamp:
		secs, err := parseTimestamp(string(data))
		if err != nil {
			return domstego.Message{}, err
		}
		payload = binary.BigEndian.AppendUint64(nil, uint64(secs))
	case domstego.MessageMetadata:
		payload = append([]byte(nil), data...)
	case domstego.MessageChecksum:
		payload = binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(data))
	case domstego.MessageText:
		if !utf8.Valid(data) {
			return domstego.Message{}, fmt.Errorf("%w: text is not valid UTF-8", core.ErrInvalidMessage)
		}
		payload = append([]byte(nil), data...)
	default:
		return domstego.Message{}, fmt.Errorf("%w: message type %d", core.ErrInvalidMessage, uint8(t))
	}
	m := domstego.Message{Type: t, Payload: payload}
	if err := m.Validate(); err != nil {
		return domstego.Message{}, err
	}
	return m, nil
}

func parseTimestamp(s string) (int64, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		if ts.Unix() < 0 {
			return 0, fmt.Errorf("%w: timestamp before epoch", core.ErrInvalidMessage)
		}
		return ts.Unix(), nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("%w: timestamp %q is neither RFC3339 nor unix seconds", core.ErrInvalidMessage, s)
	}
	return secs, nil
}

// Timestamp decodes the time carried by a timestamp message.
func Timestamp(m domstego.Message) (time.Time, error) {
	if m.Type != domstego.MessageTimestamp || len(m.Payload) != 8 {
		return time.Time{}, fmt.Errorf("%w: not a timestamp message", core.ErrInvalidMessage)
	}
	return time.Unix(int64(binary.BigEndian.Uint64(m.Payload)), 0).UTC(), nil
}

// VerifyPayload checks that a signature or checksum message matches data.
func (e *Encoder) VerifyPayload(m domstego.Message, data []byte) (bool, error) {
	switch m.Type {
	case domstego.MessageSignature, domstego.MessageChecksum:
		want, err := e.CreateMessage(m.Type, data)
		if err != nil {
			return false, err
		}
		return subtle.ConstantTimeCompare(want.Payload, m.Payload) == 1, nil
	default:
		return false, fmt.Errorf("%w: %s messages carry no digest", core.ErrInvalidMessage, m.Type)
	}
}

// Inject returns a copy of enc carrying m in the fields selected by method.
func (e *Encoder) Inject(enc encoding.VisualEncoding, m domstego.Message, method domstego.Method) (encoding.VisualEncoding, error) {
	if err := m.Validate(); err != nil {
		metrics.ObserveStego("inject", string(method), "invalid")
		return encoding.VisualEncoding{}, err
	}
	c, ok := carriers[method]
	if !ok {
		metrics.ObserveStego("inject", string(method), "invalid")
		return encoding.VisualEncoding{}, fmt.Errorf("%w: unknown injection method %q", core.ErrInputValidation, method)
	}
	if err := enc.CheckRanges(); err != nil {
		metrics.ObserveStego("inject", string(method), "invalid")
		return encoding.VisualEncoding{}, fmt.Errorf("%w: %v", core.ErrInputValidation, err)
	}

	out := enc
	if err := c.write(&out, frameBits(packFrame(e.tag, m))); err != nil {
		metrics.ObserveStego("inject", string(method), "error")
		return encoding.VisualEncoding{}, err
	}
	out.Metadata.Embedded = &encoding.EmbedInfo{Method: string(method)}
	metrics.ObserveStego("inject", string(method), "ok")
	e.logger.Debug("injected %s message into %q via %s", m.Type, enc.Metadata.SourceName, method)
	return out, nil
}

// Extract reads a message from enc. A miss is reported with Found false and
// a nil error. The embedded method hint, when present, is tried alone.
func (e *Encoder) Extract(enc encoding.VisualEncoding) domstego.Extraction {
	methods := domstego.Methods()
	if enc.Metadata.Embedded != nil {
		if m, err := domstego.ParseMethod(enc.Metadata.Embedded.Method); err == nil {
			methods = []domstego.Method{m}
		}
	}
	for _, method := range methods {
		frame := bitsFrame(carriers[method].read(enc))
		if m, ok := unpackFrame(e.tag, frame); ok {
			metrics.ObserveStego("extract", string(method), "found")
			return domstego.Extraction{Found: true, Method: method, Message: &m}
		}
	}
	metrics.ObserveStego("extract", "", "miss")
	return domstego.Extraction{}
}

// GenerateAuthCode returns a keyed code over everything in enc except the
// embed marker.
func (e *Encoder) GenerateAuthCode(enc encoding.VisualEncoding) string {
	h := e.mac()
	var buf [8]byte
	for _, v := range enc.Values() {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, s := range []string{string(enc.Geometry.Shape), enc.Metadata.FormulaID, enc.Metadata.SourceName} {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	sum := h.Sum(nil)
	metrics.ObserveStego("auth", "", "ok")
	return hex.EncodeToString(sum[:AuthCodeLength/2])
}

// Verify reports whether code authenticates enc.
func (e *Encoder) Verify(enc encoding.VisualEncoding, code string) bool {
	want := e.GenerateAuthCode(enc)
	ok := subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1
	outcome := "mismatch"
	if ok {
		outcome = "ok"
	}
	metrics.ObserveStego("verify", "", outcome)
	return ok
}
