package stego

import (
	"fmt"
	"math"

	"gonomen/domain/core"
	"gonomen/domain/encoding"
	domstego "gonomen/domain/stego"
)

// Epsilon is the largest change injection makes to any field.
const Epsilon = 1e-3

// nudge is the first inward step taken when written bits would push a
// field out of range. It doubles until the value fits.
const nudge = 1e-5

const maxNudges = 8

// carrier is the set of fields a method writes and how many copies of the
// frame it holds. Stream bit k lands in field k%len(fields), slot k/len(fields).
type carrier struct {
	fields []encoding.Field
	copies int
}

var carriers = map[domstego.Method]carrier{
	domstego.MethodLSB: {
		fields: []encoding.Field{encoding.FieldHue, encoding.FieldSaturation, encoding.FieldBrightness, encoding.FieldRotation},
		copies: 1,
	},
	domstego.MethodPosition: {
		fields: []encoding.Field{encoding.FieldX, encoding.FieldY, encoding.FieldZ},
		copies: 1,
	},
	domstego.MethodMultiChannel: {
		fields: encoding.Fields(),
		copies: 3,
	},
}

// slots is the number of low mantissa bits used per field.
func (c carrier) slots() int {
	n := FrameBits * c.copies
	return (n + len(c.fields) - 1) / len(c.fields)
}

func (c carrier) write(enc *encoding.VisualEncoding, frame []bool) error {
	stream := make([]bool, 0, FrameBits*c.copies)
	for i := 0; i < c.copies; i++ {
		stream = append(stream, frame...)
	}
	words := make([]uint64, len(c.fields))
	for k, bit := range stream {
		if bit {
			words[k%len(c.fields)] |= 1 << uint(k/len(c.fields))
		}
	}
	mask := uint64(1)<<uint(c.slots()) - 1
	for i, f := range c.fields {
		v, err := embed(f, enc.Get(f), words[i], mask)
		if err != nil {
			return err
		}
		enc.Set(f, v)
	}
	return nil
}

// read recovers the frame, taking a majority vote across copies.
func (c carrier) read(enc encoding.VisualEncoding) []bool {
	words := make([]uint64, len(c.fields))
	for i, f := range c.fields {
		words[i] = math.Float64bits(enc.Get(f))
	}
	frame := make([]bool, FrameBits)
	for b := 0; b < FrameBits; b++ {
		votes := 0
		for copyIdx := 0; copyIdx < c.copies; copyIdx++ {
			k := copyIdx*FrameBits + b
			if words[k%len(c.fields)]&(1<<uint(k/len(c.fields))) != 0 {
				votes++
			}
		}
		frame[b] = 2*votes > c.copies
	}
	return frame
}

// embed replaces the masked low mantissa bits of v with word, moving v
// inward when the result would leave the field's range.
func embed(f encoding.Field, v float64, word, mask uint64) (float64, error) {
	bounds, ok := encoding.BoundsOf(f)
	if !ok {
		return 0, fmt.Errorf("%w: unknown field %s", core.ErrInputValidation, f)
	}
	set := func(x float64) float64 {
		return math.Float64frombits(math.Float64bits(x)&^mask | word&mask)
	}
	out := set(v)
	step := nudge
	for i := 0; !bounds.Contains(out) && i < maxNudges; i++ {
		base := v - step
		if out < bounds.Min {
			base = v + step
		}
		out = set(base)
		step *= 2
	}
	if !bounds.Contains(out) || math.Abs(out-v) > Epsilon {
		return 0, fmt.Errorf("%w: cannot embed into %s = %g", core.ErrInvalidMessage, f, v)
	}
	return out, nil
}
