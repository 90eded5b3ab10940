// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import (
	"fmt"
	"io"
	"strconv"
)

// Field is one outgoing frame field. Values are rendered as decimal text
// and byte-stuffed as needed.
type Field interface {
	appendText(dst []byte, precision int) []byte
}

type intField int64
type floatField float64
type strField string

func (v intField) appendText(dst []byte, _ int) []byte {
	return strconv.AppendInt(dst, int64(v), 10)
}

func (v floatField) appendText(dst []byte, precision int) []byte {
	return strconv.AppendFloat(dst, float64(v), 'f', precision, 64)
}

func (v strField) appendText(dst []byte, _ int) []byte {
	return escapeField(dst, []byte(v))
}

// Int wraps an int field.
func Int(v int) Field { return intField(v) }

// Long wraps an int64 field.
func Long(v int64) Field { return intField(v) }

// Float wraps a float field, rendered at the encoder's precision.
func Float(v float64) Field { return floatField(v) }

// Str wraps a string field. Frame markers, separators and the escape byte
// inside the payload are byte-stuffed.
func Str(s string) Field { return strField(s) }

// Encoder serializes frames and writes each one to the transport in a
// single Write call so outgoing frames never interleave.
type Encoder struct {
	w         io.Writer
	maxFrame  int
	precision int
	scratch   []byte
}

// NewEncoder creates an encoder with the default transmit limits.
func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderWith(w, DefaultMaxFrameTransmit, DefaultFloatPrecision)
}

// NewEncoderWith creates an encoder with an explicit frame size limit and
// float precision.
func NewEncoderWith(w io.Writer, maxFrame int, precision int) *Encoder {
	return &Encoder{
		w:         w,
		maxFrame:  maxFrame,
		precision: precision,
		scratch:   make([]byte, 0, maxFrame),
	}
}

// Precision returns the configured float formatting precision.
func (e *Encoder) Precision() int { return e.precision }

// AppendFrame appends the encoded frame to dst without writing it.
func AppendFrame(dst []byte, precision int, cmd byte, fields ...Field) []byte {
	dst = append(dst, StartByte, cmd)
	for _, f := range fields {
		dst = append(dst, SepByte)
		dst = f.appendText(dst, precision)
	}
	return append(dst, EndByte)
}

// Send encodes and transmits one frame. An oversized frame is rejected
// before anything reaches the wire.
func (e *Encoder) Send(cmd byte, fields ...Field) error {
	e.scratch = AppendFrame(e.scratch[:0], e.precision, cmd, fields...)
	if len(e.scratch) > e.maxFrame {
		return fmt.Errorf("frame too large: %d bytes (max %d)", len(e.scratch), e.maxFrame)
	}
	n, err := e.w.Write(e.scratch)
	if err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	if n != len(e.scratch) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(e.scratch))
	}
	return nil
}
