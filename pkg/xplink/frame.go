// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import (
	"strconv"
	"time"
)

// Frame is one decoded protocol message: the raw body bytes between the
// start and end markers, with byte stuffing still applied. Fields are
// extracted positionally and unescaped on demand, so a literal separator
// inside a string payload never splits a field.
type Frame struct {
	body      []byte
	timestamp time.Time
}

// NewFrame creates a frame from raw body bytes (markers excluded, byte
// stuffing intact).
func NewFrame(body []byte) *Frame {
	return &Frame{body: body, timestamp: time.Now()}
}

// Command returns the frame's command character, or 0 for an empty frame.
func (f *Frame) Command() byte {
	if len(f.body) == 0 {
		return 0
	}
	return f.body[0]
}

// Body returns the raw body bytes including the command character.
func (f *Frame) Body() []byte {
	return f.body
}

// Timestamp returns the frame's decode timestamp.
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// FieldCount returns the number of fields in the frame, counting the
// command token as field 0.
func (f *Frame) FieldCount() int {
	if len(f.body) == 0 {
		return 0
	}
	n := 1
	esc := false
	for _, b := range f.body {
		if esc {
			esc = false
			continue
		}
		if b == EscByte {
			esc = true
			continue
		}
		if b == SepByte {
			n++
		}
	}
	return n
}

// fieldToken locates field idx (0 = command token) and returns its raw,
// still-stuffed bytes. ok is false when idx is out of range.
func (f *Frame) fieldToken(idx int) (token []byte, ok bool) {
	if idx < 0 || len(f.body) == 0 {
		return nil, false
	}
	start := 0
	field := 0
	esc := false
	for i, b := range f.body {
		if esc {
			esc = false
			continue
		}
		if b == EscByte {
			esc = true
			continue
		}
		if b == SepByte {
			if field == idx {
				return f.body[start:i], true
			}
			field++
			start = i + 1
		}
	}
	if field == idx {
		return f.body[start:], true
	}
	return nil, false
}

// FieldString extracts field idx as an unescaped string, truncated to
// maxLen bytes when maxLen > 0. ok is false when idx is out of range.
func (f *Frame) FieldString(idx, maxLen int) (string, bool) {
	token, ok := f.fieldToken(idx)
	if !ok {
		return "", false
	}
	s := unescapeField(token)
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s, true
}

// FieldInt extracts field idx as an int. ok is false when the index is out
// of range or the token is not a decimal integer.
func (f *Frame) FieldInt(idx int) (int, bool) {
	v, ok := f.FieldLong(idx)
	return int(v), ok
}

// FieldLong extracts field idx as an int64.
func (f *Frame) FieldLong(idx int) (int64, bool) {
	token, ok := f.fieldToken(idx)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(string(unescapeBytes(token)), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FieldFloat extracts field idx as a float64.
func (f *Frame) FieldFloat(idx int) (float64, bool) {
	token, ok := f.fieldToken(idx)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(unescapeBytes(token)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FieldHandle extracts field idx as a Handle.
func (f *Frame) FieldHandle(idx int) (Handle, bool) {
	v, ok := f.FieldInt(idx)
	return Handle(v), ok
}

// needsEscape reports whether b must be byte-stuffed inside a field.
func needsEscape(b byte) bool {
	return b == StartByte || b == EndByte || b == SepByte || b == EscByte
}

// escapeField appends the stuffed form of raw to dst.
func escapeField(dst []byte, raw []byte) []byte {
	for _, b := range raw {
		if needsEscape(b) {
			dst = append(dst, EscByte, b^EscXor)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// unescapeBytes removes byte stuffing from a single field token. A trailing
// lone escape byte is dropped.
func unescapeBytes(token []byte) []byte {
	out := make([]byte, 0, len(token))
	esc := false
	for _, b := range token {
		if esc {
			out = append(out, b^EscXor)
			esc = false
			continue
		}
		if b == EscByte {
			esc = true
			continue
		}
		out = append(out, b)
	}
	return out
}

func unescapeField(token []byte) string {
	return string(unescapeBytes(token))
}
