// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import (
	"fmt"
	"time"
)

// Decoder accumulates transport bytes into delimited frames.
//
// The decoder is fed one byte at a time and owns a single fixed-capacity
// buffer. A start marker always resets the buffer and begins a new frame,
// discarding any partial one; that is deliberate resynchronization, not an
// error. Because field payloads are byte-stuffed before transmission, the
// marker bytes never occur inside a frame body, so no escape tracking is
// needed here.
type Decoder struct {
	buf      []byte
	inFrame  bool
	maxFrame int
	timeout  time.Duration
	clock    Clock
	lastByte time.Time
}

// NewDecoder creates a decoder with the default receive limits and the
// real-time clock.
func NewDecoder() *Decoder {
	return NewDecoderWith(DefaultMaxFrameReceive, DefaultReceiveTimeout, systemClock{})
}

// NewDecoderWith creates a decoder with an explicit frame size limit,
// receive timeout and clock. The limit covers the encoded frame including
// both markers.
func NewDecoderWith(maxFrame int, timeout time.Duration, clock Clock) *Decoder {
	if maxFrame < 4 {
		maxFrame = 4
	}
	return &Decoder{
		buf:      make([]byte, 0, maxFrame),
		maxFrame: maxFrame,
		timeout:  timeout,
		clock:    clock,
	}
}

// Reset discards any partial frame and returns the decoder to scanning.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.inFrame = false
}

// Buffered returns the number of bytes of the frame in progress, counting
// its start marker. It is zero while scanning between frames, which makes
// it a backpressure signal for the caller.
func (d *Decoder) Buffered() int {
	if !d.inFrame {
		return 0
	}
	return len(d.buf) + 1
}

// ExpireStale discards a partial frame whose last byte arrived longer than
// the receive timeout ago. Returns true when a partial frame was dropped.
// This bounds the memory held by a stuck sender and lets the decoder
// self-heal without application intervention.
func (d *Decoder) ExpireStale() bool {
	if !d.inFrame || d.timeout <= 0 {
		return false
	}
	if d.clock.Now().Sub(d.lastByte) <= d.timeout {
		return false
	}
	d.Reset()
	return true
}

// DecodeByte processes a single byte. It returns a completed frame, or nil
// while a frame is still accumulating. Errors report discarded input
// (oversize or empty frames); the decoder has already recovered and the
// caller may simply continue feeding bytes.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if d.inFrame {
		d.ExpireStale()
	}

	switch b {
	case StartByte:
		// Any partial frame is abandoned: recovery by resynchronization.
		d.Reset()
		d.inFrame = true
		d.lastByte = d.clock.Now()
		return nil, nil

	case EndByte:
		if !d.inFrame {
			// Stray trailer while scanning for a start marker.
			return nil, nil
		}
		if len(d.buf) == 0 {
			d.Reset()
			return nil, fmt.Errorf("empty frame")
		}
		body := make([]byte, len(d.buf))
		copy(body, d.buf)
		d.Reset()
		f := NewFrame(body)
		f.timestamp = d.clock.Now()
		return f, nil

	default:
		if !d.inFrame {
			// Scanning: ignore bytes between frames.
			return nil, nil
		}
		// +2 accounts for the markers against the encoded frame limit.
		if len(d.buf)+2 >= d.maxFrame {
			d.Reset()
			return nil, fmt.Errorf("frame exceeds %d bytes, discarded", d.maxFrame)
		}
		d.buf = append(d.buf, b)
		d.lastByte = d.clock.Now()
		return nil, nil
	}
}
