// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now  time.Time
	step time.Duration // optional advance per Now() call
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// feed pushes a byte string through the decoder, failing the test on
// decode errors, and returns all completed frames.
func feed(t *testing.T, d *Decoder, data string) []*Frame {
	t.Helper()
	var frames []*Frame
	for i := 0; i < len(data); i++ {
		f, err := d.DecodeByte(data[i])
		if err != nil {
			t.Fatalf("DecodeByte(%q[%d]) error: %v", data, i, err)
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
	return frames
}

// ============================================================
// Framing Tests
// ============================================================

func TestDecodeSingleFrame(t *testing.T) {
	d := NewDecoderWith(200, 0, newFakeClock())

	frames := feed(t, d, "[N]")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Command() != CmdSendName {
		t.Errorf("Command() = '%c', want 'N'", frames[0].Command())
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d after complete frame, want 0", d.Buffered())
	}
}

func TestDecodeFrameWithFields(t *testing.T) {
	d := NewDecoderWith(200, 0, newFakeClock())

	frames := feed(t, d, "[D,5,sim/test/value]")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if h, ok := f.FieldHandle(1); !ok || h != 5 {
		t.Errorf("FieldHandle(1) = %d, %v; want 5, true", h, ok)
	}
	if s, ok := f.FieldString(2, 0); !ok || s != "sim/test/value" {
		t.Errorf("FieldString(2) = %q, want \"sim/test/value\"", s)
	}
}

func TestBytesBetweenFramesIgnored(t *testing.T) {
	d := NewDecoderWith(200, 0, newFakeClock())

	frames := feed(t, d, "noise)]x[N]garbage[Q]trailing")
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Command() != CmdSendName || frames[1].Command() != CmdSendRequest {
		t.Errorf("commands = '%c','%c', want 'N','Q'", frames[0].Command(), frames[1].Command())
	}
}

func TestStartMarkerResynchronizes(t *testing.T) {
	d := NewDecoderWith(200, 0, newFakeClock())

	// A new start marker abandons the partial frame.
	frames := feed(t, d, "[1,5,99[Q]")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Command() != CmdSendRequest {
		t.Errorf("Command() = '%c', want 'Q'", frames[0].Command())
	}
}

func TestEmptyFrameDiscarded(t *testing.T) {
	d := NewDecoderWith(200, 0, newFakeClock())

	_, err := d.DecodeByte(StartByte)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := d.DecodeByte(EndByte)
	if err == nil {
		t.Error("expected error for empty frame")
	}
	if f != nil {
		t.Error("empty frame should not be dispatched")
	}

	// Decoder recovered.
	frames := feed(t, d, "[X]")
	if len(frames) != 1 || frames[0].Command() != CmdExiting {
		t.Error("decoder did not recover after empty frame")
	}
}

// ============================================================
// Size Limit Tests
// ============================================================

func TestOversizeFrameDiscarded(t *testing.T) {
	const maxFrame = 16
	d := NewDecoderWith(maxFrame, 0, newFakeClock())

	if _, err := d.DecodeByte(StartByte); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sawErr := false
	for i := 0; i < maxFrame*2; i++ {
		f, err := d.DecodeByte('a')
		if f != nil {
			t.Fatal("oversize frame must never be dispatched")
		}
		if err != nil {
			sawErr = true
			break
		}
	}
	if !sawErr {
		t.Fatal("expected oversize error")
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d after oversize reset, want 0", d.Buffered())
	}

	// The next valid frame decodes normally.
	frames := feed(t, d, "[N]")
	if len(frames) != 1 {
		t.Fatal("decoder did not recover after oversize frame")
	}
}

func TestBufferedReportsPartialFrame(t *testing.T) {
	d := NewDecoderWith(200, 0, newFakeClock())

	feed(t, d, "[1,5")
	if got := d.Buffered(); got != 4 {
		t.Errorf("Buffered() = %d mid-frame, want 4", got)
	}

	feed(t, d, ",42]")
	if got := d.Buffered(); got != 0 {
		t.Errorf("Buffered() = %d after frame consumed, want 0", got)
	}
}

// ============================================================
// Receive Timeout Tests
// ============================================================

func TestReceiveTimeoutDiscardsPartialFrame(t *testing.T) {
	clock := newFakeClock()
	d := NewDecoderWith(200, 500*time.Millisecond, clock)

	feed(t, d, "[1,5")
	clock.Advance(600 * time.Millisecond)

	if !d.ExpireStale() {
		t.Fatal("ExpireStale() = false, want true after timeout")
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d after expiry, want 0", d.Buffered())
	}

	// The stale tail is ignored as inter-frame noise; a fresh frame works.
	frames := feed(t, d, ",42][N]")
	if len(frames) != 1 || frames[0].Command() != CmdSendName {
		t.Error("decoder did not recover after receive timeout")
	}
}

func TestNoTimeoutWhileBytesFlow(t *testing.T) {
	clock := newFakeClock()
	d := NewDecoderWith(200, 500*time.Millisecond, clock)

	feed(t, d, "[1,5")
	clock.Advance(100 * time.Millisecond)
	if d.ExpireStale() {
		t.Fatal("partial frame expired before timeout")
	}

	frames := feed(t, d, ",42]")
	if len(frames) != 1 {
		t.Fatal("frame lost despite staying under timeout")
	}
}

// ============================================================
// Chunking Invariance
// ============================================================

func TestChunkingInvariance(t *testing.T) {
	wire := "[4,12,3,1.5000][9,2,hello][k,3,1]"

	decodeAll := func(d *Decoder) []string {
		var bodies []string
		for i := 0; i < len(wire); i++ {
			f, err := d.DecodeByte(wire[i])
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if f != nil {
				bodies = append(bodies, string(f.Body()))
			}
		}
		return bodies
	}

	// The decoder is inherently byte-at-a-time; feeding the same bytes
	// through fresh decoders must always yield identical frames.
	a := decodeAll(NewDecoderWith(200, 0, newFakeClock()))
	b := decodeAll(NewDecoderWith(200, 0, newFakeClock()))

	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("frame counts = %d, %d; want 3, 3", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("frame %d differs: %q vs %q", i, a[i], b[i])
		}
	}
}
