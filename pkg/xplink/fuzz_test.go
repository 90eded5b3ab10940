// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomString produces 0-24 bytes including frame specials and control
// characters, to exercise the byte stuffing.
func randomString(rng *rand.Rand) string {
	n := rng.Intn(25)
	b := make([]byte, n)
	for i := range b {
		switch rng.Intn(6) {
		case 0:
			b[i] = StartByte
		case 1:
			b[i] = EndByte
		case 2:
			b[i] = SepByte
		case 3:
			b[i] = EscByte
		default:
			b[i] = byte(32 + rng.Intn(95))
		}
	}
	return string(b)
}

// TestFuzzFieldRoundTrip encodes random frames and verifies every field
// survives a byte-by-byte decode.
func TestFuzzFieldRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoderWith(4096, 0, newFakeClock())

	for round := 0; round < rounds; round++ {
		nFields := rng.Intn(5)
		fields := make([]Field, nFields)
		wantInts := make(map[int]int64)
		wantFloats := make(map[int]float64)
		wantStrs := make(map[int]string)

		for i := 0; i < nFields; i++ {
			switch rng.Intn(3) {
			case 0:
				v := rng.Int63n(1 << 40)
				if rng.Intn(2) == 0 {
					v = -v
				}
				fields[i] = Long(v)
				wantInts[i+1] = v
			case 1:
				v := float64(rng.Intn(2000000)-1000000) / 1000.0
				fields[i] = Float(v)
				wantFloats[i+1] = v
			case 2:
				s := randomString(rng)
				fields[i] = Str(s)
				wantStrs[i+1] = s
			}
		}

		wire := AppendFrame(nil, 4, CmdPrintDebug, fields...)

		var frame *Frame
		for _, b := range wire {
			f, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("round %d: decode error: %v (wire %q)", round, err, wire)
			}
			if f != nil {
				frame = f
			}
		}
		if frame == nil {
			t.Fatalf("round %d: no frame decoded (wire %q)", round, wire)
		}
		if frame.FieldCount() != nFields+1 {
			t.Fatalf("round %d: field count = %d, want %d (wire %q)",
				round, frame.FieldCount(), nFields+1, wire)
		}

		for idx, want := range wantInts {
			got, ok := frame.FieldLong(idx)
			if !ok || got != want {
				t.Fatalf("round %d: FieldLong(%d) = %d, %v; want %d", round, idx, got, ok, want)
			}
		}
		for idx, want := range wantFloats {
			got, ok := frame.FieldFloat(idx)
			if !ok {
				t.Fatalf("round %d: FieldFloat(%d) failed", round, idx)
			}
			if diff := got - want; diff > 0.0001 || diff < -0.0001 {
				t.Fatalf("round %d: FieldFloat(%d) = %v, want %v", round, idx, got, want)
			}
		}
		for idx, want := range wantStrs {
			got, ok := frame.FieldString(idx, 0)
			if !ok || got != want {
				t.Fatalf("round %d: FieldString(%d) = %q, %v; want %q", round, idx, got, ok, want)
			}
		}
	}
}

// TestFuzzDecoderSurvivesGarbage feeds random bytes mixed with valid
// frames and verifies the decoder never panics, never dispatches a
// corrupted command, and always recovers to decode the next valid frame.
func TestFuzzDecoderSurvivesGarbage(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoderWith(DefaultMaxFrameReceive, 0, newFakeClock())

	for round := 0; round < rounds; round++ {
		// Random garbage burst, possibly containing markers.
		garbage := make([]byte, rng.Intn(64))
		for i := range garbage {
			garbage[i] = byte(rng.Intn(256))
		}
		for _, b := range garbage {
			_, _ = d.DecodeByte(b)
		}

		// A fresh valid frame must always get through: its leading start
		// marker abandons whatever the garbage left behind.
		wire := AppendFrame(nil, 4, UpdateInt, Int(round), Long(42))
		var frame *Frame
		for _, b := range wire {
			f, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("round %d: decode error on valid frame: %v", round, err)
			}
			if f != nil {
				frame = f
			}
		}
		if frame == nil {
			t.Fatalf("round %d: decoder failed to recover from garbage", round)
		}
		if frame.Command() != UpdateInt {
			t.Fatalf("round %d: command = '%c', want '1'", round, frame.Command())
		}
		if h, ok := frame.FieldHandle(1); !ok || int(h) != round {
			t.Fatalf("round %d: handle = %d, want %d", round, h, round)
		}
	}
}
