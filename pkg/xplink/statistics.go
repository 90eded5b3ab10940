// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import (
	"fmt"
	"time"
)

// Statistics tracks link health counters. The Client updates its own copy
// during Poll; tools decoding a raw byte stream can maintain one directly.
type Statistics struct {
	StartTime time.Time

	TotalFrames     uint64 // complete frames dispatched
	ValueUpdates    uint64 // inbound value update frames
	DiscardedFrames uint64 // oversize or otherwise dropped by the decoder
	MalformedFrames uint64 // complete frames with missing or bad fields
	ReceiveTimeouts uint64 // partial frames expired mid-accumulation
	UnknownCommands uint64 // frames with an unrecognized command byte
}

// NewStatistics creates a tracker starting now.
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset(time.Now())
	return s
}

// Reset zeroes all counters and restarts the rate window.
func (s *Statistics) Reset(now time.Time) {
	*s = Statistics{StartTime: now}
}

// FrameRate returns dispatched frames per second since the last reset.
func (s *Statistics) FrameRate(now time.Time) float64 {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.TotalFrames) / elapsed
}

// ErrorRate returns discarded/malformed/expired frames per second since
// the last reset.
func (s *Statistics) ErrorRate(now time.Time) float64 {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	errs := s.DiscardedFrames + s.MalformedFrames + s.ReceiveTimeouts + s.UnknownCommands
	return float64(errs) / elapsed
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	now := time.Now()
	elapsed := now.Sub(s.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:     %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Value Updates:    %8d\n", s.ValueUpdates)
	if s.DiscardedFrames > 0 {
		result += fmt.Sprintf("Discarded Frames: %8d\n", s.DiscardedFrames)
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed Frames: %8d\n", s.MalformedFrames)
	}
	if s.ReceiveTimeouts > 0 {
		result += fmt.Sprintf("Receive Timeouts: %8d\n", s.ReceiveTimeouts)
	}
	if s.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown Commands: %8d\n", s.UnknownCommands)
	}
	result += fmt.Sprintf("Frame Rate:       %8.1f frames/sec\n", s.FrameRate(now))
	result += fmt.Sprintf("Error Rate:       %8.1f errors/sec\n", s.ErrorRate(now))
	result += "=====================================\n"

	return result
}
