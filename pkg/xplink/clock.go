// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import "time"

// Clock abstracts the time source so timeout behavior (receive timeout,
// registration timeout, stale-connection detection) is deterministic under
// test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real-time clock used by default.
func SystemClock() Clock { return systemClock{} }
