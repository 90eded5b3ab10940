// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Opencockpit contributors
//
// XPLink - X-Plane Serial Link Toolkit
//
// A CLI tool and Go library for the framed serial protocol spoken
// between cockpit hardware and the simulator-side plugin.

package main

import (
	"os"

	"github.com/opencockpit/xplink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
