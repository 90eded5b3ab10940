// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Opencockpit contributors

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencockpit/xplink/pkg/xplink"
)

var (
	monitorStatsInterval int
	monitorShowInvalid   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded frames in human-readable format",
	Long: `Continuously decode and display XPLink protocol frames as they arrive.

Each frame is shown with timestamp, command name, and labelled fields.
Frames that fail shape validation (wrong field count, non-numeric handle)
are flagged inline. With --stats N, a link statistics summary is printed
every N seconds.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats", 0, "Statistics summary interval in seconds (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorShowInvalid, "show-invalid", false, "Also print frames that fail validation checks")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("XPLink - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := xplink.NewDecoder()
	stats := xplink.NewStatistics()
	buf := make([]byte, 128)

	var lastStats time.Time
	if monitorStatsInterval > 0 {
		lastStats = time.Now()
	}

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// A WebSocket read error means the bridge is gone for good
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				fmt.Print(stats.String())
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			frame, decErr := decoder.DecodeByte(buf[i])
			if decErr != nil {
				stats.DiscardedFrames++
				fmt.Printf("[ERROR] %v\n", decErr)
				continue
			}
			if frame == nil {
				continue
			}

			stats.TotalFrames++
			if errs := xplink.ValidateFrame(frame); len(errs) > 0 {
				stats.MalformedFrames++
				for _, v := range errs {
					fmt.Printf("[INVALID] %s\n", v.Message)
				}
				if !monitorShowInvalid {
					continue
				}
			}
			fmt.Print(xplink.FormatFrame(frame))
		}

		if decoder.ExpireStale() {
			stats.ReceiveTimeouts++
		}

		if monitorStatsInterval > 0 && time.Since(lastStats) >= time.Duration(monitorStatsInterval)*time.Second {
			fmt.Print(stats.String())
			lastStats = time.Now()
		}
	}
}
