// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Opencockpit contributors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/opencockpit/xplink/pkg/xplink"
)

var (
	replayInput string
	replaySpeed float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Play a capture file back to the connection",
	Long: `Replay a capture file recorded with the record command.

Frames are written to the connection with their original inter-frame
pacing, scaled by --speed (2.0 plays twice as fast, 0 disables pacing
and writes frames back to back).`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayInput, "input", "i", "capture.xpl", "Capture file to read")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 = no pacing)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	file, err := os.Open(replayInput)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %v", err)
	}
	defer file.Close()

	fmt.Printf("XPLink - Replay\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Input: %s\n", replayInput)

	decoder := cbor.NewDecoder(file)
	replayed := 0
	var lastOffset uint64

	for {
		var rec captureRecord
		if err := decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to read capture record: %v", err)
		}

		if replaySpeed > 0 && rec.OffsetMs > lastOffset {
			gap := time.Duration(float64(rec.OffsetMs-lastOffset)/replaySpeed) * time.Millisecond
			time.Sleep(gap)
		}
		lastOffset = rec.OffsetMs

		if _, err := conn.Write(rec.Frame); err != nil {
			return fmt.Errorf("write failed after %d frames: %v", replayed, err)
		}
		replayed++

		if len(rec.Frame) > 2 {
			frame := xplink.NewFrame(rec.Frame[1 : len(rec.Frame)-1])
			fmt.Print(xplink.FormatFrame(frame))
		}
	}

	fmt.Printf("Replayed %d frames\n", replayed)
	return nil
}
