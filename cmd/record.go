// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Opencockpit contributors

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/opencockpit/xplink/pkg/xplink"
)

// captureRecord is one captured frame in a capture file. Files are a
// plain concatenation of CBOR-encoded records.
type captureRecord struct {
	OffsetMs uint64 `cbor:"0,keyasint"`
	Frame    []byte `cbor:"1,keyasint"` // full wire form including markers
}

var recordOutput string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture valid frames to a file for later replay",
	Long: `Decode frames from the connection and append them to a capture file.

Each record stores the frame's wire bytes and its arrival offset from the
start of the capture, CBOR-encoded. Use the replay command to play a
capture back with original pacing.

Stop with Ctrl+C; the file is flushed before exit.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "capture.xpl", "Capture file to write")
}

func runRecord(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	file, err := os.Create(recordOutput)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %v", err)
	}
	defer file.Close()

	fmt.Printf("XPLink - Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", recordOutput)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	encoder := cbor.NewEncoder(file)
	decoder := xplink.NewDecoder()
	buf := make([]byte, 128)

	start := time.Now()
	captured := 0

	for {
		select {
		case <-sigChan:
			fmt.Printf("\nCaptured %d frames to %s\n", captured, recordOutput)
			return nil
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			if err == ErrConnectionClosed {
				fmt.Printf("\nConnection closed, captured %d frames\n", captured)
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			frame, decErr := decoder.DecodeByte(buf[i])
			if decErr != nil || frame == nil {
				continue
			}

			// Rebuild the wire form; the body keeps its byte stuffing so
			// this is byte-exact.
			wire := make([]byte, 0, len(frame.Body())+2)
			wire = append(wire, xplink.StartByte)
			wire = append(wire, frame.Body()...)
			wire = append(wire, xplink.EndByte)

			rec := captureRecord{
				OffsetMs: uint64(time.Since(start).Milliseconds()),
				Frame:    wire,
			}
			if err := encoder.Encode(rec); err != nil {
				return fmt.Errorf("failed to write capture record: %v", err)
			}
			captured++
			fmt.Print(xplink.FormatFrame(frame))
		}
	}
}
