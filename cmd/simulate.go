// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Opencockpit contributors

package cmd

import (
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencockpit/xplink/pkg/xplink"
)

var (
	simRate   int
	simReject []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Emulate the host plugin for benching device firmware",
	Long: `Act as the simulator-side plugin on the connection.

The simulator requests the device's name, signals ready-to-register,
answers registration requests with sequential handles (names listed in
--reject get the -1 not-found sentinel), and streams a sine-wave float
update to every subscribed dataref at --rate Hz. Pause, resume and
exiting semantics are honored, so a device under test sees a complete
host conversation.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simRate, "rate", 10, "Update stream rate in Hz")
	simulateCmd.Flags().StringSliceVar(&simReject, "reject", nil, "Names to answer with the not-found sentinel")
}

// simSubscription tracks one requested update stream.
type simSubscription struct {
	handle  xplink.Handle
	element int
}

// simulator is the host-side conversation state.
type simulator struct {
	enc        *xplink.Encoder
	dec        *xplink.Decoder
	nextHandle xplink.Handle
	names      map[string]xplink.Handle
	rejected   map[string]bool
	subs       []simSubscription
	paused     bool
	identified bool
}

func runSimulate(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("XPLink - Host Simulator\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Update rate: %d Hz\n", simRate)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	sim := &simulator{
		enc:        xplink.NewEncoder(conn),
		dec:        xplink.NewDecoder(),
		nextHandle: 1,
		names:      make(map[string]xplink.Handle),
		rejected:   make(map[string]bool),
	}
	for _, name := range simReject {
		sim.rejected[name] = true
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Open the conversation the way the plugin does
	if err := sim.enc.Send(xplink.CmdSendName); err != nil {
		return err
	}

	interval := time.Second / time.Duration(simRate)
	if simRate <= 0 {
		interval = time.Second
	}
	nextUpdate := time.Now().Add(interval)
	start := time.Now()
	buf := make([]byte, 128)

	for {
		select {
		case <-sigChan:
			// Graceful shutdown, as the simulator sends on exit
			_ = sim.enc.Send(xplink.CmdExiting)
			fmt.Println("\nSent exiting signal")
			return nil
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			frame, decErr := sim.dec.DecodeByte(buf[i])
			if decErr != nil || frame == nil {
				continue
			}
			if err := sim.handleFrame(frame); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
		sim.dec.ExpireStale()

		if !sim.paused && time.Now().After(nextUpdate) {
			nextUpdate = time.Now().Add(interval)
			sim.streamUpdates(time.Since(start))
		}
	}
}

func (s *simulator) handleFrame(f *xplink.Frame) error {
	fmt.Print(xplink.FormatFrame(f))

	switch f.Command() {
	case xplink.RespName:
		// Device answered the identity request; invite registrations
		if s.identified {
			return nil
		}
		s.identified = true
		return s.enc.Send(xplink.CmdSendRequest)

	case xplink.ReqRegisterDataref:
		return s.register(f, xplink.RespDataref)

	case xplink.ReqRegisterCommand:
		return s.register(f, xplink.RespCommand)

	case xplink.ReqUpdates, xplink.ReqUpdatesType:
		handle, ok := f.FieldHandle(1)
		if ok {
			s.subs = append(s.subs, simSubscription{handle: handle, element: xplink.NoElement})
		}

	case xplink.ReqUpdatesArray, xplink.ReqUpdatesTypeArray:
		handle, okH := f.FieldHandle(1)
		elem, okE := f.FieldInt(f.FieldCount() - 1)
		if okH && okE {
			s.subs = append(s.subs, simSubscription{handle: handle, element: elem})
		}

	case xplink.CmdFlowPause:
		s.paused = true

	case xplink.CmdFlowResume:
		s.paused = false

	case xplink.CmdReset:
		// Device wants a clean slate: drop all state and re-invite
		s.names = make(map[string]xplink.Handle)
		s.subs = nil
		s.nextHandle = 1
		return s.enc.Send(xplink.CmdSendRequest)
	}

	return nil
}

func (s *simulator) register(f *xplink.Frame, respCmd byte) error {
	name, ok := f.FieldString(1, 0)
	if !ok {
		return nil
	}

	if s.rejected[name] {
		return s.enc.Send(respCmd, xplink.Int(int(xplink.HandleInvalid)), xplink.Str(name))
	}

	handle, seen := s.names[name]
	if !seen {
		handle = s.nextHandle
		s.nextHandle++
		s.names[name] = handle
	}
	return s.enc.Send(respCmd, xplink.Int(int(handle)), xplink.Str(name))
}

// streamUpdates sends one sine-wave sample to every subscription.
func (s *simulator) streamUpdates(elapsed time.Duration) {
	value := math.Sin(elapsed.Seconds())
	for _, sub := range s.subs {
		var err error
		if sub.element == xplink.NoElement {
			err = s.enc.Send(xplink.UpdateFloat,
				xplink.Int(int(sub.handle)), xplink.Float(value))
		} else {
			err = s.enc.Send(xplink.UpdateFloatArray,
				xplink.Int(int(sub.handle)), xplink.Int(sub.element), xplink.Float(value))
		}
		if err != nil {
			log.Printf("Update send error: %v", err)
		}
	}
}
