// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Opencockpit contributors

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencockpit/xplink/pkg/xplink"
)

var (
	panelName     string
	panelDatarefs []string
	panelCommands []string
	panelRate     int
)

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Run a reference device client on the connection",
	Long: `Run the device-side engine against a live host or the simulator.

The panel registers the datarefs and commands given by flags when the
host signals ready-to-register, subscribes each dataref at --rate, and
prints every inbound value update. This is the reference for the
Begin/Poll integration contract.`,
	RunE: runPanel,
}

func init() {
	rootCmd.AddCommand(panelCmd)
	panelCmd.Flags().StringVar(&panelName, "name", "XPLink Panel", "Device name announced to the host")
	panelCmd.Flags().StringSliceVar(&panelDatarefs, "dataref", nil, "Dataref names to register and subscribe")
	panelCmd.Flags().StringSliceVar(&panelCommands, "command", nil, "Command names to register")
	panelCmd.Flags().IntVar(&panelRate, "rate", 100, "Subscription rate divider")
}

func runPanel(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("XPLink - Reference Panel\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Device name: %s\n", panelName)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	client := xplink.NewClient(conn)
	handles := make(map[xplink.Handle]string)

	client.Begin(panelName, xplink.HandlerFuncs{
		Init: func() {
			fmt.Println("Host ready, registering...")
			for _, name := range panelDatarefs {
				h := client.RegisterDataRef(name)
				if h == xplink.HandleInvalid {
					fmt.Printf("  dataref %-40s NOT FOUND\n", name)
					continue
				}
				handles[h] = name
				fmt.Printf("  dataref %-40s handle %d\n", name, h)
				if err := client.RequestUpdates(h, panelRate, 0.0001); err != nil {
					fmt.Printf("  subscribe failed: %v\n", err)
				}
			}
			for _, name := range panelCommands {
				h := client.RegisterCommand(name)
				if h == xplink.HandleInvalid {
					fmt.Printf("  command %-40s NOT FOUND\n", name)
					continue
				}
				handles[h] = name
				fmt.Printf("  command %-40s handle %d\n", name, h)
			}
			_ = client.SendDebugMessage(panelName + " registered")
		},
		Stop: func() {
			fmt.Println("Host stopped, handles are stale")
			handles = make(map[xplink.Handle]string)
		},
		Inbound: func(v *xplink.InboundValue) {
			name := handles[v.Handle]
			if name == "" {
				name = fmt.Sprintf("handle %d", v.Handle)
			}
			switch v.Type {
			case xplink.TypeInt:
				fmt.Printf("%-40s = %d\n", name, v.Int)
			case xplink.TypeFloat:
				fmt.Printf("%-40s = %.4f\n", name, v.Float)
			case xplink.TypeIntArray:
				fmt.Printf("%-40s [%d] = %d\n", name, v.Element, v.Int)
			case xplink.TypeFloatArray:
				fmt.Printf("%-40s [%d] = %.4f\n", name, v.Element, v.Float)
			default:
				fmt.Printf("%-40s = %q\n", name, v.String)
			}
		},
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	lastState := xplink.Disconnected
	for {
		select {
		case <-sigChan:
			fmt.Println("\nExiting")
			return nil
		default:
		}

		state := client.Poll()
		if state != lastState {
			fmt.Printf("Connection: %s\n", state)
			lastState = state
		}
	}
}
