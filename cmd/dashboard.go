// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Opencockpit contributors

package cmd

import (
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/opencockpit/xplink/pkg/xplink"
)

var (
	dashName     string
	dashDatarefs []string
	dashRate     int
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live terminal dashboard of dataref values",
	Long: `Show subscribed dataref values and link statistics in a terminal UI.

The dashboard runs the device-side engine, registers the datarefs given
by --dataref once the host is ready, and displays every value as it
updates, together with frame and error rates for the link.

Press 'q' to quit.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringVar(&dashName, "name", "XPLink Dashboard", "Device name announced to the host")
	dashboardCmd.Flags().StringSliceVar(&dashDatarefs, "dataref", nil, "Dataref names to register and subscribe")
	dashboardCmd.Flags().IntVar(&dashRate, "rate", 100, "Subscription rate divider")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	client := xplink.NewClient(conn)
	m := initialDashModel(connInfo, dashDatarefs)
	p := tea.NewProgram(m)
	done := make(chan struct{})

	// Engine goroutine: the client is single-threaded, so all Poll and
	// register calls stay here and the model only sees messages.
	go func() {
		client.Begin(dashName, xplink.HandlerFuncs{
			Init: func() {
				for _, name := range dashDatarefs {
					h := client.RegisterDataRef(name)
					p.Send(registeredMsg{name: name, handle: h})
					if h == xplink.HandleInvalid {
						continue
					}
					if err := client.RequestUpdates(h, dashRate, 0.0001); err != nil {
						log.Printf("subscribe %s: %v", name, err)
					}
				}
			},
			Inbound: func(v *xplink.InboundValue) {
				p.Send(valueMsg{value: *v})
			},
		})

		lastState := xplink.Disconnected
		lastStats := time.Now()
		for {
			select {
			case <-done:
				return
			default:
			}

			state := client.Poll()
			if state != lastState {
				lastState = state
				p.Send(connStateMsg{state: state})
			}
			if time.Since(lastStats) >= time.Second {
				lastStats = time.Now()
				p.Send(statsMsg{stats: client.Stats()})
			}
		}
	}()

	_, err = p.Run()
	close(done)
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
