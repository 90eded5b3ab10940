// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

// Package xplink implements the device side of the XPLink serial protocol.
//
// XPLink is a framed, text-field protocol between cockpit hardware and a
// simulator bridge plugin running on the host. The device registers named
// datarefs and commands, subscribes to rate-limited value updates, pushes
// writes and command triggers, and receives inbound value updates, all from
// a single polling loop with no background goroutines.
//
// This package provides the frame codec, positional field parsing and
// formatting, the connection state machine, and the Client engine.
package xplink

import "time"

// Protocol framing bytes. Fields containing any of these are byte-stuffed
// on the wire as Esc followed by the byte XOR EscXor.
const (
	StartByte = '['
	EndByte   = ']'
	SepByte   = ','
	EscByte   = '\\'
	EscXor    = 0x20
)

// Frame size limits, independently configurable per direction. Both must
// exceed the longest dataref name or string payload by a safety margin.
const (
	DefaultMaxFrameTransmit = 200
	DefaultMaxFrameReceive  = 200
)

// Timing defaults.
const (
	// DefaultReceiveTimeout bounds how long a partial frame may sit in the
	// decoder before it is discarded.
	DefaultReceiveTimeout = 500 * time.Millisecond

	// DefaultResponseTimeout is how long registration waits for the host.
	// Large because the host may still be mid-scenario-load when it asks
	// the device to register.
	DefaultResponseTimeout = 90000 * time.Millisecond

	// DefaultFloatPrecision is the number of decimals used when formatting
	// float fields. More decimals increases dataflow.
	DefaultFloatPrecision = 4

	// DefaultBaudRate must match the plugin configuration.
	DefaultBaudRate = 115200
)

// Handle identifies a registered dataref or command on the host. Handles
// are assigned by the host and echoed back in registration responses; the
// device never constructs handle values itself.
type Handle int

// HandleInvalid is returned when registration fails or times out.
const HandleInvalid Handle = -1

// Command characters. Uppercase generally host to device, lowercase
// generally device to host.
const (
	CmdSendName    = 'N' // host requests device identity
	RespName       = 'n' // device name as passed to Begin
	RespVersion    = 'v' // device build version string
	CmdSendRequest = 'Q' // host is ready to accept registrations

	CmdFlowPause  = 'p'
	CmdFlowResume = 'q'
	CmdFlowSpeed  = 'f' // maximum bytes per second from host

	ReqRegisterDataref = 'b'
	ReqRegisterCommand = 'm'
	RespDataref        = 'D' // handle (or -1), name
	RespCommand        = 'C' // handle (or -1), name

	CmdPrintDebug = 'g'
	CmdSpeak      = 's'

	ReqDatarefTouch     = 'd' // force a refresh of one dataref
	ReqUpdates          = 'r' // handle, rate, precision
	ReqUpdatesArray     = 't' // handle, rate, precision, element
	ReqUpdatesType      = 'y' // handle, type, rate, precision
	ReqUpdatesTypeArray = 'w' // handle, type, rate, precision, element
	ReqScaling          = 'u' // handle, inLow, inHigh, outLow, outHigh

	CmdSpecial = '$' // sub-opcode + parameters
	CmdReset   = 'z' // request reset and re-registration

	UpdateInt        = '1'
	UpdateFloat      = '2'
	UpdateIntArray   = '3'
	UpdateFloatArray = '4'
	UpdateString     = '9'

	CmdCommandTrigger = 'k' // handle, count
	CmdCommandStart   = 'i'
	CmdCommandEnd     = 'j'

	CmdExiting = 'X' // host shutdown signal
)

// Special sub-opcodes multiplexed under CmdSpecial.
const (
	SpecialSimKeyPress      = 1
	SpecialCmdKeyStroke     = 2
	SpecialCmdButtonPress   = 3
	SpecialCmdButtonRelease = 4
)

// DataType tags mirror the host SDK type flags. Bitmask-capable, though
// typed update requests only ever carry a single tag.
type DataType int

// Data type values from the host SDK.
const (
	TypeUnknown    DataType = 0
	TypeInt        DataType = 1
	TypeFloat      DataType = 2
	TypeDouble     DataType = 4
	TypeFloatArray DataType = 8
	TypeIntArray   DataType = 16
	TypeData       DataType = 32
)

// ConnState is the connection status reported by Poll.
type ConnState int

// Connection states.
const (
	// Disconnected is the initial state; no host traffic seen, or the host
	// has exited or gone silent past the response timeout.
	Disconnected ConnState = iota

	// AwaitingHostRequest means the host has asked for the device name but
	// has not yet signalled ready-to-register.
	AwaitingHostRequest

	// Connected means OnInit has fired and registrations are live.
	Connected
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case AwaitingHostRequest:
		return "AWAITING_HOST"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// NoElement marks an inbound value that is not an array element.
const NoElement = -1
