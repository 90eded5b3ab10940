// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import (
	"fmt"
	"strings"
)

// CommandName returns the human-readable name for a command character.
func CommandName(cmd byte) string {
	switch cmd {
	case CmdSendName:
		return "SEND_NAME"
	case RespName:
		return "NAME"
	case RespVersion:
		return "VERSION"
	case CmdSendRequest:
		return "READY_TO_REGISTER"
	case CmdFlowPause:
		return "FLOW_PAUSE"
	case CmdFlowResume:
		return "FLOW_RESUME"
	case CmdFlowSpeed:
		return "FLOW_SPEED"
	case ReqRegisterDataref:
		return "REGISTER_DATAREF"
	case ReqRegisterCommand:
		return "REGISTER_COMMAND"
	case RespDataref:
		return "DATAREF_HANDLE"
	case RespCommand:
		return "COMMAND_HANDLE"
	case CmdPrintDebug:
		return "PRINT_DEBUG"
	case CmdSpeak:
		return "SPEAK"
	case ReqDatarefTouch:
		return "DATAREF_TOUCH"
	case ReqUpdates:
		return "REQUEST_UPDATES"
	case ReqUpdatesArray:
		return "REQUEST_UPDATES_ARRAY"
	case ReqUpdatesType:
		return "REQUEST_UPDATES_TYPE"
	case ReqUpdatesTypeArray:
		return "REQUEST_UPDATES_TYPE_ARRAY"
	case ReqScaling:
		return "SET_SCALING"
	case CmdSpecial:
		return "SPECIAL"
	case CmdReset:
		return "RESET_REQUEST"
	case UpdateInt:
		return "UPDATE_INT"
	case UpdateFloat:
		return "UPDATE_FLOAT"
	case UpdateIntArray:
		return "UPDATE_INT_ARRAY"
	case UpdateFloatArray:
		return "UPDATE_FLOAT_ARRAY"
	case UpdateString:
		return "UPDATE_STRING"
	case CmdCommandTrigger:
		return "COMMAND_TRIGGER"
	case CmdCommandStart:
		return "COMMAND_START"
	case CmdCommandEnd:
		return "COMMAND_END"
	case CmdExiting:
		return "EXITING"
	default:
		return "UNKNOWN"
	}
}

// TypeName returns the human-readable name for a data type tag.
func TypeName(t DataType) string {
	switch t {
	case TypeUnknown:
		return "unknown"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeFloatArray:
		return "float[]"
	case TypeIntArray:
		return "int[]"
	case TypeData:
		return "data"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// FormatFrame formats a frame into a human-readable line for the monitor.
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	cmd := f.Command()

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s ('%c')", timestamp, CommandName(cmd), cmd)

	n := f.FieldCount()
	for i := 1; i < n; i++ {
		s, _ := f.FieldString(i, 0)
		fmt.Fprintf(&b, " %s", describeField(cmd, i, s))
	}
	b.WriteByte('\n')
	return b.String()
}

// describeField labels well-known field positions per command; everything
// else is shown raw.
func describeField(cmd byte, idx int, value string) string {
	switch cmd {
	case RespDataref, RespCommand:
		if idx == 1 {
			return "handle=" + value
		}
		if idx == 2 {
			return "name=" + quoted(value)
		}
	case UpdateInt, UpdateFloat, UpdateString:
		if idx == 1 {
			return "handle=" + value
		}
		if idx == 2 {
			if cmd == UpdateString {
				return "value=" + quoted(value)
			}
			return "value=" + value
		}
	case UpdateIntArray, UpdateFloatArray:
		switch idx {
		case 1:
			return "handle=" + value
		case 2:
			return "element=" + value
		case 3:
			return "value=" + value
		}
	case ReqUpdates, ReqUpdatesArray:
		switch idx {
		case 1:
			return "handle=" + value
		case 2:
			return "rate=" + value
		case 3:
			return "precision=" + value
		case 4:
			return "element=" + value
		}
	case ReqUpdatesType, ReqUpdatesTypeArray:
		switch idx {
		case 1:
			return "handle=" + value
		case 2:
			return "type=" + value
		case 3:
			return "rate=" + value
		case 4:
			return "precision=" + value
		case 5:
			return "element=" + value
		}
	case ReqRegisterDataref, ReqRegisterCommand, RespName, CmdPrintDebug, CmdSpeak:
		if idx == 1 {
			return quoted(value)
		}
	case CmdCommandTrigger:
		if idx == 1 {
			return "handle=" + value
		}
		if idx == 2 {
			return "count=" + value
		}
	case CmdCommandStart, CmdCommandEnd, ReqDatarefTouch:
		if idx == 1 {
			return "handle=" + value
		}
	case CmdFlowSpeed:
		if idx == 1 {
			return "bytes/sec=" + value
		}
	case ReqScaling:
		switch idx {
		case 1:
			return "handle=" + value
		case 2:
			return "inLow=" + value
		case 3:
			return "inHigh=" + value
		case 4:
			return "outLow=" + value
		case 5:
			return "outHigh=" + value
		}
	}
	return value
}

func quoted(s string) string {
	return `"` + s + `"`
}
