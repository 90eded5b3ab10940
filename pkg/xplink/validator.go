// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import "fmt"

// AnomalyType classifies frame validation failures.
type AnomalyType int

// Anomaly values.
const (
	AnomalyUnknownCommand AnomalyType = iota
	AnomalyFieldCount
	AnomalyBadField
)

// ValidationError describes one validation failure in a complete frame.
type ValidationError struct {
	Type    AnomalyType
	Message string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return v.Message
}

// frameShape describes the expected field layout of a command: minimum and
// maximum field count (command token included) and which positions must
// parse as numbers.
type frameShape struct {
	minFields int
	maxFields int
	numeric   []int
}

var frameShapes = map[byte]frameShape{
	CmdSendName:         {1, 1, nil},
	RespName:            {2, 2, nil},
	RespVersion:         {2, 2, nil},
	CmdSendRequest:      {1, 1, nil},
	CmdFlowPause:        {1, 1, nil},
	CmdFlowResume:       {1, 1, nil},
	CmdFlowSpeed:        {2, 2, []int{1}},
	ReqRegisterDataref:  {2, 2, nil},
	ReqRegisterCommand:  {2, 2, nil},
	RespDataref:         {3, 3, []int{1}},
	RespCommand:         {3, 3, []int{1}},
	CmdPrintDebug:       {2, 2, nil},
	CmdSpeak:            {2, 2, nil},
	ReqDatarefTouch:     {2, 2, []int{1}},
	ReqUpdates:          {4, 4, []int{1, 2, 3}},
	ReqUpdatesArray:     {5, 5, []int{1, 2, 3, 4}},
	ReqUpdatesType:      {5, 5, []int{1, 2, 3, 4}},
	ReqUpdatesTypeArray: {6, 6, []int{1, 2, 3, 4, 5}},
	ReqScaling:          {6, 6, []int{1, 2, 3, 4, 5}},
	CmdSpecial:          {2, 4, []int{1}},
	CmdReset:            {1, 1, nil},
	UpdateInt:           {3, 3, []int{1, 2}},
	UpdateFloat:         {3, 3, []int{1, 2}},
	UpdateIntArray:      {4, 4, []int{1, 2, 3}},
	UpdateFloatArray:    {4, 4, []int{1, 2, 3}},
	UpdateString:        {3, 3, []int{1}},
	CmdCommandTrigger:   {3, 3, []int{1, 2}},
	CmdCommandStart:     {2, 2, []int{1}},
	CmdCommandEnd:       {2, 2, []int{1}},
	CmdExiting:          {1, 1, nil},
}

// ValidateFrame checks a complete frame against the expected shape for its
// command. Returns an empty slice for a well-formed frame. Intended for
// monitoring and tests; the engine itself only drops what it cannot parse.
func ValidateFrame(f *Frame) []ValidationError {
	errs := []ValidationError{}

	shape, ok := frameShapes[f.Command()]
	if !ok {
		return append(errs, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("unknown command '%c' (0x%02X)", f.Command(), f.Command()),
		})
	}

	n := f.FieldCount()
	if n < shape.minFields || n > shape.maxFields {
		errs = append(errs, ValidationError{
			Type: AnomalyFieldCount,
			Message: fmt.Sprintf("%s: %d fields (expected %d-%d)",
				CommandName(f.Command()), n, shape.minFields, shape.maxFields),
		})
		return errs
	}

	for _, idx := range shape.numeric {
		if _, ok := f.FieldFloat(idx); !ok {
			errs = append(errs, ValidationError{
				Type: AnomalyBadField,
				Message: fmt.Sprintf("%s: field %d is not numeric",
					CommandName(f.Command()), idx),
			})
		}
	}

	return errs
}
