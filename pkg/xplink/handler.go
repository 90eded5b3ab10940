// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

// InboundValue is a decoded value update from the host. A single instance
// is reused and overwritten for every dispatch: it is a transient view, and
// the handler must copy out anything it needs to keep.
type InboundValue struct {
	Handle  Handle
	Type    DataType
	Element int // array element index, or NoElement
	Int     int64
	Float   float64
	String  string
}

// Handler receives the engine's application callbacks. All methods run
// synchronously inside Poll (or inside a blocking registration call), so
// they must be fast and non-blocking.
type Handler interface {
	// OnInit fires when the host signals it is ready to accept
	// registrations. All RegisterDataRef/RegisterCommand/RequestUpdates
	// calls belong here; the host drops registrations made earlier.
	OnInit()

	// OnStop fires exactly once when the host exits or goes silent past
	// the response timeout. Handles obtained before OnStop are stale.
	OnStop()

	// OnInboundValue fires for every value update frame. Dispatch is
	// handle-passthrough: updates for stale handles are still delivered,
	// and validity checking is the application's responsibility.
	OnInboundValue(v *InboundValue)
}

// HandlerFuncs adapts plain functions to the Handler interface. Nil
// functions are no-ops.
type HandlerFuncs struct {
	Init    func()
	Stop    func()
	Inbound func(v *InboundValue)
}

// OnInit implements Handler.
func (h HandlerFuncs) OnInit() {
	if h.Init != nil {
		h.Init()
	}
}

// OnStop implements Handler.
func (h HandlerFuncs) OnStop() {
	if h.Stop != nil {
		h.Stop()
	}
}

// OnInboundValue implements Handler.
func (h HandlerFuncs) OnInboundValue(v *InboundValue) {
	if h.Inbound != nil {
		h.Inbound(v)
	}
}
