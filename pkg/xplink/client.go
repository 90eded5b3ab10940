// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Opencockpit contributors

package xplink

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// BuildVersion is reported to the host in response to an identity request.
// Overridable at build time with -ldflags "-X ...xplink.BuildVersion=...".
var BuildVersion = "dev"

// ErrInvalidHandle is returned by operations given an unregistered handle.
var ErrInvalidHandle = errors.New("invalid handle")

// ErrNotStarted is returned when an operation runs before Begin.
var ErrNotStarted = errors.New("client not started, call Begin first")

// ClientConfig tunes a Client. Zero values select the package defaults.
type ClientConfig struct {
	// MaxFrameTransmit and MaxFrameReceive bound the encoded frame length
	// per direction. Both must exceed the longest dataref name or string
	// payload by a safety margin.
	MaxFrameTransmit int
	MaxFrameReceive  int

	// FloatPrecision is the number of decimals for outgoing float fields.
	FloatPrecision int

	// ReceiveTimeout bounds how long a partial inbound frame is retained.
	ReceiveTimeout time.Duration

	// ResponseTimeout bounds registration waits and stale-connection
	// detection.
	ResponseTimeout time.Duration

	// Version is the string sent in the version response. Defaults to
	// BuildVersion.
	Version string

	// Clock is the time source, replaceable for tests.
	Clock Clock
}

func (cfg *ClientConfig) applyDefaults() {
	if cfg.MaxFrameTransmit <= 0 {
		cfg.MaxFrameTransmit = DefaultMaxFrameTransmit
	}
	if cfg.MaxFrameReceive <= 0 {
		cfg.MaxFrameReceive = DefaultMaxFrameReceive
	}
	if cfg.FloatPrecision <= 0 {
		cfg.FloatPrecision = DefaultFloatPrecision
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultResponseTimeout
	}
	if cfg.Version == "" {
		cfg.Version = BuildVersion
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
}

// Client is the device-side protocol engine.
//
// The engine is single-threaded and cooperative: the application calls Poll
// from its own loop and supplies a Handler at Begin. No goroutines, timers
// or locks exist inside the engine; it must not be used from more than one
// goroutine. The only blocking operations are RegisterDataRef and
// RegisterCommand, which pump the link until the host answers or the
// response timeout expires.
//
// The transport's Read must return promptly (n=0, err=nil) when no bytes
// are available; serial ports should be opened with a short read timeout.
type Client struct {
	transport io.ReadWriter
	dec       *Decoder
	enc       *Encoder
	clock     Clock
	cfg       ClientConfig

	handler    Handler
	deviceName string
	started    bool

	state       ConnState
	lastTraffic time.Time

	flowPaused bool
	flowLimit  int64

	// Reused for every inbound dispatch; handlers must copy what they keep.
	inData InboundValue

	// Transport read buffer with a consumption cursor. The cursor lives on
	// the client so a nested service call (registration from inside OnInit)
	// drains the outer call's unprocessed bytes instead of clobbering them.
	readBuf []byte
	readPos int
	readLen int

	// Pending registration wait, at most one in flight.
	awaitCmd    byte
	awaitName   string
	awaitHandle Handle
	awaitDone   bool

	stats Statistics
}

// NewClient creates a client over the given transport with defaults.
func NewClient(transport io.ReadWriter) *Client {
	return NewClientWith(transport, ClientConfig{})
}

// NewClientWith creates a client with explicit configuration.
func NewClientWith(transport io.ReadWriter, cfg ClientConfig) *Client {
	cfg.applyDefaults()
	c := &Client{
		transport: transport,
		cfg:       cfg,
		clock:     cfg.Clock,
		dec:       NewDecoderWith(cfg.MaxFrameReceive, cfg.ReceiveTimeout, cfg.Clock),
		enc:       NewEncoderWith(transport, cfg.MaxFrameTransmit, cfg.FloatPrecision),
		state:     Disconnected,
		readBuf:   make([]byte, 64),
	}
	c.stats.Reset(cfg.Clock.Now())
	return c
}

// Begin registers the device name and the application callbacks. It does
// not touch the wire; the host opens the conversation with an identity
// request.
func (c *Client) Begin(deviceName string, handler Handler) {
	c.deviceName = deviceName
	c.handler = handler
	c.started = true
}

// ConnectionStatus returns the current connection state.
func (c *Client) ConnectionStatus() ConnState {
	return c.state
}

// BufferStatus returns the number of bytes buffered mid-frame, a
// backpressure signal for the caller.
func (c *Client) BufferStatus() int {
	return c.dec.Buffered()
}

// Stats returns a snapshot of the link statistics.
func (c *Client) Stats() Statistics {
	return c.stats
}

// FlowPaused reports the device-local mirror of the pause directive.
// Authoritative enforcement happens on the host.
func (c *Client) FlowPaused() bool { return c.flowPaused }

// FlowLimit reports the last requested byte-rate limit, 0 when unset.
func (c *Client) FlowLimit() int64 { return c.flowLimit }

// Poll drives the engine: reads available transport bytes, dispatches
// complete frames, applies the receive and stale-connection timeouts, and
// returns the connection state. Call it on every iteration of the
// application's loop.
func (c *Client) Poll() ConnState {
	c.service()
	return c.state
}

// service performs one read/dispatch/timeout cycle. Buffered bytes left by
// an interrupted outer cycle are drained before the transport is touched.
func (c *Client) service() {
	if !c.started {
		return
	}

	c.drainRead()
	if c.readPos >= c.readLen {
		n, err := c.transport.Read(c.readBuf)
		_ = err // transport errors surface as silence and the stale timeout
		c.readPos, c.readLen = 0, n
		c.drainRead()
	}

	if c.dec.ExpireStale() {
		c.stats.ReceiveTimeouts++
	}

	if c.state == Connected && c.clock.Now().Sub(c.lastTraffic) > c.cfg.ResponseTimeout {
		c.disconnect()
	}
}

// drainRead feeds buffered transport bytes through the decoder. The cursor
// advances before dispatch, so a handler that re-enters service picks up
// exactly where this call stopped.
func (c *Client) drainRead() {
	for c.readPos < c.readLen {
		b := c.readBuf[c.readPos]
		c.readPos++
		frame, decErr := c.dec.DecodeByte(b)
		if decErr != nil {
			c.stats.DiscardedFrames++
			continue
		}
		if frame != nil {
			c.dispatch(frame)
		}
	}
}

// dispatch routes one complete inbound frame.
func (c *Client) dispatch(f *Frame) {
	c.lastTraffic = c.clock.Now()
	c.stats.TotalFrames++

	switch f.Command() {
	case CmdSendName:
		// Host (re)identification. A name request while connected means
		// the plugin restarted, so the old handles are gone.
		if c.state == Connected {
			c.disconnect()
		}
		c.sendName()
		c.sendVersion()
		c.state = AwaitingHostRequest

	case CmdSendRequest:
		if c.state == Connected {
			return
		}
		if c.handler != nil {
			c.handler.OnInit()
		}
		c.state = Connected

	case RespDataref, RespCommand:
		c.resolveRegistration(f)

	case UpdateInt, UpdateFloat, UpdateIntArray, UpdateFloatArray, UpdateString:
		c.dispatchUpdate(f)

	case CmdExiting:
		c.disconnect()

	default:
		c.stats.UnknownCommands++
	}
}

// disconnect resets local state and fires OnStop once per transition.
func (c *Client) disconnect() {
	wasConnected := c.state == Connected
	c.state = Disconnected
	c.flowPaused = false
	c.flowLimit = 0
	c.dec.Reset()
	if wasConnected && c.handler != nil {
		c.handler.OnStop()
	}
}

func (c *Client) sendName() {
	_ = c.enc.Send(RespName, Str(c.deviceName))
}

func (c *Client) sendVersion() {
	_ = c.enc.Send(RespVersion, Str(c.cfg.Version))
}

// resolveRegistration completes a pending registration wait when the
// response matches the requested name. Anything else (out-of-order or
// unsolicited responses) is dropped.
func (c *Client) resolveRegistration(f *Frame) {
	if c.awaitCmd == 0 || f.Command() != c.awaitCmd || c.awaitDone {
		return
	}
	name, ok := f.FieldString(2, c.cfg.MaxFrameReceive)
	if !ok || name != c.awaitName {
		return
	}
	handle, ok := f.FieldHandle(1)
	if !ok {
		return
	}
	c.awaitHandle = handle
	c.awaitDone = true
}

// dispatchUpdate decodes a value update frame into the reused inbound
// record and invokes the handler synchronously, before resuming frame
// accumulation. Dispatch is handle-passthrough: stale handles are still
// delivered.
func (c *Client) dispatchUpdate(f *Frame) {
	handle, ok := f.FieldHandle(1)
	if !ok {
		c.stats.MalformedFrames++
		return
	}

	c.inData = InboundValue{Handle: handle, Element: NoElement}

	switch f.Command() {
	case UpdateInt:
		v, ok := f.FieldLong(2)
		if !ok {
			c.stats.MalformedFrames++
			return
		}
		c.inData.Type = TypeInt
		c.inData.Int = v

	case UpdateFloat:
		v, ok := f.FieldFloat(2)
		if !ok {
			c.stats.MalformedFrames++
			return
		}
		c.inData.Type = TypeFloat
		c.inData.Float = v

	case UpdateIntArray:
		elem, okE := f.FieldInt(2)
		v, okV := f.FieldLong(3)
		if !okE || !okV {
			c.stats.MalformedFrames++
			return
		}
		c.inData.Type = TypeIntArray
		c.inData.Element = elem
		c.inData.Int = v

	case UpdateFloatArray:
		elem, okE := f.FieldInt(2)
		v, okV := f.FieldFloat(3)
		if !okE || !okV {
			c.stats.MalformedFrames++
			return
		}
		c.inData.Type = TypeFloatArray
		c.inData.Element = elem
		c.inData.Float = v

	case UpdateString:
		s, ok := f.FieldString(2, c.cfg.MaxFrameReceive)
		if !ok {
			c.stats.MalformedFrames++
			return
		}
		c.inData.Type = TypeData
		c.inData.String = s
	}

	c.stats.ValueUpdates++
	if c.handler != nil {
		c.handler.OnInboundValue(&c.inData)
	}
}

// ------------------------------------------------------------------
// Registration
// ------------------------------------------------------------------

// RegisterDataRef resolves a dataref name to a host-assigned handle. It
// blocks, pumping the link, until the host answers or the response timeout
// expires, and returns HandleInvalid on timeout or failure. Other inbound
// traffic (value updates, host requests) is dispatched normally while
// waiting. Only one registration may be in flight at a time.
func (c *Client) RegisterDataRef(name string) Handle {
	return c.register(ReqRegisterDataref, RespDataref, name)
}

// RegisterCommand resolves a command name to a host-assigned handle. Same
// contract as RegisterDataRef.
func (c *Client) RegisterCommand(name string) Handle {
	return c.register(ReqRegisterCommand, RespCommand, name)
}

func (c *Client) register(req, resp byte, name string) Handle {
	if !c.started || name == "" {
		return HandleInvalid
	}
	if c.awaitCmd != 0 {
		// A second registration before the first resolves is a caller
		// error; fail safely rather than corrupt the pending wait.
		return HandleInvalid
	}
	if err := c.enc.Send(req, Str(name)); err != nil {
		return HandleInvalid
	}

	c.awaitCmd = resp
	c.awaitName = name
	c.awaitHandle = HandleInvalid
	c.awaitDone = false

	deadline := c.clock.Now().Add(c.cfg.ResponseTimeout)
	for !c.awaitDone && c.clock.Now().Before(deadline) {
		c.service()
	}

	handle := HandleInvalid
	if c.awaitDone {
		handle = c.awaitHandle
	}
	c.awaitCmd = 0
	c.awaitName = ""
	c.awaitDone = false
	return handle
}

// ------------------------------------------------------------------
// Dataref operations (fire-and-forget)
// ------------------------------------------------------------------

// DatarefWrite writes an integer dataref.
func (c *Client) DatarefWrite(handle Handle, value int) error {
	return c.DatarefWriteLong(handle, int64(value))
}

// DatarefWriteLong writes an integer dataref from an int64.
func (c *Client) DatarefWriteLong(handle Handle, value int64) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(UpdateInt, Int(int(handle)), Long(value))
}

// DatarefWriteElement writes one element of an integer array dataref.
func (c *Client) DatarefWriteElement(handle Handle, value int64, element int) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(UpdateIntArray, Int(int(handle)), Int(element), Long(value))
}

// DatarefWriteFloat writes a float dataref at the configured precision.
func (c *Client) DatarefWriteFloat(handle Handle, value float64) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(UpdateFloat, Int(int(handle)), Float(value))
}

// DatarefWriteFloatElement writes one element of a float array dataref.
func (c *Client) DatarefWriteFloatElement(handle Handle, value float64, element int) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(UpdateFloatArray, Int(int(handle)), Int(element), Float(value))
}

// DatarefTouch forces the host to re-send the dataref's current value.
func (c *Client) DatarefTouch(handle Handle) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(ReqDatarefTouch, Int(int(handle)))
}

// RequestUpdates subscribes to periodic updates of a dataref. rate is the
// host-side divider bounding update frequency; precision is the minimum
// change worth reporting.
func (c *Client) RequestUpdates(handle Handle, rate int, precision float64) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(ReqUpdates, Int(int(handle)), Int(rate), Float(precision))
}

// RequestUpdatesElement subscribes to one element of an array dataref.
func (c *Client) RequestUpdatesElement(handle Handle, rate int, precision float64, element int) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(ReqUpdatesArray, Int(int(handle)), Int(rate), Float(precision), Int(element))
}

// RequestUpdatesType subscribes with an explicit host data type, for
// datarefs that report several types.
func (c *Client) RequestUpdatesType(handle Handle, dataType DataType, rate int, precision float64) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(ReqUpdatesType, Int(int(handle)), Int(int(dataType)), Int(rate), Float(precision))
}

// RequestUpdatesTypeElement subscribes to one element with an explicit
// host data type.
func (c *Client) RequestUpdatesTypeElement(handle Handle, dataType DataType, rate int, precision float64, element int) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(ReqUpdatesTypeArray, Int(int(handle)), Int(int(dataType)), Int(rate), Float(precision), Int(element))
}

// SetScaling asks the host to map dataref values from the input range to
// the output range, offloading the linear mapping.
func (c *Client) SetScaling(handle Handle, inLow, inHigh, outLow, outHigh int64) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(ReqScaling, Int(int(handle)), Long(inLow), Long(inHigh), Long(outLow), Long(outHigh))
}

// ------------------------------------------------------------------
// Command operations
// ------------------------------------------------------------------

// CommandTrigger triggers a command once.
func (c *Client) CommandTrigger(handle Handle) error {
	return c.CommandTriggerCount(handle, 1)
}

// CommandTriggerCount triggers a command count times.
func (c *Client) CommandTriggerCount(handle Handle, count int) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(CmdCommandTrigger, Int(int(handle)), Int(count))
}

// CommandStart begins a held command. Every CommandStart must be balanced
// with exactly one CommandEnd before another CommandStart on the same
// handle; the engine does not enforce the pairing.
func (c *Client) CommandStart(handle Handle) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(CmdCommandStart, Int(int(handle)))
}

// CommandEnd releases a held command.
func (c *Client) CommandEnd(handle Handle) error {
	if err := c.checkHandle(handle); err != nil {
		return err
	}
	return c.enc.Send(CmdCommandEnd, Int(int(handle)))
}

// SimulateKeyPress injects a simulated key press on the host.
func (c *Client) SimulateKeyPress(keyType, key int) error {
	return c.enc.Send(CmdSpecial, Int(SpecialSimKeyPress), Int(keyType), Int(key))
}

// CommandKeyStroke sends a host command keystroke.
func (c *Client) CommandKeyStroke(key int) error {
	return c.enc.Send(CmdSpecial, Int(SpecialCmdKeyStroke), Int(key))
}

// CommandButtonPress presses a host command button. Close every press with
// CommandButtonRelease.
func (c *Client) CommandButtonPress(button int) error {
	return c.enc.Send(CmdSpecial, Int(SpecialCmdButtonPress), Int(button))
}

// CommandButtonRelease releases a host command button.
func (c *Client) CommandButtonRelease(button int) error {
	return c.enc.Send(CmdSpecial, Int(SpecialCmdButtonRelease), Int(button))
}

// ------------------------------------------------------------------
// Messages, reset, flow control
// ------------------------------------------------------------------

// SendDebugMessage asks the host to log the string.
func (c *Client) SendDebugMessage(msg string) error {
	return c.enc.Send(CmdPrintDebug, Str(msg))
}

// SendSpeakMessage asks the host to speak the string.
func (c *Client) SendSpeakMessage(msg string) error {
	return c.enc.Send(CmdSpeak, Str(msg))
}

// SendResetRequest asks the host to reset and restart registration.
func (c *Client) SendResetRequest() error {
	return c.enc.Send(CmdReset)
}

// DataFlowPause asks the host to pause value updates. Repeated calls send
// repeated identical directives.
func (c *Client) DataFlowPause() error {
	err := c.enc.Send(CmdFlowPause)
	if err == nil {
		c.flowPaused = true
	}
	return err
}

// DataFlowResume asks the host to resume value updates.
func (c *Client) DataFlowResume() error {
	err := c.enc.Send(CmdFlowResume)
	if err == nil {
		c.flowPaused = false
	}
	return err
}

// SetDataFlowSpeed requests host-side throttling to at most bytesPerSecond.
// A full frame is always sent; throttling happens between frames.
func (c *Client) SetDataFlowSpeed(bytesPerSecond int64) error {
	err := c.enc.Send(CmdFlowSpeed, Long(bytesPerSecond))
	if err == nil {
		c.flowLimit = bytesPerSecond
	}
	return err
}

func (c *Client) checkHandle(handle Handle) error {
	if !c.started {
		return ErrNotStarted
	}
	if handle < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}
	return nil
}
