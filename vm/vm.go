// Package vm implements the picovm virtual machine: a flat 64 KiB memory,
// a 16-register file, an 8-bit flag register, a fetch-decode-execute loop,
// a cooperative interrupt subsystem shared with an external producer, and a
// best-effort tick pacer. An Instance is built through functional Options
// and driven by a Run loop, with a shared-state interrupt handshake sitting
// alongside the register file and its fixed memory-mapped vector table.
package vm

import (
	"io"
	"time"

	"picovm/opcode"

	"github.com/pkg/errors"
)

// Instance is one picovm virtual machine: memory, registers, flags and the
// I/O streams and pacing it was configured with. The zero value is not
// usable; construct one with New.
type Instance struct {
	Mem  [opcode.RAMSize]byte
	Regs [opcode.NumRegisters]uint16
	IP   uint16
	Flags byte

	InterruptMask bool
	PerfInt       bool

	interrupt *interruptSlot

	input  io.Reader
	output io.Writer

	pacer    *ticker
	insCount int64

	// Trace, when non-nil, is called after every fetched opcode byte before
	// it is dispatched. Used by the CLI's step-trace mode; nil is the
	// common case and costs nothing extra per step.
	Trace func(ip uint16, op opcode.Op)
}

// Option configures an Instance at construction time.
type Option func(*Instance) error

// Input sets the Reader READIN draws bytes from.
func Input(r io.Reader) Option {
	return func(i *Instance) error { i.input = r; return nil }
}

// Output sets the Writer WRITEOUT sends bytes to.
func Output(w io.Writer) Option {
	return func(i *Instance) error { i.output = w; return nil }
}

// WithTicker installs a pacer that sleeps stepMillis (plus picovm's fixed 2
// microsecond offset) between steps, measured against monotonic time. A
// zero stepMillis makes the pacer a no-op, matching the upstream default.
func WithTicker(stepMillis int) Option {
	return func(i *Instance) error {
		i.pacer = newTicker(time.Duration(stepMillis) * time.Millisecond)
		return nil
	}
}

// WithTrace installs a step-trace hook, invoked with the instruction
// pointer and opcode of every instruction immediately before it executes.
func WithTrace(fn func(ip uint16, op opcode.Op)) Option {
	return func(i *Instance) error { i.Trace = fn; return nil }
}

// New constructs an Instance with memory and registers zeroed, applies
// opts, and leaves IP at zero (callers load a ROM and call ResetVector
// before Run).
func New(opts ...Option) (*Instance, error) {
	i := &Instance{interrupt: newInterruptSlot()}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, errors.Wrap(err, "applying vm.Option")
		}
	}
	if i.pacer == nil {
		i.pacer = newTicker(0)
	}
	return i, nil
}

// LoadROM copies rom into the ROM region at opcode.ROMBase. rom must not
// exceed opcode.ROMLen bytes.
func (i *Instance) LoadROM(rom []byte) error {
	if len(rom) > opcode.ROMLen {
		return errors.Errorf("ROM image of %d bytes exceeds ROM region length %d", len(rom), opcode.ROMLen)
	}
	copy(i.Mem[opcode.ROMBase:], rom)
	return nil
}

// ResetVector reads the 16-bit big-endian startup vector at
// opcode.StartupVector into IP. Call after LoadROM.
func (i *Instance) ResetVector() {
	i.IP = i.get16(opcode.StartupVector)
}

// InstructionCount returns the number of instructions executed so far.
func (i *Instance) InstructionCount() int64 {
	return i.insCount
}

// RequestHalt sets the HALT flag, causing Run to exit at the next
// instruction boundary. Safe to call from a signal handler goroutine
// concurrently with Run: flag bits are only ever observed between steps.
func (i *Instance) RequestHalt() {
	i.setFlag(opcode.HaltF, true)
}

// PostInterrupt is the producer-facing half of the interrupt subsystem: an
// external source (the FIFO listener, typically) calls this to request
// that id be serviced at the next instruction boundary. It blocks until
// the VM's shared slot is free to accept a new interrupt.
func (i *Instance) PostInterrupt(id opcode.InterruptID) {
	i.interrupt.post(id)
}

func (i *Instance) get8(addr uint16) byte {
	return i.Mem[addr]
}

func (i *Instance) set8(addr uint16, v byte) {
	i.Mem[addr] = v
}

func (i *Instance) get16(addr uint16) uint16 {
	hi := uint16(i.Mem[addr])
	lo := uint16(i.Mem[addr+1])
	return hi<<8 | lo
}

func (i *Instance) set16(addr uint16, v uint16) {
	i.Mem[addr] = byte(v >> 8)
	i.Mem[addr+1] = byte(v)
}

func (i *Instance) flagSet(f opcode.Flag) bool {
	return i.Flags&byte(f) != 0
}

func (i *Instance) setFlag(f opcode.Flag, v bool) {
	if v {
		i.Flags |= byte(f)
	} else {
		i.Flags &^= byte(f)
	}
}
