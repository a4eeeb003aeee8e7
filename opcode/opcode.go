// Package opcode is the single source of truth for picovm's instruction
// encoding: the opcode byte values, the flag-register bit layout, and the
// fixed memory-layout constants (ROM region, interrupt vectors, startup
// vector). Both the assembler and the VM core import this package so that
// neither can drift from the other.
package opcode

// Op is a single opcode byte.
type Op byte

// The opcode catalogue. Values are fixed by the ROM format; do not renumber.
const (
	NOP  Op = 0x00
	SWAP Op = 0x01

	LoadRegReg        Op = 0x10
	LoadRegImm        Op = 0x11
	LoadRegDeref      Op = 0x12
	LoadRegRegDeref    Op = 0x13
	LoadRegRegDerefOff Op = 0x14

	StorPtrderefReg    Op = 0x15
	StorRegderefReg    Op = 0x16
	StorRegderefOffReg Op = 0x17
	StorPtrderefImm    Op = 0x18
	StorRegderefImm    Op = 0x19
	StorRegderefOffImm Op = 0x1A

	AddRegReg Op = 0x30
	AddRegImm Op = 0x31
	SubRegReg Op = 0x32
	SubRegImm Op = 0x33
	MulRegReg Op = 0x34
	MulRegImm Op = 0x35
	DivRegReg Op = 0x36
	DivRegImm Op = 0x37

	NotReg    Op = 0x40
	OrRegReg  Op = 0x41
	OrRegImm  Op = 0x42
	AndRegReg Op = 0x43
	AndRegImm Op = 0x44
	XorRegReg Op = 0x45
	XorRegImm Op = 0x46

	TestRegReg Op = 0x50
	TestRegImm Op = 0x51

	Call    Op = 0xA0
	CallDyn Op = 0xA1
	Ret     Op = 0xA2
	Rti     Op = 0xA3
	Push    Op = 0xA5
	Pop     Op = 0xA6
	SetHead Op = 0xAA
	SetBase Op = 0xAB

	Branch               Op = 0xB0
	BranchEqual          Op = 0xB1
	BranchNotEqual       Op = 0xB2
	BranchLessThan       Op = 0xB3
	BranchGreaterThan    Op = 0xB4
	BranchLessThanEqual  Op = 0xB5
	BranchGreaterThanEqual Op = 0xB6

	ReadinRegReg Op = 0xD0
	ReadinRegImm Op = 0xD1
	ReadinImmReg Op = 0xD2
	ReadinImmImm Op = 0xD3

	WriteoutRegReg Op = 0xD4
	WriteoutRegImm Op = 0xD5
	WriteoutImmReg Op = 0xD6
	WriteoutImmImm Op = 0xD7

	Enint  Op = 0xFA
	Disint Op = 0xFB
	Halt   Op = 0xFF
)

// Flag is a single bit of the VM's 8-bit status register.
type Flag byte

// The flag register bit layout.
const (
	Carry  Flag = 0x01
	Zero   Flag = 0x02
	Plus   Flag = 0x04
	Parity Flag = 0x08
	HaltF  Flag = 0x80
)

// Memory layout constants. These are fixed points in the 64 KiB address
// space; nothing in the VM or assembler may relocate them.
const (
	// RAMSize is the size of the flat, byte-addressable memory.
	RAMSize = 0x10000

	// ROMBase is the address a loaded ROM image is copied to.
	ROMBase = 0xC000
	// ROMLen is the maximum length of a ROM image (0xFFFF-0xC000+1).
	ROMLen = 0x10000 - ROMBase

	// StartupVector holds the big-endian IP the VM begins execution at.
	StartupVector = 0xFFFE

	// Interrupt vector addresses, one 16-bit big-endian word each.
	VectorP0 = 0x0000
	VectorP1 = 0x0002
	VectorP2 = 0x0004
)

// Register indices reserved for stack discipline.
const (
	RegStackHead = 14
	RegStackBase = 15
	NumRegisters = 16
)

// InterruptID identifies which parallel port raised an interrupt.
type InterruptID byte

// The three parallel-port interrupt sources. None is the empty/idle state of
// the shared interrupt slot, not a value ever dispatched to a vector.
const (
	None InterruptID = iota
	P0
	P1
	P2
)

// Vector returns the interrupt vector address for id, and ok=false for None.
func (id InterruptID) Vector() (addr uint16, ok bool) {
	switch id {
	case P0:
		return VectorP0, true
	case P1:
		return VectorP1, true
	case P2:
		return VectorP2, true
	default:
		return 0, false
	}
}
