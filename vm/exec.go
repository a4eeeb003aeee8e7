package vm

import (
	"github.com/pkg/errors"

	"picovm/opcode"
)

// pushWord writes v as a big-endian word at the stack head and advances it
// by 2.
func (i *Instance) pushWord(v uint16) {
	i.set16(i.Regs[opcode.RegStackHead], v)
	i.Regs[opcode.RegStackHead] += 2
}

// popWord retreats the stack head by 2 and reads a big-endian word there.
func (i *Instance) popWord() uint16 {
	i.Regs[opcode.RegStackHead] -= 2
	return i.get16(i.Regs[opcode.RegStackHead])
}

// pushByteStack and popByteStack mirror pushWord/popWord for the single
// flags byte the interrupt protocol pushes on top of the saved IP; the
// stack head advances/retreats by 1 instead of 2 for these.
func (i *Instance) pushByteStack(b byte) {
	i.set8(i.Regs[opcode.RegStackHead], b)
	i.Regs[opcode.RegStackHead]++
}

func (i *Instance) popByteStack() byte {
	i.Regs[opcode.RegStackHead]--
	return i.get8(i.Regs[opcode.RegStackHead])
}

func (i *Instance) fetchByte() byte {
	b := i.Mem[i.IP]
	i.IP++
	return b
}

func (i *Instance) fetchShort() uint16 {
	v := i.get16(i.IP)
	i.IP += 2
	return v
}

func splitNibbles(b byte) (hi, lo byte) {
	return b >> 4, b & 0x0F
}

// Step services a pending interrupt, then fetches, decodes and executes a
// single instruction. It returns an error only for conditions the VM
// treats as fatal (a synchronous I/O failure on READIN/WRITEOUT, or an
// unknown opcode byte).
func (i *Instance) Step() error {
	i.serviceInterrupt()

	ip := i.IP
	op := opcode.Op(i.fetchByte())
	if i.Trace != nil {
		i.Trace(ip, op)
	}

	if err := i.dispatch(op); err != nil {
		return errors.Wrapf(err, "executing opcode %#x at %#04x", byte(op), ip)
	}

	i.insCount++
	i.pacer.wait()
	return nil
}

// Run steps the VM until the HALT flag is set or Step reports a fatal
// error.
func (i *Instance) Run() error {
	for {
		if err := i.Step(); err != nil {
			return err
		}
		if i.flagSet(opcode.HaltF) {
			return nil
		}
	}
}

func (i *Instance) dispatch(op opcode.Op) error {
	switch op {
	case opcode.NOP:
	case opcode.SWAP:
		// Reserved: no mnemonic in the instruction matrix ever emits this
		// opcode, and nothing in the source material documents its
		// semantics. Treated as a no-op so a ROM containing it by other
		// means (hand-written .byte data, for instance) still runs.

	case opcode.LoadRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.Regs[lo] = i.Regs[hi]
	case opcode.LoadRegImm:
		reg := i.fetchByte()
		i.Regs[reg] = i.fetchShort()
	case opcode.LoadRegDeref:
		reg := i.fetchByte()
		addr := i.fetchShort()
		i.Regs[reg] = i.get16(addr)
	case opcode.LoadRegRegDeref:
		hi, lo := splitNibbles(i.fetchByte())
		i.Regs[hi] = i.get16(i.Regs[lo])
	case opcode.LoadRegRegDerefOff:
		hi, lo := splitNibbles(i.fetchByte())
		off := i.fetchShort()
		i.Regs[hi] = i.get16(i.Regs[lo] + off)

	case opcode.StorPtrderefReg:
		addr := i.fetchShort()
		reg := i.fetchByte()
		i.set16(addr, i.Regs[reg])
	case opcode.StorRegderefReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.set16(i.Regs[hi], i.Regs[lo])
	case opcode.StorRegderefOffReg:
		hi, lo := splitNibbles(i.fetchByte())
		off := i.fetchShort()
		i.set16(i.Regs[hi]+off, i.Regs[lo])
	case opcode.StorPtrderefImm:
		addr := i.fetchShort()
		v := i.fetchShort()
		i.set16(addr, v)
	case opcode.StorRegderefImm:
		reg := i.fetchByte()
		v := i.fetchShort()
		i.set16(i.Regs[reg], v)
	case opcode.StorRegderefOffImm:
		reg := i.fetchByte()
		off := i.fetchShort()
		v := i.fetchShort()
		i.set16(i.Regs[reg]+off, v)

	case opcode.AddRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.arith(hi, uint32(i.Regs[hi])+uint32(i.Regs[lo]))
	case opcode.AddRegImm:
		reg := i.fetchByte()
		imm := i.fetchShort()
		i.arith(reg, uint32(i.Regs[reg])+uint32(imm))
	case opcode.SubRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.arith(hi, uint32(i.Regs[hi])-uint32(i.Regs[lo]))
	case opcode.SubRegImm:
		reg := i.fetchByte()
		imm := i.fetchShort()
		i.arith(reg, uint32(i.Regs[reg])-uint32(imm))
	case opcode.MulRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.arith(hi, uint32(i.Regs[hi])*uint32(i.Regs[lo]))
	case opcode.MulRegImm:
		reg := i.fetchByte()
		imm := i.fetchShort()
		i.arith(reg, uint32(i.Regs[reg])*uint32(imm))
	case opcode.DivRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.div(hi, i.Regs[hi], i.Regs[lo])
	case opcode.DivRegImm:
		reg := i.fetchByte()
		imm := i.fetchShort()
		i.div(reg, i.Regs[reg], imm)

	case opcode.NotReg:
		reg := i.fetchByte()
		i.Regs[reg] = ^i.Regs[reg]
	case opcode.OrRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.Regs[hi] |= i.Regs[lo]
	case opcode.OrRegImm:
		reg := i.fetchByte()
		i.Regs[reg] |= i.fetchShort()
	case opcode.AndRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.Regs[hi] &= i.Regs[lo]
	case opcode.AndRegImm:
		reg := i.fetchByte()
		i.Regs[reg] &= i.fetchShort()
	case opcode.XorRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.Regs[hi] ^= i.Regs[lo]
	case opcode.XorRegImm:
		reg := i.fetchByte()
		i.Regs[reg] ^= i.fetchShort()

	case opcode.TestRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		i.test(i.Regs[hi], i.Regs[lo])
	case opcode.TestRegImm:
		reg := i.fetchByte()
		imm := i.fetchShort()
		i.test(i.Regs[reg], imm)

	case opcode.Call:
		target := i.fetchShort()
		i.pushWord(i.IP)
		i.IP = target
	case opcode.CallDyn:
		reg := i.fetchByte()
		target := i.Regs[reg]
		i.pushWord(i.IP)
		i.IP = target
	case opcode.Ret:
		i.IP = i.popWord()
	case opcode.Rti:
		flags := i.popByteStack()
		i.IP = i.popWord()
		i.Flags = flags
		i.PerfInt = false
	case opcode.Push:
		reg := i.fetchByte()
		i.pushWord(i.Regs[reg])
	case opcode.Pop:
		reg := i.fetchByte()
		i.Regs[reg] = i.popWord()
	case opcode.SetHead:
		i.Regs[opcode.RegStackHead] = i.fetchShort()
	case opcode.SetBase:
		i.Regs[opcode.RegStackBase] = i.fetchShort()

	case opcode.Branch:
		target := i.fetchShort()
		i.IP = target
	case opcode.BranchEqual:
		target := i.fetchShort()
		if i.flagSet(opcode.Zero) {
			i.IP = target
		}
	case opcode.BranchNotEqual:
		target := i.fetchShort()
		if !i.flagSet(opcode.Zero) {
			i.IP = target
		}
	case opcode.BranchLessThan, opcode.BranchGreaterThan:
		// Both predicates are identical in the upstream dispatch switch;
		// the duplication is preserved rather than "fixed".
		target := i.fetchShort()
		if !i.flagSet(opcode.Zero) && !i.flagSet(opcode.Plus) {
			i.IP = target
		}
	case opcode.BranchLessThanEqual, opcode.BranchGreaterThanEqual:
		target := i.fetchShort()
		if i.flagSet(opcode.Zero) || !i.flagSet(opcode.Plus) {
			i.IP = target
		}

	case opcode.ReadinImmImm:
		count := i.fetchShort()
		addr := i.fetchShort()
		return i.readin(addr, count)
	case opcode.ReadinRegImm:
		count := i.Regs[i.fetchByte()]
		addr := i.fetchShort()
		return i.readin(addr, count)
	case opcode.ReadinImmReg:
		count := i.fetchShort()
		addr := i.Regs[i.fetchByte()]
		return i.readin(addr, count)
	case opcode.ReadinRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		return i.readin(i.Regs[lo], i.Regs[hi])

	case opcode.WriteoutImmImm:
		count := i.fetchShort()
		addr := i.fetchShort()
		return i.writeout(addr, count)
	case opcode.WriteoutRegImm:
		count := i.Regs[i.fetchByte()]
		addr := i.fetchShort()
		return i.writeout(addr, count)
	case opcode.WriteoutImmReg:
		count := i.fetchShort()
		addr := i.Regs[i.fetchByte()]
		return i.writeout(addr, count)
	case opcode.WriteoutRegReg:
		hi, lo := splitNibbles(i.fetchByte())
		return i.writeout(i.Regs[lo], i.Regs[hi])

	case opcode.Enint:
		i.InterruptMask = true
	case opcode.Disint:
		i.InterruptMask = false

	case opcode.Halt:
		i.setFlag(opcode.HaltF, true)

	default:
		return errors.Errorf("unknown opcode %#x", byte(op))
	}
	return nil
}

// arith writes the low 16 bits of a widened result into reg and sets CARRY
// iff the widened result overflowed 16 bits.
func (i *Instance) arith(reg byte, widened uint32) {
	i.Regs[reg] = uint16(widened)
	i.setFlag(opcode.Carry, widened > 0xFFFF)
}

// div implements DIV's documented behavior: division by zero yields 0 with
// no flags set; a real divide rounds toward zero and never overflows 16
// bits. DIV leaves every flag, CARRY included, as it was.
func (i *Instance) div(reg byte, a, b uint16) {
	if b == 0 {
		i.Regs[reg] = 0
		return
	}
	i.Regs[reg] = a / b
}

// test computes a-x widened, updating ZERO/PLUS/PARITY without touching
// any register.
func (i *Instance) test(a, x uint16) {
	widened := uint32(a) - uint32(x)
	result := uint16(widened)
	i.setFlag(opcode.Zero, result == 0)
	i.setFlag(opcode.Plus, widened > 0xFFFF)
	i.setFlag(opcode.Parity, result%2 != 0)
}
