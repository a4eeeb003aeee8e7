package vm

import (
	"bytes"
	"testing"

	"picovm/asm"
	"picovm/opcode"
)

func assembleOrFatal(t *testing.T, src string) []byte {
	t.Helper()
	rom, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return rom
}

func newRunning(t *testing.T, rom []byte) *Instance {
	t.Helper()
	i, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := i.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	i.ResetVector()
	return i
}

// S1: arithmetic and halt.
func TestArithmeticAndHalt(t *testing.T) {
	rom := assembleOrFatal(t, `
.offset #C000h
start:
  load %0, #0005h;
  load %1, #0003h;
  add  %0, %1;
  halt;
.set #3FFEh
.word start
`)
	i := newRunning(t, rom)
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if i.Regs[0] != 8 {
		t.Fatalf("expected rs[0] == 8, got %d", i.Regs[0])
	}
}

// S2: branching. BRANCH_LESS_THAN is taken when TEST leaves ZERO and PLUS
// both clear, i.e. when a-x is neither zero nor an underflow (2-1 here).
// Only BRANCH_LESS_THAN is exercised here; the deliberately
// duplicated predicate (BRANCH_GREATER_THAN sharing the same test) is
// covered by TestBranchDuplicatedPredicates below.
func TestBranchTaken(t *testing.T) {
	rom := assembleOrFatal(t, `
.offset #C000h
start:
  load %0, #0002h;
  load %1, #0001h;
  test %0, %1;
  bles taken;
  load %2, #0;
  jump done;
taken:
  load %2, #1;
done:
  halt;
.set #3FFEh
.word start
`)
	i := newRunning(t, rom)
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if i.Regs[2] != 1 {
		t.Fatalf("expected the less-than branch to be taken, rs[2] == %d", i.Regs[2])
	}
}

func TestBranchDuplicatedPredicates(t *testing.T) {
	i, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rom := make([]byte, opcode.ROMLen)
	rom[0] = byte(opcode.BranchGreaterThan)
	rom[1], rom[2] = 0xC0, 0x10 // target 0xC010
	rom[0x10] = byte(opcode.Halt)
	if err := i.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	i.IP = opcode.ROMBase
	// ZERO and PLUS both clear: BRANCH_GREATER_THAN must be taken exactly
	// like BRANCH_LESS_THAN would be; the two share the same predicate.
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if i.IP != opcode.ROMBase+0x10+1 {
		t.Fatalf("expected the branch to be taken to 0xC010, ip = %#x", i.IP)
	}
}

// S3: stack round-trip.
func TestStackRoundTrip(t *testing.T) {
	rom := assembleOrFatal(t, `
.offset #C000h
start:
  sethead #8000h;
  load %0, #1234h;
  push %0;
  load %0, #0;
  pop %0;
  halt;
.set #3FFEh
.word start
`)
	i := newRunning(t, rom)
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if i.Regs[0] != 0x1234 {
		t.Fatalf("expected rs[0] == 0x1234, got %#x", i.Regs[0])
	}
	if i.Regs[opcode.RegStackHead] != 0x8000 {
		t.Fatalf("expected rs[sh] restored to 0x8000, got %#x", i.Regs[opcode.RegStackHead])
	}
}

func TestCallReturnsToInstructionAfterCall(t *testing.T) {
	rom := assembleOrFatal(t, `
.offset #C000h
start:
  sethead #8000h;
  call subr;
  load %1, #2;
  halt;
subr:
  load %0, #1;
  ret;
.set #3FFEh
.word start
`)
	i := newRunning(t, rom)
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if i.Regs[0] != 1 || i.Regs[1] != 2 {
		t.Fatalf("expected rs[0]==1 rs[1]==2, got %d %d", i.Regs[0], i.Regs[1])
	}
}

// S4: interrupt service.
func TestInterruptService(t *testing.T) {
	i, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rom := make([]byte, opcode.ROMLen)
	rom[0] = byte(opcode.Enint)
	rom[1] = byte(opcode.Branch)
	rom[2], rom[3] = 0xC0, 0x01 // loop: jump loop (self-loop at 0xC001)
	if err := i.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	i.Regs[opcode.RegStackHead] = 0x9000
	i.set16(opcode.VectorP0, 0xC010)
	i.Mem[0xC010] = byte(opcode.Halt)
	i.IP = opcode.ROMBase

	done := make(chan struct{})
	go func() {
		defer close(done)
		i.PostInterrupt(opcode.P0)
	}()
	<-done

	for n := 0; n < 1000 && !i.flagSet(opcode.HaltF); n++ {
		if err := i.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if !i.flagSet(opcode.HaltF) {
		t.Fatal("expected the VM to reach the interrupt vector's halt within 1000 steps")
	}
}

// S6: DIV by zero.
func TestDivByZero(t *testing.T) {
	rom := assembleOrFatal(t, `
.offset #C000h
start:
  load %0, #0010h;
  load %1, #0;
  div  %0, %1;
  halt;
.set #3FFEh
.word start
`)
	i := newRunning(t, rom)
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if i.Regs[0] != 0 {
		t.Fatalf("expected DIV by zero to yield 0, got %d", i.Regs[0])
	}
	if i.Flags&byte(opcode.Carry) != 0 || i.Flags&byte(opcode.Zero) != 0 {
		t.Fatalf("expected no flags set by a DIV by zero, got flags=%#x", i.Flags)
	}
}

func TestReadinWriteoutRoundTrip(t *testing.T) {
	var out bytes.Buffer
	i, err := New(Input(bytes.NewReader([]byte("hi"))), Output(&out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rom := make([]byte, opcode.ROMLen)
	rom[0] = byte(opcode.ReadinImmImm)
	rom[1], rom[2] = 0x00, 0x02 // count=2
	rom[3], rom[4] = 0xC0, 0x20 // addr=0xC020
	rom[5] = byte(opcode.WriteoutImmImm)
	rom[6], rom[7] = 0x00, 0x02
	rom[8], rom[9] = 0xC0, 0x20
	rom[10] = byte(opcode.Halt)
	if err := i.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	i.IP = opcode.ROMBase
	if err := i.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "hi" {
		t.Fatalf("expected WRITEOUT to echo the READIN bytes, got %q", out.String())
	}
}

func TestBigEndianRoundTrip(t *testing.T) {
	i, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	i.set16(0x1000, 0xBEEF)
	if got := i.get16(0x1000); got != 0xBEEF {
		t.Fatalf("expected 0xBEEF, got %#x", got)
	}
	if i.Mem[0x1000] != 0xBE || i.Mem[0x1001] != 0xEF {
		t.Fatalf("expected big-endian byte order, got %02x %02x", i.Mem[0x1000], i.Mem[0x1001])
	}
}
