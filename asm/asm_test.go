package asm

import (
	"testing"

	"picovm/opcode"
)

func TestAssembleArithmeticAndHalt(t *testing.T) {
	src := `
.offset #C000h
start:
  load %0, #0005h;
  load %1, #0003h;
  add  %0, %1;
  halt;
.set #3FFEh
.word start
`
	rom, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// start: is at 0xC000. .word start -> written at 0xFFFE-0xC000 offset.
	const base = 0xC000
	if rom[0] != byte(opcode.LoadRegImm) {
		t.Fatalf("expected LoadRegImm at start, got %#x", rom[0])
	}
	wordOff := 0xFFFE - base
	if rom[wordOff] != 0xC0 || rom[wordOff+1] != 0x00 {
		t.Fatalf("expected relocated start address 0xC000, got %02x%02x", rom[wordOff], rom[wordOff+1])
	}
}

func TestAssembleOffsetDoesNotMoveWriteHead(t *testing.T) {
	src := ".set #0 ; .offset #400h ; foo: nop;"
	a := newAssembler(src)
	a.run()
	if len(a.errs) > 0 {
		t.Fatalf("unexpected errors: %v", ErrAsm(a.errs))
	}
	if loc := a.symbols["foo"]; loc != 0x400 {
		t.Fatalf("expected foo = 0x400, got %#x", loc)
	}
	if a.idx != 1 {
		t.Fatalf("expected write head at 1 (one nop byte emitted), got %d", a.idx)
	}
}

func TestAssembleRelocation(t *testing.T) {
	src := `target: .word #DEADh ; load %0, &target;`
	rom, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []byte{0xDE, 0xAD, byte(opcode.LoadRegImm), 0x00, 0x00, 0x00}
	if len(rom) != len(want) {
		t.Fatalf("expected %d bytes, got %d (% x)", len(want), len(rom), rom)
	}
	for i := range want {
		if i == 4 || i == 5 {
			continue // patched to target's address, checked separately below
		}
		if rom[i] != want[i] {
			t.Fatalf("byte %d: got %#x, want %#x", i, rom[i], want[i])
		}
	}
	if rom[4] != 0x00 || rom[5] != 0x00 {
		t.Fatalf("expected relocation to target address 0x0000, got %02x%02x", rom[4], rom[5])
	}
}

func TestAssembleUnresolvedSymbolErrors(t *testing.T) {
	_, err := Assemble("jump &nowhere;")
	if err == nil {
		t.Fatal("expected an error for an unresolved symbol")
	}
	if _, ok := err.(ErrAsm); !ok {
		t.Fatalf("expected ErrAsm, got %T", err)
	}
}

func TestAssembleUnknownMnemonicVariant(t *testing.T) {
	_, err := Assemble("add %0;") // add requires two operands
	if err == nil {
		t.Fatal("expected an operand-mismatch error")
	}
}

func TestAssembleDualRegisterPacking(t *testing.T) {
	rom, err := Assemble("load %3, %7;")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(rom) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(rom))
	}
	if rom[0] != byte(opcode.LoadRegReg) {
		t.Fatalf("expected LoadRegReg, got %#x", rom[0])
	}
	if rom[1] != 0x37 {
		t.Fatalf("expected packed nibble byte 0x37, got %#x", rom[1])
	}
}

func TestAssembleDivByZeroHasNoSpecialCaseAtAssembleTime(t *testing.T) {
	rom, err := Assemble("load %0,#10h; load %1,#0; div %0,%1; halt;")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(rom) == 0 {
		t.Fatal("expected non-empty ROM")
	}
}

func TestDisassembleRoundTrip(t *testing.T) {
	rom, err := Assemble("load %0, #0005h; add %0, #0003h; halt;")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var lines []string
	for pc := 0; pc < len(rom); {
		next, text := Disassemble(rom, pc)
		lines = append(lines, text)
		if next <= pc {
			t.Fatalf("Disassemble made no progress at offset %d", pc)
		}
		pc = next
	}
	want := []string{
		"load %0, #0005h;",
		"add %0, #0003h;",
		"halt;",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d decoded instructions, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestAssembleWithSymbolsExposesLabelTable(t *testing.T) {
	rom, symbols, err := AssembleWithSymbols(".offset #C000h\nfoo: nop;\nbar: halt;\n")
	if err != nil {
		t.Fatalf("AssembleWithSymbols: %v", err)
	}
	if len(rom) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(rom))
	}
	if symbols["foo"] != 0xC000 || symbols["bar"] != 0xC001 {
		t.Fatalf("unexpected symbol table: %v", symbols)
	}
}
