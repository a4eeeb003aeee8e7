// Package asm implements the picovm assembler.
//
// Assemble("nop;") compiles a single statement at a time; statements are
// terminated by ';', directives need none (a ';' after one is ignored). See
// instructionMatrix in matrix.go
// for the full mnemonic-to-opcode table.
//
// Directives:
//
//	.set <imm>      set the write head to an absolute index
//	.offset <imm>   set the virtual offset applied to recorded symbol addresses
//	.word <imm|lbl> emit two bytes big-endian
//	.byte <imm>     emit one byte
//	.ascii "..."    emit raw bytes
//	.asciz "..."    emit raw bytes plus a trailing NUL
package asm
