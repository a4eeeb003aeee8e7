package asm

import (
	"fmt"
	"strings"

	"picovm/lexer"
	"picovm/opcode"
)

// disasmEntry is the reverse of a matrix variant: given an opcode byte, the
// mnemonic text and operand kinds needed to render it back to source form.
type disasmEntry struct {
	mnemonic string
	operands []lexer.Kind
}

var disasmTable = buildDisasmTable()

// buildDisasmTable inverts instructionMatrix (mnemonic -> variants) into an
// opcode -> (mnemonic, operand kinds) lookup. Upstream's own disassembler
// (disasm.c) was never implemented (its body is a single exit(1)); this one
// is a real decode loop, built the same way the matrix itself is: by
// reading the instruction table.
func buildDisasmTable() map[opcode.Op]disasmEntry {
	t := make(map[opcode.Op]disasmEntry)
	for mnem, variants := range instructionMatrix {
		name := mnemonicName(mnem)
		for _, v := range variants {
			if _, exists := t[v.op]; exists {
				continue // first variant registered wins; arity disambiguates at assemble time only
			}
			t[v.op] = disasmEntry{mnemonic: name, operands: v.operands}
		}
	}
	return t
}

func mnemonicName(m lexer.Mnemonic2) string {
	for name, mn := range lexer.Mnemonics() {
		if mn == m {
			return name
		}
	}
	return "???"
}

// Disassemble decodes one instruction from rom starting at pc and returns
// the offset of the next instruction plus its textual rendering. An
// unrecognized opcode byte renders as a raw .byte directive so the caller
// can keep scanning forward one byte at a time.
func Disassemble(rom []byte, pc int) (next int, text string) {
	if pc >= len(rom) {
		return pc, ""
	}
	op := opcode.Op(rom[pc])
	entry, ok := disasmTable[op]
	if !ok {
		return pc + 1, fmt.Sprintf(".byte #%02xh", rom[pc])
	}

	cursor := pc + 1
	var parts []string
	operands := entry.operands
	for i := 0; i < len(operands); i++ {
		if i < len(operands)-1 && operands[i] == lexer.Register && operands[i+1] == lexer.Register {
			if cursor >= len(rom) {
				break
			}
			b := rom[cursor]
			cursor++
			parts = append(parts, fmt.Sprintf("%%%d", b>>4), fmt.Sprintf("%%%d", b&0x0F))
			i++
			continue
		}
		switch operands[i] {
		case lexer.Register:
			if cursor >= len(rom) {
				break
			}
			parts = append(parts, fmt.Sprintf("%%%d", rom[cursor]))
			cursor++
		case lexer.Immediate, lexer.DirectDeref, lexer.LabelRef, lexer.LabelDeref:
			if cursor+1 >= len(rom) {
				break
			}
			v := int(rom[cursor])<<8 | int(rom[cursor+1])
			cursor += 2
			switch operands[i] {
			case lexer.DirectDeref:
				parts = append(parts, fmt.Sprintf("*%04xh", v))
			default:
				parts = append(parts, fmt.Sprintf("#%04xh", v))
			}
		}
	}

	if len(parts) == 0 {
		return cursor, entry.mnemonic + ";"
	}
	return cursor, entry.mnemonic + " " + strings.Join(parts, ", ") + ";"
}
