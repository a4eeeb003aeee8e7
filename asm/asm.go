// Package asm implements picovm's two-pass assembler: source text goes
// through the lexer, the instruction matrix resolves each statement to a
// concrete opcode, and a final relocation pass patches forward label
// references, the same lexer-then-parser-then-relocate shape as any
// two-pass assembler, adapted to a sigil-driven, matrix-matched instruction
// set.
package asm

import (
	"fmt"
	"strings"

	"picovm/lexer"
	"picovm/opcode"

	"github.com/pkg/errors"
)

const maxErrors = 10

// asmError is one accumulated assembler error, carrying enough context to
// report location and offending mnemonic or directive.
type asmError struct {
	Line, Col int
	Msg       string
}

// ErrAsm encapsulates all errors accumulated during an Assemble call.
type ErrAsm []asmError

func (e ErrAsm) Error() string {
	l := make([]string, 0, len(e))
	for _, err := range e {
		l = append(l, fmt.Sprintf("%d:%d: %s", err.Line, err.Col, err.Msg))
	}
	return strings.Join(l, "\n")
}

type unresolvedRef struct {
	at        int
	name      string
	line, col int
}

// Assembler holds the mutable state of a single assembly run: output
// buffer plus write head, virtual offset, symbol table and unresolved
// reference list. An Assembler is single-use; construct a fresh one per
// Assemble call.
type Assembler struct {
	lex *lexer.Lexer

	out        []byte
	idx        int // outbuf_idx: write head, movable via .set
	offset     int // outbuf_offset: virtual offset for .offset
	maxLen     int
	symbols    map[string]int
	unresolved []unresolvedRef
	errs       ErrAsm
}

func newAssembler(src string) *Assembler {
	return &Assembler{
		lex:     lexer.New(src),
		out:     make([]byte, opcode.ROMLen),
		symbols: make(map[string]int),
	}
}

func (a *Assembler) error(line, col int, format string, args ...interface{}) {
	a.errs = append(a.errs, asmError{line, col, errors.Errorf(format, args...).Error()})
}

func (a *Assembler) abort() bool { return len(a.errs) >= maxErrors }

func (a *Assembler) pushByte(b byte) {
	if a.idx >= len(a.out) {
		a.errs = append(a.errs, asmError{0, 0, "output buffer overflow: ROM region exhausted"})
		return
	}
	a.out[a.idx] = b
	a.idx++
	if a.idx > a.maxLen {
		a.maxLen = a.idx
	}
}

func (a *Assembler) pushShort(v int) {
	a.pushByte(byte(v >> 8))
	a.pushByte(byte(v))
}

func (a *Assembler) markUnresolved(name string, line, col int) {
	a.unresolved = append(a.unresolved, unresolvedRef{at: a.idx - 2, name: name, line: line, col: col})
}

// Assemble compiles src into a ROM image. The returned error, if non-nil,
// is always an ErrAsm with up to 10 entries.
func Assemble(src string) ([]byte, error) {
	rom, _, err := AssembleWithSymbols(src)
	return rom, err
}

// AssembleWithSymbols compiles src like Assemble, additionally returning the
// resolved symbol table (label name to absolute address) built along the
// way, for tooling that wants to cross-reference a ROM's bytes with the
// source labels that produced them.
func AssembleWithSymbols(src string) ([]byte, map[string]int, error) {
	a := newAssembler(src)
	a.run()
	if len(a.errs) > 0 {
		if len(a.errs) > maxErrors {
			a.errs = a.errs[:maxErrors]
		}
		return nil, nil, a.errs
	}
	return a.out[:a.maxLen], a.symbols, nil
}

func (a *Assembler) run() {
	for !a.abort() {
		tok, err := a.lex.Next()
		if err != nil {
			a.lexError(err)
			return
		}
		switch tok.Kind {
		case lexer.EOF:
			a.link()
			return
		case lexer.LabelDef:
			a.symbols[tok.Text] = a.idx + a.offset
		case lexer.Directive:
			a.directive(tok)
		case lexer.Mnemonic:
			a.statement(tok)
		case lexer.Semicolon:
			// A ';' after a directive is accepted and ignored.
		default:
			a.error(tok.Line, tok.Col, "unexpected %s, expected a label, directive or mnemonic", tok.Kind)
			return
		}
	}
}

// lexError folds a lexer error into the accumulated error list, preserving
// its source position when the lexer supplied one.
func (a *Assembler) lexError(err error) {
	if le, ok := err.(*lexer.Error); ok {
		a.errs = append(a.errs, asmError{le.Line, le.Col, le.Msg})
		return
	}
	a.errs = append(a.errs, asmError{0, 0, err.Error()})
}

func (a *Assembler) directive(tok lexer.Token) {
	switch tok.Text {
	case "set":
		v, ok := a.expectImmediate(tok)
		if !ok {
			return
		}
		a.idx = v
	case "offset":
		v, ok := a.expectImmediate(tok)
		if !ok {
			return
		}
		a.offset = v
	case "word":
		a.directiveWord(tok)
	case "byte":
		v, ok := a.expectImmediate(tok)
		if !ok {
			return
		}
		if v > 0xFF {
			a.error(tok.Line, tok.Col, ".byte directive has value outside of uint8 range")
			return
		}
		a.pushByte(byte(v))
	case "ascii":
		s, ok := a.expectString(tok)
		if !ok {
			return
		}
		for i := 0; i < len(s); i++ {
			a.pushByte(s[i])
		}
	case "asciz":
		s, ok := a.expectString(tok)
		if !ok {
			return
		}
		for i := 0; i < len(s); i++ {
			a.pushByte(s[i])
		}
		a.pushByte(0)
	default:
		a.error(tok.Line, tok.Col, "unknown directive %q", tok.Text)
	}
}

func (a *Assembler) directiveWord(tok lexer.Token) {
	next, err := a.lex.Next()
	if err != nil {
		a.lexError(err)
		return
	}
	switch next.Kind {
	case lexer.Immediate:
		a.pushShort(next.Num)
	case lexer.LabelRef:
		a.pushShort(0)
		a.markUnresolved(next.Text, next.Line, next.Col)
	default:
		a.error(tok.Line, tok.Col, "expected an immediate value or label reference after .word directive")
	}
}

func (a *Assembler) expectImmediate(directive lexer.Token) (int, bool) {
	next, err := a.lex.Next()
	if err != nil {
		a.lexError(err)
		return 0, false
	}
	if next.Kind != lexer.Immediate {
		a.error(directive.Line, directive.Col, "expected immediate value after .%s directive", directive.Text)
		return 0, false
	}
	return next.Num, true
}

func (a *Assembler) expectString(directive lexer.Token) (string, bool) {
	next, err := a.lex.Next()
	if err != nil {
		a.lexError(err)
		return "", false
	}
	if next.Kind != lexer.String {
		a.error(directive.Line, directive.Col, ".%s directive must be followed by a string literal", directive.Text)
		return "", false
	}
	return next.Text, true
}

// statement handles a mnemonic token: collects operand tokens up to the
// terminating semicolon, matches them against the instruction matrix, and
// emits the encoded instruction.
func (a *Assembler) statement(mnem lexer.Token) {
	variants, ok := instructionMatrix[mnem.Mnem]
	if !ok {
		a.error(mnem.Line, mnem.Col, "unknown instruction %q", mnem.Text)
		return
	}

	var toks []lexer.Token
	for {
		peeked, err := a.lex.Peek()
		if err != nil {
			a.lexError(err)
			return
		}
		if peeked.Kind == lexer.Semicolon || peeked.Kind == lexer.EOF {
			break
		}
		t, err := a.lex.Next()
		if err != nil {
			a.lexError(err)
			return
		}
		if t.Kind == lexer.Comma {
			continue
		}
		toks = append(toks, t)
	}
	if term, err := a.lex.Next(); err != nil {
		a.lexError(err)
		return
	} else if term.Kind != lexer.Semicolon {
		a.error(mnem.Line, mnem.Col, "missing ';' after %q statement", mnem.Text)
		return
	}

	for _, v := range variants {
		if len(v.operands) != len(toks) {
			continue
		}
		if matchOperands(v.operands, toks) {
			a.emit(v, toks)
			return
		}
	}
	a.error(mnem.Line, mnem.Col, "no matching operand form for instruction %q", mnem.Text)
}

func matchOperands(pattern []lexer.Kind, toks []lexer.Token) bool {
	for i, k := range pattern {
		if toks[i].Kind != k {
			return false
		}
	}
	return true
}

// emit writes the variant's opcode byte followed by its encoded operands,
// packing adjacent register operands into a single nibble-pair byte.
func (a *Assembler) emit(v variant, toks []lexer.Token) {
	a.pushByte(byte(v.op))
	for i := 0; i < len(toks); i++ {
		if i < len(toks)-1 && toks[i].Kind == lexer.Register && toks[i+1].Kind == lexer.Register {
			a.pushByte(byte(toks[i].Num<<4 | toks[i+1].Num))
			i++
			continue
		}
		switch toks[i].Kind {
		case lexer.Register:
			a.pushByte(byte(toks[i].Num))
		case lexer.Immediate, lexer.DirectDeref:
			a.pushShort(toks[i].Num)
		case lexer.LabelRef, lexer.LabelDeref:
			a.pushShort(0)
			a.markUnresolved(toks[i].Text, toks[i].Line, toks[i].Col)
		}
	}
}

// link resolves every recorded relocation against the symbol table,
// patching the two-byte hole at each patch site with the symbol's
// big-endian address. An unresolved symbol is a fatal error.
func (a *Assembler) link() {
	for _, u := range a.unresolved {
		loc, ok := a.symbols[u.name]
		if !ok {
			a.error(u.line, u.col, "unresolved symbol %q", u.name)
			continue
		}
		if u.at+1 >= len(a.out) {
			a.error(u.line, u.col, "relocation site for %q falls outside the output buffer", u.name)
			continue
		}
		a.out[u.at] = byte(loc >> 8)
		a.out[u.at+1] = byte(loc)
	}
}
