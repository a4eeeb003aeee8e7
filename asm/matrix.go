package asm

import (
	"picovm/lexer"
	"picovm/opcode"
)

// variant is one concrete (opcode, operand-type sequence) belonging to a
// mnemonic.
type variant struct {
	op       opcode.Op
	operands []lexer.Kind
}

// instructionMatrix maps each mnemonic family to its ordered list of
// variants. Matching tries variants in declaration order and picks the
// first whose operand arity and operand-kind sequence exactly matches the
// tokens collected for the current statement.
var instructionMatrix = map[lexer.Mnemonic2][]variant{
	lexer.MnemNop:    {{opcode.NOP, nil}},
	lexer.MnemRet:    {{opcode.Ret, nil}},
	lexer.MnemRti:    {{opcode.Rti, nil}},
	lexer.MnemEnint:  {{opcode.Enint, nil}},
	lexer.MnemDisint: {{opcode.Disint, nil}},
	lexer.MnemHalt:   {{opcode.Halt, nil}},

	lexer.MnemSetHead: {
		{opcode.SetHead, []lexer.Kind{lexer.Immediate}},
		{opcode.SetHead, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemSetBase: {
		{opcode.SetBase, []lexer.Kind{lexer.Immediate}},
		{opcode.SetBase, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemCall: {
		{opcode.Call, []lexer.Kind{lexer.Immediate}},
		{opcode.Call, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemPush: {
		{opcode.Push, []lexer.Kind{lexer.Register}},
	},
	lexer.MnemPop: {
		{opcode.Pop, []lexer.Kind{lexer.Register}},
	},

	lexer.MnemLoad: {
		{opcode.LoadRegReg, []lexer.Kind{lexer.Register, lexer.Register}},
		{opcode.LoadRegImm, []lexer.Kind{lexer.Register, lexer.Immediate}},
		{opcode.LoadRegImm, []lexer.Kind{lexer.Register, lexer.LabelRef}},
		{opcode.LoadRegDeref, []lexer.Kind{lexer.Register, lexer.DirectDeref}},
		{opcode.LoadRegDeref, []lexer.Kind{lexer.Register, lexer.LabelDeref}},
	},
	lexer.MnemStor: {
		{opcode.StorPtrderefImm, []lexer.Kind{lexer.DirectDeref, lexer.Immediate}},
		{opcode.StorPtrderefImm, []lexer.Kind{lexer.DirectDeref, lexer.LabelRef}},
		{opcode.StorPtrderefImm, []lexer.Kind{lexer.LabelDeref, lexer.Immediate}},
		{opcode.StorPtrderefImm, []lexer.Kind{lexer.LabelDeref, lexer.LabelRef}},
		{opcode.StorPtrderefReg, []lexer.Kind{lexer.DirectDeref, lexer.Register}},
		{opcode.StorPtrderefReg, []lexer.Kind{lexer.LabelDeref, lexer.Register}},
	},

	lexer.MnemAdd: {
		{opcode.AddRegReg, []lexer.Kind{lexer.Register, lexer.Register}},
		{opcode.AddRegImm, []lexer.Kind{lexer.Register, lexer.Immediate}},
	},
	lexer.MnemSub: {
		{opcode.SubRegReg, []lexer.Kind{lexer.Register, lexer.Register}},
		{opcode.SubRegImm, []lexer.Kind{lexer.Register, lexer.Immediate}},
	},
	lexer.MnemMul: {
		{opcode.MulRegReg, []lexer.Kind{lexer.Register, lexer.Register}},
		{opcode.MulRegImm, []lexer.Kind{lexer.Register, lexer.Immediate}},
	},
	lexer.MnemDiv: {
		{opcode.DivRegReg, []lexer.Kind{lexer.Register, lexer.Register}},
		{opcode.DivRegImm, []lexer.Kind{lexer.Register, lexer.Immediate}},
	},
	lexer.MnemTest: {
		{opcode.TestRegReg, []lexer.Kind{lexer.Register, lexer.Register}},
		{opcode.TestRegImm, []lexer.Kind{lexer.Register, lexer.Immediate}},
	},

	lexer.MnemJump: {
		{opcode.Branch, []lexer.Kind{lexer.Immediate}},
		{opcode.Branch, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemBeql: {
		{opcode.BranchEqual, []lexer.Kind{lexer.Immediate}},
		{opcode.BranchEqual, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemBneq: {
		{opcode.BranchNotEqual, []lexer.Kind{lexer.Immediate}},
		{opcode.BranchNotEqual, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemBles: {
		{opcode.BranchLessThan, []lexer.Kind{lexer.Immediate}},
		{opcode.BranchLessThan, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemBgrt: {
		{opcode.BranchGreaterThan, []lexer.Kind{lexer.Immediate}},
		{opcode.BranchGreaterThan, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemBlte: {
		{opcode.BranchLessThanEqual, []lexer.Kind{lexer.Immediate}},
		{opcode.BranchLessThanEqual, []lexer.Kind{lexer.LabelRef}},
	},
	lexer.MnemBgte: {
		{opcode.BranchGreaterThanEqual, []lexer.Kind{lexer.Immediate}},
		{opcode.BranchGreaterThanEqual, []lexer.Kind{lexer.LabelRef}},
	},

	lexer.MnemWrite: {
		{opcode.WriteoutImmImm, []lexer.Kind{lexer.Immediate, lexer.DirectDeref}},
		{opcode.WriteoutImmImm, []lexer.Kind{lexer.Immediate, lexer.LabelDeref}},
		{opcode.WriteoutRegImm, []lexer.Kind{lexer.Register, lexer.DirectDeref}},
		{opcode.WriteoutRegImm, []lexer.Kind{lexer.Register, lexer.LabelDeref}},
		{opcode.WriteoutImmReg, []lexer.Kind{lexer.Immediate, lexer.Register}},
		{opcode.WriteoutRegReg, []lexer.Kind{lexer.Register, lexer.Register}},
	},
	lexer.MnemRead: {
		{opcode.ReadinImmImm, []lexer.Kind{lexer.Immediate, lexer.DirectDeref}},
		{opcode.ReadinImmImm, []lexer.Kind{lexer.Immediate, lexer.LabelDeref}},
		{opcode.ReadinRegImm, []lexer.Kind{lexer.Register, lexer.DirectDeref}},
		{opcode.ReadinRegImm, []lexer.Kind{lexer.Register, lexer.LabelDeref}},
		{opcode.ReadinImmReg, []lexer.Kind{lexer.Immediate, lexer.Register}},
		{opcode.ReadinRegReg, []lexer.Kind{lexer.Register, lexer.Register}},
	},
}
