package asm

import (
	"github.com/ezrec/rvperm/cpu"
)

// pseudoMap rewrites pseudo instructions: name -> (operand count, expansion).
// In an expansion, "$0".."$2" are replaced by the operands.
var pseudoMap = map[string](struct {
	args   int
	expand []string
}){
	"nop":  {0, []string{"addi", "zero", "zero", "0"}},
	"li":   {2, []string{"addi", "$0", "zero", "$1"}},
	"mv":   {2, []string{"addi", "$0", "$1", "0"}},
	"not":  {2, []string{"xori", "$0", "$1", "-1"}},
	"neg":  {2, []string{"sub", "$0", "zero", "$1"}},
	"seqz": {2, []string{"sltiu", "$0", "$1", "1"}},
	"snez": {2, []string{"sltu", "$0", "zero", "$1"}},
	"beqz": {2, []string{"beq", "$0", "zero", "$1"}},
	"bnez": {2, []string{"bne", "$0", "zero", "$1"}},
	"j":    {1, []string{"jal", "zero", "$0"}},
	"jr":   {1, []string{"jalr", "zero", "0($0)"}},
	"call": {1, []string{"jal", "ra", "$0"}},
	"ret":  {0, []string{"jalr", "zero", "0(ra)"}},
}

// expandPseudo returns the mnemonic and operands of a statement,
// with pseudo instructions rewritten to real ones.
func expandPseudo(mnemonic string, args []string) (words []string, err error) {
	pseudo, ok := pseudoMap[mnemonic]
	if !ok {
		words = append([]string{mnemonic}, args...)
		return
	}

	if len(args) < pseudo.args {
		err = ErrOpcodeValueMissing
		return
	}
	if len(args) > pseudo.args {
		err = ErrOpcodeExtraArgs
		return
	}

	for _, word := range pseudo.expand {
		switch word {
		case "$0":
			word = args[0]
		case "$1":
			word = args[1]
		case "0($0)":
			word = "0(" + args[0] + ")"
		}
		words = append(words, word)
	}

	return
}

// checkRange verifies lo <= value <= hi.
func checkRange(value, lo, hi int64) (err error) {
	if value < lo || value > hi {
		err = ErrImmediateRange{Value: value, Min: lo, Max: hi}
	}
	return
}

// wantArgs verifies the operand count.
func wantArgs(args []string, count int) (err error) {
	switch {
	case len(args) < count:
		err = ErrOpcodeValueMissing
	case len(args) > count:
		err = ErrOpcodeExtraArgs
	}
	return
}

// regs resolves a list of register operands.
func (asm *Assembler) regs(args ...string) (regs []cpu.Register, err error) {
	for _, arg := range args {
		var reg cpu.Register
		reg, err = asm.regOf(arg)
		if err != nil {
			return
		}
		regs = append(regs, reg)
	}
	return
}

// imm12 resolves a signed 12-bit immediate operand.
func (asm *Assembler) imm12(word string) (imm int32, err error) {
	value, err := asm.valueOf(word)
	if err != nil {
		return
	}
	err = checkRange(value, -2048, 2047)
	imm = int32(value)
	return
}

// offset resolves a pc relative target that must fit bits of signed,
// even displacement.
func (asm *Assembler) offset(here uint64, word string, bits int) (imm int32, err error) {
	value, err := asm.targetOf(here, word)
	if err != nil {
		return
	}
	err = checkRange(value, -(1 << (bits - 1)), (1<<(bits-1))-2)
	if err != nil {
		return
	}
	if value&1 != 0 {
		err = ErrTargetMisaligned
		return
	}
	imm = int32(value)
	return
}

// encode assembles a single instruction at address here.
func (asm *Assembler) encode(here uint64, name string, args []string) (code uint32, err error) {
	ins, ok := cpu.Instructions.Lookup(name)
	if !ok {
		err = ErrOpcodeInvalid
		return
	}

	opcode := ins.Match & cpu.MASK_OPCODE

	var fields uint32

	switch ins.Shape {
	case cpu.SHAPE_N:
		err = wantArgs(args, 0)
	case cpu.SHAPE_R:
		fields, err = asm.encodeR(args)
	case cpu.SHAPE_I:
		switch {
		case opcode == cpu.OPCODE_LOAD:
			fields, err = asm.encodeLoad(args)
		case opcode == cpu.OPCODE_JALR:
			fields, err = asm.encodeJalr(args)
		case ins.Mask == cpu.MASK_FUNCT6:
			fields, err = asm.encodeShift(args)
		default:
			fields, err = asm.encodeI(args)
		}
	case cpu.SHAPE_S:
		fields, err = asm.encodeS(args)
	case cpu.SHAPE_B:
		fields, err = asm.encodeB(here, args)
	case cpu.SHAPE_U:
		fields, err = asm.encodeU(args)
	case cpu.SHAPE_J:
		fields, err = asm.encodeJ(here, args)
	default:
		err = ErrOpcodeInvalid
	}
	if err != nil {
		return
	}

	code = ins.Match | fields
	return
}

// rd, rs1, rs2
func (asm *Assembler) encodeR(args []string) (fields uint32, err error) {
	err = wantArgs(args, 3)
	if err != nil {
		return
	}
	regs, err := asm.regs(args...)
	if err != nil {
		return
	}
	fields = cpu.InstrR{Rd: regs[0], Rs1: regs[1], Rs2: regs[2]}.Encode()
	return
}

// rd, rs1, imm
func (asm *Assembler) encodeI(args []string) (fields uint32, err error) {
	err = wantArgs(args, 3)
	if err != nil {
		return
	}
	regs, err := asm.regs(args[:2]...)
	if err != nil {
		return
	}
	imm, err := asm.imm12(args[2])
	if err != nil {
		return
	}
	fields = cpu.InstrI{Rd: regs[0], Rs1: regs[1], Imm: imm}.Encode()
	return
}

// rd, rs1, shamt
func (asm *Assembler) encodeShift(args []string) (fields uint32, err error) {
	err = wantArgs(args, 3)
	if err != nil {
		return
	}
	regs, err := asm.regs(args[:2]...)
	if err != nil {
		return
	}
	shamt, err := asm.valueOf(args[2])
	if err != nil {
		return
	}
	err = checkRange(shamt, 0, 63)
	if err != nil {
		return
	}
	fields = cpu.InstrI{Rd: regs[0], Rs1: regs[1], Imm: int32(shamt)}.Encode()
	return
}

// rd, imm(rs1)
func (asm *Assembler) encodeLoad(args []string) (fields uint32, err error) {
	err = wantArgs(args, 2)
	if err != nil {
		return
	}
	rd, err := asm.regOf(args[0])
	if err != nil {
		return
	}
	disp, rs1, err := asm.memOf(args[1])
	if err != nil {
		return
	}
	err = checkRange(disp, -2048, 2047)
	if err != nil {
		return
	}
	fields = cpu.InstrI{Rd: rd, Rs1: rs1, Imm: int32(disp)}.Encode()
	return
}

// rs1 | rd, imm(rs1) | rd, rs1, imm
func (asm *Assembler) encodeJalr(args []string) (fields uint32, err error) {
	switch len(args) {
	case 1:
		var rs1 cpu.Register
		rs1, err = asm.regOf(args[0])
		if err != nil {
			return
		}
		fields = cpu.InstrI{Rd: cpu.REG_RA, Rs1: rs1}.Encode()
	case 2:
		fields, err = asm.encodeLoad(args)
	default:
		fields, err = asm.encodeI(args)
	}
	return
}

// rs2, imm(rs1)
func (asm *Assembler) encodeS(args []string) (fields uint32, err error) {
	err = wantArgs(args, 2)
	if err != nil {
		return
	}
	rs2, err := asm.regOf(args[0])
	if err != nil {
		return
	}
	disp, rs1, err := asm.memOf(args[1])
	if err != nil {
		return
	}
	err = checkRange(disp, -2048, 2047)
	if err != nil {
		return
	}
	fields = cpu.InstrS{Rs2: rs2, Rs1: rs1, Imm: int32(disp)}.Encode()
	return
}

// rs1, rs2, target
func (asm *Assembler) encodeB(here uint64, args []string) (fields uint32, err error) {
	err = wantArgs(args, 3)
	if err != nil {
		return
	}
	regs, err := asm.regs(args[:2]...)
	if err != nil {
		return
	}
	imm, err := asm.offset(here, args[2], 13)
	if err != nil {
		return
	}
	fields = cpu.InstrB{Rs1: regs[0], Rs2: regs[1], Imm: imm}.Encode()
	return
}

// rd, imm20
func (asm *Assembler) encodeU(args []string) (fields uint32, err error) {
	err = wantArgs(args, 2)
	if err != nil {
		return
	}
	rd, err := asm.regOf(args[0])
	if err != nil {
		return
	}
	value, err := asm.valueOf(args[1])
	if err != nil {
		return
	}
	err = checkRange(value, -(1 << 19), (1<<20)-1)
	if err != nil {
		return
	}
	fields = cpu.InstrU{Rd: rd, Imm: int32(uint32(value) << 12)}.Encode()
	return
}

// [rd,] target
func (asm *Assembler) encodeJ(here uint64, args []string) (fields uint32, err error) {
	rd := cpu.REG_RA
	switch len(args) {
	case 0:
		err = ErrOpcodeValueMissing
		return
	case 1:
	case 2:
		rd, err = asm.regOf(args[0])
		if err != nil {
			return
		}
		args = args[1:]
	default:
		err = ErrOpcodeExtraArgs
		return
	}
	imm, err := asm.offset(here, args[0], 21)
	if err != nil {
		return
	}
	fields = cpu.InstrJ{Rd: rd, Imm: imm}.Encode()
	return
}
