package cpu

import (
	"fmt"
)

// Bus is the guest memory as seen by load and store handlers.
type Bus interface {
	ReadInto(addr uint64, buf []byte) error
	Write(addr uint64, data []byte) error
}

// Operation executes one instruction word fetched from pc. It returns
// the address execution continues from. An operation that transfers
// control writes the new address to REG_PC itself and returns it; any
// other operation returns pc unchanged.
type Operation func(proc *Processor, bus Bus, word uint32, pc uint64) (next uint64, err error)

// Instruction is a dispatch table entry: word&Mask == Match selects it.
type Instruction struct {
	Mask      uint32
	Match     uint32
	Operation Operation
	Name      string
	Shape     Shape
}

// Table is an ordered dispatch table. Overlapping entries must be
// listed most specific first.
type Table []Instruction

// Decode returns the first entry matching word.
func (table Table) Decode(word uint32) (ins *Instruction, ok bool) {
	for n := range table {
		if word&table[n].Mask == table[n].Match {
			return &table[n], true
		}
	}
	return
}

// Lookup returns the entry named name.
func (table Table) Lookup(name string) (ins *Instruction, ok bool) {
	for n := range table {
		if table[n].Name == name {
			return &table[n], true
		}
	}
	return
}

// Decode resolves word against Instructions.
func Decode(word uint32) (ins *Instruction, ok bool) {
	return Instructions.Decode(word)
}

const (
	MASK_OPCODE = uint32(0x0000_007f)
	MASK_FUNCT3 = MASK_OPCODE | 0x0000_7000
	MASK_FUNCT6 = MASK_FUNCT3 | 0xfc00_0000
	MASK_FUNCT7 = MASK_FUNCT3 | 0xfe00_0000
	MASK_WORD   = uint32(0xffff_ffff)
)

const (
	OPCODE_LOAD    = uint32(0b000_0011)
	OPCODE_OP_IMM  = uint32(0b001_0011)
	OPCODE_AUIPC   = uint32(0b001_0111)
	OPCODE_OP_IMMW = uint32(0b001_1011)
	OPCODE_STORE   = uint32(0b010_0011)
	OPCODE_OP      = uint32(0b011_0011)
	OPCODE_LUI     = uint32(0b011_0111)
	OPCODE_OPW     = uint32(0b011_1011)
	OPCODE_BRANCH  = uint32(0b110_0011)
	OPCODE_JALR    = uint32(0b110_0111)
	OPCODE_JAL     = uint32(0b110_1111)
	OPCODE_SYSTEM  = uint32(0b111_0011)
)

func match3(opcode, funct3 uint32) uint32 {
	return opcode | funct3<<12
}

func match7(opcode, funct3, funct7 uint32) uint32 {
	return opcode | funct3<<12 | funct7<<25
}

// Instructions is the dispatch table of the implemented RV64I subset.
var Instructions = Table{
	{MASK_WORD, 0x0000_0073, opEcall, "ecall", SHAPE_N},
	{MASK_WORD, 0x0010_0073, opEbreak, "ebreak", SHAPE_N},

	{MASK_FUNCT7, match7(OPCODE_OP, 0, 0x00), opAlu(aluAdd), "add", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 0, 0x20), opAlu(aluSub), "sub", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 1, 0x00), opAlu(aluSll), "sll", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 2, 0x00), opAlu(aluSlt), "slt", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 3, 0x00), opAlu(aluSltu), "sltu", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 4, 0x00), opAlu(aluXor), "xor", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 5, 0x00), opAlu(aluSrl), "srl", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 5, 0x20), opAlu(aluSra), "sra", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 6, 0x00), opAlu(aluOr), "or", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OP, 7, 0x00), opAlu(aluAnd), "and", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OPW, 0, 0x00), opAluW(aluAdd), "addw", SHAPE_R},
	{MASK_FUNCT7, match7(OPCODE_OPW, 0, 0x20), opAluW(aluSub), "subw", SHAPE_R},

	{MASK_FUNCT6, match7(OPCODE_OP_IMM, 1, 0x00), opShiftImm(aluSll), "slli", SHAPE_I},
	{MASK_FUNCT6, match7(OPCODE_OP_IMM, 5, 0x00), opShiftImm(aluSrl), "srli", SHAPE_I},
	{MASK_FUNCT6, match7(OPCODE_OP_IMM, 5, 0x20), opShiftImm(aluSra), "srai", SHAPE_I},

	{MASK_FUNCT3, match3(OPCODE_OP_IMM, 0), opAluImm(aluAdd), "addi", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_OP_IMM, 2), opAluImm(aluSlt), "slti", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_OP_IMM, 3), opAluImm(aluSltu), "sltiu", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_OP_IMM, 4), opAluImm(aluXor), "xori", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_OP_IMM, 6), opAluImm(aluOr), "ori", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_OP_IMM, 7), opAluImm(aluAnd), "andi", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_OP_IMMW, 0), opAddiw, "addiw", SHAPE_I},

	{MASK_FUNCT3, match3(OPCODE_LOAD, 0), opLoad[uint8](true), "lb", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_LOAD, 1), opLoad[uint16](true), "lh", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_LOAD, 2), opLoad[uint32](true), "lw", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_LOAD, 3), opLoad[uint64](false), "ld", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_LOAD, 4), opLoad[uint8](false), "lbu", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_LOAD, 5), opLoad[uint16](false), "lhu", SHAPE_I},
	{MASK_FUNCT3, match3(OPCODE_LOAD, 6), opLoad[uint32](false), "lwu", SHAPE_I},

	{MASK_FUNCT3, match3(OPCODE_STORE, 0), opStore[uint8](), "sb", SHAPE_S},
	{MASK_FUNCT3, match3(OPCODE_STORE, 1), opStore[uint16](), "sh", SHAPE_S},
	{MASK_FUNCT3, match3(OPCODE_STORE, 2), opStore[uint32](), "sw", SHAPE_S},
	{MASK_FUNCT3, match3(OPCODE_STORE, 3), opStore[uint64](), "sd", SHAPE_S},

	{MASK_FUNCT3, match3(OPCODE_BRANCH, 0), opBranch(brEq), "beq", SHAPE_B},
	{MASK_FUNCT3, match3(OPCODE_BRANCH, 1), opBranch(brNe), "bne", SHAPE_B},
	{MASK_FUNCT3, match3(OPCODE_BRANCH, 4), opBranch(brLt), "blt", SHAPE_B},
	{MASK_FUNCT3, match3(OPCODE_BRANCH, 5), opBranch(brGe), "bge", SHAPE_B},
	{MASK_FUNCT3, match3(OPCODE_BRANCH, 6), opBranch(brLtu), "bltu", SHAPE_B},
	{MASK_FUNCT3, match3(OPCODE_BRANCH, 7), opBranch(brGeu), "bgeu", SHAPE_B},

	{MASK_FUNCT3, match3(OPCODE_JALR, 0), opJalr, "jalr", SHAPE_I},

	{MASK_OPCODE, OPCODE_JAL, opJal, "jal", SHAPE_J},
	{MASK_OPCODE, OPCODE_LUI, opLui, "lui", SHAPE_U},
	{MASK_OPCODE, OPCODE_AUIPC, opAuipc, "auipc", SHAPE_U},
}

// Disassemble renders word as assembly text, or ".word 0x..." when no
// entry matches.
func Disassemble(word uint32) string {
	ins, ok := Decode(word)
	if !ok {
		return fmt.Sprintf(".word 0x%08x", word)
	}

	switch ins.Shape {
	case SHAPE_R:
		in := DecodeR(word)
		return fmt.Sprintf("%v %v, %v, %v", ins.Name, in.Rd, in.Rs1, in.Rs2)
	case SHAPE_I:
		in := DecodeI(word)
		switch word & MASK_OPCODE {
		case OPCODE_LOAD:
			return fmt.Sprintf("%v %v, %d(%v)", ins.Name, in.Rd, in.Imm, in.Rs1)
		case OPCODE_OP_IMM:
			if ins.Mask == MASK_FUNCT6 {
				return fmt.Sprintf("%v %v, %v, %d", ins.Name, in.Rd, in.Rs1, in.Imm&0x3f)
			}
		}
		return fmt.Sprintf("%v %v, %v, %d", ins.Name, in.Rd, in.Rs1, in.Imm)
	case SHAPE_S:
		in := DecodeS(word)
		return fmt.Sprintf("%v %v, %d(%v)", ins.Name, in.Rs2, in.Imm, in.Rs1)
	case SHAPE_B:
		in := DecodeB(word)
		return fmt.Sprintf("%v %v, %v, %d", ins.Name, in.Rs1, in.Rs2, in.Imm)
	case SHAPE_U:
		in := DecodeU(word)
		return fmt.Sprintf("%v %v, 0x%x", ins.Name, in.Rd, uint32(in.Imm)>>12)
	case SHAPE_J:
		in := DecodeJ(word)
		return fmt.Sprintf("%v %v, %d", ins.Name, in.Rd, in.Imm)
	}

	return ins.Name
}
