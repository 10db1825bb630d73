package cpu

// Shape is the operand layout of an instruction word. SHAPE_N words carry
// no operands.
type Shape int

//go:generate go tool stringer -linecomment -type=Shape
const (
	SHAPE_R = Shape(iota) // R
	SHAPE_I               // I
	SHAPE_S               // S
	SHAPE_B               // B
	SHAPE_U               // U
	SHAPE_J               // J
	SHAPE_N               // N
)

// field extracts a register index. Five bits always fit the enumeration.
func field(word uint32, shift int) Register {
	return Register((word >> shift) & 0b1_1111)
}

// InstrR is the register/register layout.
//
//	31       25 24   20 19   15 14    12 11   7 6      0
//	|  funct7  |  rs2  |  rs1  | funct3 |  rd  | opcode |
type InstrR struct {
	Funct7 uint32
	Rs2    Register
	Rs1    Register
	Funct3 uint32
	Rd     Register
}

// DecodeR extracts the R layout fields of word.
func DecodeR(word uint32) InstrR {
	return InstrR{
		Funct7: (word >> 25) & 0b111_1111,
		Rs2:    field(word, 20),
		Rs1:    field(word, 15),
		Funct3: (word >> 12) & 0b111,
		Rd:     field(word, 7),
	}
}

// Encode returns the operand bits of the instruction.
func (in InstrR) Encode() uint32 {
	return (in.Funct7&0x7f)<<25 | uint32(in.Rs2)<<20 | uint32(in.Rs1)<<15 | (in.Funct3&7)<<12 | uint32(in.Rd)<<7
}

// InstrI is the register/immediate layout.
//
//	31          20 19   15 14    12 11   7 6      0
//	|  imm[11:0]  |  rs1  | funct3 |  rd  | opcode |
type InstrI struct {
	Imm    int32
	Rs1    Register
	Funct3 uint32
	Rd     Register
}

// DecodeI extracts the I layout fields of word. The immediate is
// sign extended from bit 31.
func DecodeI(word uint32) InstrI {
	return InstrI{
		Imm:    int32(word) >> 20,
		Rs1:    field(word, 15),
		Funct3: (word >> 12) & 0b111,
		Rd:     field(word, 7),
	}
}

// Encode returns the operand bits of the instruction.
func (in InstrI) Encode() uint32 {
	return (uint32(in.Imm)&0xfff)<<20 | uint32(in.Rs1)<<15 | (in.Funct3&7)<<12 | uint32(in.Rd)<<7
}

// InstrS is the store layout.
//
//	31       25 24   20 19   15 14    12 11       7 6      0
//	| imm[11:5]|  rs2  |  rs1  | funct3 | imm[4:0] | opcode |
type InstrS struct {
	Imm    int32
	Rs2    Register
	Rs1    Register
	Funct3 uint32
}

// DecodeS extracts the S layout fields of word, joining the split
// immediate before sign extension.
func DecodeS(word uint32) InstrS {
	imm115 := word >> 25
	imm40 := (word >> 7) & 0b1_1111

	imm := (imm115 << 5) | imm40

	return InstrS{
		Imm:    int32(imm<<20) >> 20,
		Rs2:    field(word, 20),
		Rs1:    field(word, 15),
		Funct3: (word >> 12) & 0b111,
	}
}

// Encode returns the operand bits of the instruction.
func (in InstrS) Encode() uint32 {
	imm := uint32(in.Imm)
	return ((imm>>5)&0x7f)<<25 | uint32(in.Rs2)<<20 | uint32(in.Rs1)<<15 | (in.Funct3&7)<<12 | (imm&0x1f)<<7
}

// InstrB is the conditional branch layout. Imm is a byte offset, always even.
//
//	31      30       25 24   20 19   15 14    12 11      8 7       6      0
//	|imm[12]|imm[10:5] |  rs2  |  rs1  | funct3 |imm[4:1] |imm[11]| opcode |
type InstrB struct {
	Imm    int32
	Rs2    Register
	Rs1    Register
	Funct3 uint32
}

// DecodeB extracts the B layout fields of word. The immediate is a
// byte offset with bit 0 always clear.
func DecodeB(word uint32) InstrB {
	imm11 := (word >> 7) & 1
	imm41 := (word >> 8) & 0b1111
	imm105 := (word >> 25) & 0b11_1111
	imm12 := (word >> 31) & 1

	imm := (imm12 << 12) | (imm11 << 11) | (imm105 << 5) | (imm41 << 1)

	return InstrB{
		Imm:    int32(imm<<19) >> 19,
		Rs2:    field(word, 20),
		Rs1:    field(word, 15),
		Funct3: (word >> 12) & 0b111,
	}
}

// Encode returns the operand bits of the instruction.
func (in InstrB) Encode() uint32 {
	imm := uint32(in.Imm)
	return ((imm>>12)&1)<<31 | ((imm>>5)&0x3f)<<25 | uint32(in.Rs2)<<20 | uint32(in.Rs1)<<15 |
		(in.Funct3&7)<<12 | ((imm>>1)&0xf)<<8 | ((imm>>11)&1)<<7
}

// InstrU is the upper immediate layout. Imm keeps its low 12 bits clear.
//
//	31                 12 11   7 6      0
//	|     imm[31:12]     |  rd  | opcode |
type InstrU struct {
	Imm int32
	Rd  Register
}

// DecodeU extracts the U layout fields of word. The immediate keeps its
// position in bits 31:12.
func DecodeU(word uint32) InstrU {
	return InstrU{
		Imm: int32(word &^ 0xfff),
		Rd:  field(word, 7),
	}
}

// Encode returns the operand bits of the instruction.
func (in InstrU) Encode() uint32 {
	return (uint32(in.Imm) &^ 0xfff) | uint32(in.Rd)<<7
}

// InstrJ is the jump layout. Imm is a byte offset, always even.
//
//	31      30        21 20      19        12 11   7 6      0
//	|imm[20]| imm[10:1] |imm[11]| imm[19:12] |  rd  | opcode |
type InstrJ struct {
	Imm int32
	Rd  Register
}

// DecodeJ extracts the J layout fields of word. The immediate is a
// byte offset with bit 0 always clear.
func DecodeJ(word uint32) InstrJ {
	imm1912 := (word >> 12) & 0b1111_1111
	imm11 := (word >> 20) & 1
	imm101 := (word >> 21) & 0b11_1111_1111
	imm20 := (word >> 31) & 1

	imm := (imm20 << 20) | (imm1912 << 12) | (imm11 << 11) | (imm101 << 1)

	return InstrJ{
		Imm: int32(imm<<11) >> 11,
		Rd:  field(word, 7),
	}
}

// Encode returns the operand bits of the instruction.
func (in InstrJ) Encode() uint32 {
	imm := uint32(in.Imm)
	return ((imm>>20)&1)<<31 | ((imm>>1)&0x3ff)<<21 | ((imm>>11)&1)<<20 | ((imm>>12)&0xff)<<12 | uint32(in.Rd)<<7
}
