package cpu

import (
	"golang.org/x/exp/constraints"

	"github.com/ezrec/rvperm/mmu"
)

// aluFunc computes rd from two operands.
type aluFunc func(a, b uint64) uint64

func aluAdd(a, b uint64) uint64 { return a + b }
func aluSub(a, b uint64) uint64 { return a - b }
func aluSll(a, b uint64) uint64 { return a << (b & 0x3f) }
func aluSrl(a, b uint64) uint64 { return a >> (b & 0x3f) }
func aluSra(a, b uint64) uint64 { return uint64(int64(a) >> (b & 0x3f)) }
func aluXor(a, b uint64) uint64 { return a ^ b }
func aluOr(a, b uint64) uint64  { return a | b }
func aluAnd(a, b uint64) uint64 { return a & b }

func aluSlt(a, b uint64) uint64 {
	if int64(a) < int64(b) {
		return 1
	}
	return 0
}

func aluSltu(a, b uint64) uint64 {
	if a < b {
		return 1
	}
	return 0
}

// sext32 sign extends the low 32 bits of value.
func sext32(value uint64) uint64 {
	return uint64(int64(int32(value)))
}

// jumpTo redirects control flow to target.
func jumpTo(proc *Processor, target uint64) (next uint64, err error) {
	if target%INSTRUCTION_WIDTH != 0 {
		err = ErrMisaligned
		return
	}

	proc.SetReg(REG_PC, target)
	next = target
	return
}

func opAlu(alu aluFunc) Operation {
	return func(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
		in := DecodeR(word)
		proc.SetReg(in.Rd, alu(proc.Reg(in.Rs1), proc.Reg(in.Rs2)))
		return pc, nil
	}
}

func opAluW(alu aluFunc) Operation {
	return func(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
		in := DecodeR(word)
		proc.SetReg(in.Rd, sext32(alu(proc.Reg(in.Rs1), proc.Reg(in.Rs2))))
		return pc, nil
	}
}

func opAluImm(alu aluFunc) Operation {
	return func(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
		in := DecodeI(word)
		proc.SetReg(in.Rd, alu(proc.Reg(in.Rs1), uint64(int64(in.Imm))))
		return pc, nil
	}
}

func opShiftImm(alu aluFunc) Operation {
	return func(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
		in := DecodeI(word)
		shamt := uint64(in.Imm) & 0x3f
		proc.SetReg(in.Rd, alu(proc.Reg(in.Rs1), shamt))
		return pc, nil
	}
}

func opAddiw(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
	in := DecodeI(word)
	proc.SetReg(in.Rd, sext32(proc.Reg(in.Rs1)+uint64(int64(in.Imm))))
	return pc, nil
}

func opLoad[T constraints.Unsigned](signed bool) Operation {
	return func(proc *Processor, bus Bus, word uint32, pc uint64) (next uint64, err error) {
		in := DecodeI(word)
		addr := proc.Reg(in.Rs1) + uint64(int64(in.Imm))

		raw, err := mmu.ReadUint[T](bus, addr)
		if err != nil {
			return
		}

		value := uint64(raw)
		if signed {
			shift := 64 - 8*mmu.Width[T]()
			value = uint64(int64(value<<shift) >> shift)
		}

		proc.SetReg(in.Rd, value)
		next = pc
		return
	}
}

func opStore[T constraints.Unsigned]() Operation {
	return func(proc *Processor, bus Bus, word uint32, pc uint64) (next uint64, err error) {
		in := DecodeS(word)
		addr := proc.Reg(in.Rs1) + uint64(int64(in.Imm))

		err = mmu.WriteUint(bus, addr, T(proc.Reg(in.Rs2)))
		if err != nil {
			return
		}

		next = pc
		return
	}
}

// brFunc decides whether a branch is taken.
type brFunc func(a, b uint64) bool

func brEq(a, b uint64) bool  { return a == b }
func brNe(a, b uint64) bool  { return a != b }
func brLt(a, b uint64) bool  { return int64(a) < int64(b) }
func brGe(a, b uint64) bool  { return int64(a) >= int64(b) }
func brLtu(a, b uint64) bool { return a < b }
func brGeu(a, b uint64) bool { return a >= b }

func opBranch(taken brFunc) Operation {
	return func(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
		in := DecodeB(word)
		if !taken(proc.Reg(in.Rs1), proc.Reg(in.Rs2)) {
			return pc, nil
		}
		return jumpTo(proc, pc+uint64(int64(in.Imm)))
	}
}

func opJal(proc *Processor, bus Bus, word uint32, pc uint64) (next uint64, err error) {
	in := DecodeJ(word)
	target := pc + uint64(int64(in.Imm))

	if target%INSTRUCTION_WIDTH != 0 {
		err = ErrMisaligned
		return
	}

	proc.SetReg(in.Rd, pc+INSTRUCTION_WIDTH)
	return jumpTo(proc, target)
}

func opJalr(proc *Processor, bus Bus, word uint32, pc uint64) (next uint64, err error) {
	in := DecodeI(word)
	target := (proc.Reg(in.Rs1) + uint64(int64(in.Imm))) &^ 1

	if target%INSTRUCTION_WIDTH != 0 {
		err = ErrMisaligned
		return
	}

	proc.SetReg(in.Rd, pc+INSTRUCTION_WIDTH)
	return jumpTo(proc, target)
}

func opLui(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
	in := DecodeU(word)
	proc.SetReg(in.Rd, uint64(int64(in.Imm)))
	return pc, nil
}

func opAuipc(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
	in := DecodeU(word)
	proc.SetReg(in.Rd, pc+uint64(int64(in.Imm)))
	return pc, nil
}

func opEcall(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
	return pc, ErrEnvCall
}

func opEbreak(proc *Processor, bus Bus, word uint32, pc uint64) (uint64, error) {
	return pc, ErrBreakpoint
}
