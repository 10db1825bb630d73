package cpu

import (
	"fmt"
	"iter"
	"maps"
	"strings"
	"text/tabwriter"
)

const (
	INSTRUCTION_WIDTH = 4 // Bytes per instruction word.
)

var _cpu_defines = map[string]string{
	"INSTRUCTION_WIDTH": fmt.Sprintf("%v", INSTRUCTION_WIDTH),
	"REGISTER_COUNT":    fmt.Sprintf("%v", REGISTER_COUNT),
}

// Processor is the register file. The program counter lives in the
// REG_PC slot and is read and written like any other register.
type Processor struct {
	Register [REGISTER_COUNT]uint64
}

// NewProcessor creates a processor with all registers zero and the
// program counter set to entry.
func NewProcessor(entry uint64) (proc *Processor) {
	proc = &Processor{}
	proc.Register[REG_PC] = entry
	return
}

// Defines for the cpu.
func (proc *Processor) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reg returns the value of a register.
func (proc *Processor) Reg(reg Register) uint64 {
	return proc.Register[reg]
}

// SetReg sets the value of a register. Writes to REG_ZERO are discarded.
func (proc *Processor) SetReg(reg Register, value uint64) {
	if reg == REG_ZERO {
		return
	}
	proc.Register[reg] = value
}

// Pc returns the program counter.
func (proc *Processor) Pc() uint64 {
	return proc.Register[REG_PC]
}

// IncPc advances the program counter by one instruction.
func (proc *Processor) IncPc() {
	proc.Register[REG_PC] += INSTRUCTION_WIDTH
}

// String returns the register file as a four column table.
func (proc *Processor) String() string {
	var out strings.Builder

	w := tabwriter.NewWriter(&out, 0, 0, 2, ' ', 0)
	for n, value := range proc.Register {
		sep := "\t"
		if n%4 == 3 || n == len(proc.Register)-1 {
			sep = "\n"
		}
		fmt.Fprintf(w, "%v:\t%016x%v", Register(n), value, sep)
	}
	w.Flush()

	return out.String()
}
