// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"slices"

	"github.com/ezrec/rvperm/cpu"
	"github.com/ezrec/rvperm/internal"
	"github.com/ezrec/rvperm/loader"
	"github.com/ezrec/rvperm/mmu"
)

const (
	DEFAULT_MEMORY_SIZE = 32 * 1024 * 1024 // Default guest memory, in bytes.
)

var _emulator_defines = map[string]string{
	"DEFAULT_MEMORY_SIZE": fmt.Sprintf("%v", DEFAULT_MEMORY_SIZE),
}

// Emulator state. Processor + memory + dispatch table.
type Emulator struct {
	Verbose    bool      // If set, enables verbose logging.
	StrictExec bool      // If set, instruction fetch also requires PERM_EXEC.
	Table      cpu.Table // Dispatch table, first match wins.
	Steps      int       // Instructions retired since creation.

	Memory    *mmu.Mmu
	Processor *cpu.Processor
}

// NewEmulator creates an emulator with memSize bytes of fresh memory,
// starting execution at entry.
func NewEmulator(memSize uint64, entry uint64) (emu *Emulator) {
	emu = &Emulator{
		Table:     cpu.Instructions,
		Memory:    mmu.NewMmu(memSize),
		Processor: cpu.NewProcessor(entry),
	}

	return
}

// Defines returns an iterator over all of the defines.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Memory.Defines(),
		emu.Processor.Defines(),
	)
}

// Fork returns an independent copy of the emulator.
func (emu *Emulator) Fork() *Emulator {
	proc := *emu.Processor
	return &Emulator{
		Verbose:    emu.Verbose,
		StrictExec: emu.StrictExec,
		Table:      emu.Table,
		Steps:      emu.Steps,
		Memory:     emu.Memory.Fork(),
		Processor:  &proc,
	}
}

// LoadSegment writes a segment into memory, then declares its permissions.
// Bytes between len(seg.Data) and seg.MemSize are zero filled.
func (emu *Emulator) LoadSegment(seg loader.Segment) (err error) {
	if uint64(len(seg.Data)) > seg.MemSize {
		err = errors.Join(ErrSegment, loader.ErrSegmentSize)
		return
	}

	if emu.Verbose {
		log.Printf("load: 0x%016x-0x%016x %v (%d bytes)", seg.Addr, seg.End(), seg.Perm, len(seg.Data))
	}

	err = emu.Memory.SetPerms(seg.Addr, seg.MemSize, mmu.PERM_WRITE)
	if err != nil {
		return
	}

	data := seg.Data
	if uint64(len(data)) < seg.MemSize {
		data = make([]byte, seg.MemSize)
		copy(data, seg.Data)
	}

	err = emu.Memory.Write(seg.Addr, data)
	if err != nil {
		return
	}

	err = emu.Memory.SetPerms(seg.Addr, seg.MemSize, seg.Perm)
	return
}

// LoadSegments loads every segment in order, stopping at the first failure.
func (emu *Emulator) LoadSegments(segs iter.Seq[loader.Segment]) (err error) {
	for seg := range segs {
		err = emu.LoadSegment(seg)
		if err != nil {
			return
		}
	}

	return
}

// LoadImage loads an image and points the program counter at its entry.
func (emu *Emulator) LoadImage(img *loader.Image) (err error) {
	err = emu.LoadSegments(slices.Values(img.Segments))
	if err != nil {
		return
	}

	emu.Processor.SetReg(cpu.REG_PC, img.Entry)
	return
}

// Fetch reads the instruction word at addr.
func (emu *Emulator) Fetch(addr uint64) (word uint32, err error) {
	want := mmu.PERM_READ
	if emu.StrictExec {
		want |= mmu.PERM_EXEC
	}

	word, err = mmu.ReadUintPerm[uint32](emu.Memory, addr, want)
	if err != nil {
		err = errors.Join(ErrFetch, err)
		return
	}

	return
}

// Tick performs a single fetch, decode and execute step.
// On any error the program counter still addresses the faulting word.
func (emu *Emulator) Tick() (err error) {
	proc := emu.Processor
	pc := proc.Pc()

	word, err := emu.Fetch(pc)
	if err != nil {
		err = &ErrRuntime{Pc: pc, Err: err}
		return
	}

	ins, ok := emu.Table.Decode(word)
	if !ok {
		err = &ErrDecode{Pc: pc, Word: word}
		return
	}

	if emu.Verbose {
		log.Printf("%016x: %08x %v", pc, word, cpu.Disassemble(word))
	}

	next, err := ins.Operation(proc, emu.Memory, word, pc)
	if err != nil {
		err = &ErrRuntime{Pc: pc, Word: word, Name: ins.Name, Err: err}
		return
	}

	if next == pc {
		proc.IncPc()
	}

	emu.Steps++
	return
}

// Run ticks until an error, or until limit instructions have retired.
// A limit of zero or less runs until an error.
func (emu *Emulator) Run(limit int) (steps int, err error) {
	for limit <= 0 || steps < limit {
		err = emu.Tick()
		if err != nil {
			return
		}
		steps++
	}

	return
}
