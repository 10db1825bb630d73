// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ezrec/rvperm/asm"
	"github.com/ezrec/rvperm/cpu"
	"github.com/ezrec/rvperm/emulator"
	"github.com/ezrec/rvperm/internal"
	"github.com/ezrec/rvperm/io"
	"github.com/ezrec/rvperm/loader"
	"github.com/ezrec/rvperm/mmu"
	"github.com/ezrec/rvperm/translate"
)

const (
	STACK_ALIGN = 16 // Alignment of the initial stack pointer.
)

func main() {
	var compile string
	var executable string
	var memSize uint64
	var limit int
	var strict bool
	var dump bool
	var verbose bool

	flag.StringVar(&compile, "c", "", ".s file to assemble and run")
	flag.StringVar(&executable, "e", "", "RISC-V ELF executable to run")
	flag.Uint64Var(&memSize, "m", emulator.DEFAULT_MEMORY_SIZE, "Guest memory size, in bytes")
	flag.IntVar(&limit, "n", 0, "Stop after this many instructions (0 is unlimited)")
	flag.BoolVar(&strict, "x", false, "Require execute permission on instruction fetch")
	flag.BoolVar(&dump, "d", false, "Dump loaded memory when execution stops")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if (len(compile) == 0) == (len(executable) == 0) {
		log.Fatalf("%v: exactly one of -c or -e is required", os.Args[0])
	}

	emu := emulator.NewEmulator(memSize, 0)
	emu.Verbose = verbose
	emu.StrictExec = strict

	tape := &io.Tape{Input: os.Stdin, Output: os.Stdout}

	name := executable
	var prog *asm.Program
	var img *loader.Image

	// Assemble a new program.
	if len(compile) != 0 {
		name = compile
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		assembler := &asm.Assembler{Verbose: verbose}
		for equ, value := range internal.IterSeq2Concat(emu.Defines(), tape.Defines()) {
			assembler.Predefine(equ, value)
		}
		prog, err = assembler.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		img = prog.Image(mmu.PERM_RWX)
	} else {
		inf, err := os.Open(executable)
		if err != nil {
			log.Fatalf("%v: %v", executable, err)
		}
		defer inf.Close()

		img, err = loader.ReadELF(inf)
		if err != nil {
			log.Fatalf("%v: %v", executable, err)
		}
	}

	err := emu.LoadImage(img)
	if err != nil {
		log.Fatalf("%v: %v", name, err)
	}
	emu.Processor.SetReg(cpu.REG_SP, memSize&^(STACK_ALIGN-1))

	steps, err := tape.Run(emu, limit)

	if verbose {
		log.Printf("%v: %v instructions", name, translate.Number(steps))
	}

	if dump {
		for _, seg := range img.Segments {
			_ = emu.Memory.Dump(os.Stdout, seg.Addr, seg.End())
		}
	}

	switch {
	case err != nil && !errors.Is(err, cpu.ErrBreakpoint):
		fmt.Fprint(os.Stderr, emu.Processor.String())
		if prog != nil {
			stmt, ok := prog.Debug(emu.Processor.Pc())
			if ok {
				log.Printf("%v: line %d: %v", name, stmt.LineNo, stmt.Line)
			}
		}
		log.Fatalf("%v: %v", name, err)
	case tape.Exited:
		os.Exit(tape.Status)
	}
}
