// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package io provides the console environment calls of guest programs.
//
// A guest requests a service by placing its number in a7 and its
// arguments in a0..a2, then executing ecall. The result is returned in a0.
package io

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"

	"github.com/ezrec/rvperm/cpu"
	"github.com/ezrec/rvperm/emulator"
	"github.com/ezrec/rvperm/mmu"
)

const (
	SYS_READ  = 63 // read(fd, buf, len)
	SYS_WRITE = 64 // write(fd, buf, len)
	SYS_EXIT  = 93 // exit(status)

	FD_STDIN  = 0
	FD_STDOUT = 1
	FD_STDERR = 2

	MAX_TRANSFER = 1 << 20 // Largest single read or write, in bytes.
	EBADF        = 9       // Bad file descriptor, returned negated.
)

var _tape_defines = map[string]string{
	"SYS_READ":  fmt.Sprintf("%v", SYS_READ),
	"SYS_WRITE": fmt.Sprintf("%v", SYS_WRITE),
	"SYS_EXIT":  fmt.Sprintf("%v", SYS_EXIT),
	"FD_STDIN":  fmt.Sprintf("%v", FD_STDIN),
	"FD_STDOUT": fmt.Sprintf("%v", FD_STDOUT),
	"FD_STDERR": fmt.Sprintf("%v", FD_STDERR),
}

// Tape provides sequential console I/O to a guest. Input feeds
// SYS_READ on FD_STDIN; Output receives SYS_WRITE on FD_STDOUT and
// FD_STDERR.
type Tape struct {
	Input  io.Reader
	Output io.Writer

	Exited bool // Set once the guest has called SYS_EXIT.
	Status int  // Exit status passed to SYS_EXIT.
}

// Defines returns an iter of defines for the tape.
func (tc *Tape) Defines() iter.Seq2[string, string] {
	return maps.All(_tape_defines)
}

// errno encodes a failure result, as the negated error number.
func errno(code int64) uint64 {
	return uint64(-code)
}

// EnvCall services the environment call requested by the processor
// state. Guest memory faults are returned as errors and leave a0 intact.
func (tc *Tape) EnvCall(proc *cpu.Processor, mem *mmu.Mmu) (err error) {
	fd := proc.Reg(cpu.REG_A0)
	buf := proc.Reg(cpu.REG_A1)
	length := min(proc.Reg(cpu.REG_A2), MAX_TRANSFER)

	switch number := proc.Reg(cpu.REG_A7); number {
	case SYS_EXIT:
		tc.Exited = true
		tc.Status = int(fd & 0xff)
	case SYS_WRITE:
		if (fd != FD_STDOUT && fd != FD_STDERR) || tc.Output == nil {
			proc.SetReg(cpu.REG_A0, errno(EBADF))
			return
		}
		var data []byte
		data, err = mem.Read(buf, length)
		if err != nil {
			return
		}
		var n int
		n, err = tc.Output.Write(data)
		if err != nil {
			return
		}
		proc.SetReg(cpu.REG_A0, uint64(n))
	case SYS_READ:
		if fd != FD_STDIN || tc.Input == nil {
			proc.SetReg(cpu.REG_A0, errno(EBADF))
			return
		}
		data := make([]byte, length)
		n, rerr := tc.Input.Read(data)
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			err = rerr
			return
		}
		err = mem.Write(buf, data[:n])
		if err != nil {
			return
		}
		proc.SetReg(cpu.REG_A0, uint64(n))
	default:
		err = ErrEnvCall(number)
	}

	return
}

// Run executes the emulator, servicing environment calls, until a fault,
// a SYS_EXIT, or limit instructions have retired. A limit of zero or less
// runs without bound.
func (tc *Tape) Run(emu *emulator.Emulator, limit int) (steps int, err error) {
	for !tc.Exited {
		remain := 0
		if limit > 0 {
			remain = limit - steps
			if remain <= 0 {
				return
			}
		}

		var ran int
		ran, err = emu.Run(remain)
		steps += ran
		if !errors.Is(err, cpu.ErrEnvCall) {
			return
		}

		pc := emu.Processor.Pc()
		err = tc.EnvCall(emu.Processor, emu.Memory)
		if err != nil {
			err = &emulator.ErrRuntime{Pc: pc, Name: "ecall", Err: err}
			return
		}

		// Resume after the ecall.
		emu.Processor.IncPc()
		emu.Steps++
		steps++
	}

	return
}
