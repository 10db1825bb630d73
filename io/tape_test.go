package io

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/rvperm/asm"
	"github.com/ezrec/rvperm/cpu"
	"github.com/ezrec/rvperm/emulator"
	"github.com/ezrec/rvperm/mmu"
)

func envCall(tc *Tape, mem *mmu.Mmu, number, a0, a1, a2 uint64) (proc *cpu.Processor, err error) {
	proc = cpu.NewProcessor(0)
	proc.SetReg(cpu.REG_A7, number)
	proc.SetReg(cpu.REG_A0, a0)
	proc.SetReg(cpu.REG_A1, a1)
	proc.SetReg(cpu.REG_A2, a2)
	err = tc.EnvCall(proc, mem)
	return
}

func TestTapeWrite(t *testing.T) {
	assert := assert.New(t)

	output := &bytes.Buffer{}
	tc := &Tape{Output: output}
	mem := mmu.NewMmu(0x1000)
	assert.NoError(mem.Write(0x100, []byte("hello")))

	proc, err := envCall(tc, mem, SYS_WRITE, FD_STDOUT, 0x100, 5)
	assert.NoError(err)
	assert.Equal(uint64(5), proc.Reg(cpu.REG_A0))
	assert.Equal("hello", output.String())

	// Never written.
	proc, err = envCall(tc, mem, SYS_WRITE, FD_STDERR, 0x100, 6)
	assert.ErrorIs(err, mmu.ErrPermission)
	assert.Equal(uint64(FD_STDERR), proc.Reg(cpu.REG_A0))
	assert.Equal("hello", output.String())

	proc, err = envCall(tc, mem, SYS_WRITE, 7, 0x100, 5)
	assert.NoError(err)
	assert.Equal(^uint64(EBADF-1), proc.Reg(cpu.REG_A0))
}

func TestTapeRead(t *testing.T) {
	assert := assert.New(t)

	tc := &Tape{Input: strings.NewReader("abc")}
	mem := mmu.NewMmu(0x1000)

	proc, err := envCall(tc, mem, SYS_READ, FD_STDIN, 0x200, 16)
	assert.NoError(err)
	assert.Equal(uint64(3), proc.Reg(cpu.REG_A0))

	data, err := mem.Read(0x200, 3)
	assert.NoError(err)
	assert.Equal([]byte("abc"), data)

	proc, err = envCall(tc, mem, SYS_READ, FD_STDIN, 0x200, 16)
	assert.NoError(err)
	assert.Equal(uint64(0), proc.Reg(cpu.REG_A0))

	tc.Input = strings.NewReader("xyz")
	assert.NoError(mem.SetPerms(0x300, 16, mmu.PERM_READ))
	_, err = envCall(tc, mem, SYS_READ, FD_STDIN, 0x300, 16)
	assert.ErrorIs(err, mmu.ErrPermission)

	proc, err = envCall(tc, mem, SYS_READ, FD_STDOUT, 0x200, 16)
	assert.NoError(err)
	assert.Equal(^uint64(EBADF-1), proc.Reg(cpu.REG_A0))
}

func TestTapeExit(t *testing.T) {
	assert := assert.New(t)

	tc := &Tape{}
	_, err := envCall(tc, mmu.NewMmu(0), SYS_EXIT, 0x103, 0, 0)
	assert.NoError(err)
	assert.True(tc.Exited)
	assert.Equal(3, tc.Status)
}

func TestTapeUnknown(t *testing.T) {
	assert := assert.New(t)

	tc := &Tape{}
	_, err := envCall(tc, mmu.NewMmu(0), 999, 0, 0, 0)
	assert.ErrorIs(err, ErrEnvCallUnknown)

	var ec ErrEnvCall
	if assert.ErrorAs(err, &ec) {
		assert.Equal(ErrEnvCall(999), ec)
	}
}

func TestTapeDefines(t *testing.T) {
	assert := assert.New(t)

	defines := map[string]string{}
	for k, v := range (&Tape{}).Defines() {
		defines[k] = v
	}
	assert.Equal("64", defines["SYS_WRITE"])
	assert.Equal("93", defines["SYS_EXIT"])
}

func doBoot(t *testing.T, tc *Tape, program ...string) (emu *emulator.Emulator) {
	assembler := &asm.Assembler{}
	for k, v := range tc.Defines() {
		assembler.Predefine(k, v)
	}

	prog, err := assembler.Parse(strings.NewReader(strings.Join(program, "\n")))
	assert.NoError(t, err)
	if err != nil {
		t.Fatal(err)
	}

	emu = emulator.NewEmulator(0x4000, 0)
	assert.NoError(t, emu.LoadImage(prog.Image(mmu.PERM_READ|mmu.PERM_EXEC)))
	return
}

func TestTapeRun(t *testing.T) {
	assert := assert.New(t)

	output := &bytes.Buffer{}
	tc := &Tape{Output: output}

	emu := doBoot(t, tc,
		"_start: lui a1, 2",
		"        li t0, 'o'",
		"        sb t0, 0(a1)",
		"        li t0, 'k'",
		"        sb t0, 1(a1)",
		"        li a0, FD_STDOUT",
		"        li a2, 2",
		"        li a7, SYS_WRITE",
		"        ecall",
		"        li a0, 7",
		"        li a7, SYS_EXIT",
		"        ecall",
		"        ebreak",
	)

	steps, err := tc.Run(emu, 0)
	assert.NoError(err)
	assert.Equal(12, steps)
	assert.Equal("ok", output.String())
	assert.True(tc.Exited)
	assert.Equal(7, tc.Status)
}

func TestTapeRunFault(t *testing.T) {
	assert := assert.New(t)

	tc := &Tape{Output: &bytes.Buffer{}}

	emu := doBoot(t, tc,
		"lui a1, 2",
		"li a0, FD_STDOUT",
		"li a2, 2",
		"li a7, SYS_WRITE",
		"ecall",
	)

	_, err := tc.Run(emu, 0)
	assert.ErrorIs(err, mmu.ErrPermission)

	var runtime *emulator.ErrRuntime
	if assert.ErrorAs(err, &runtime) {
		assert.Equal("ecall", runtime.Name)
		assert.Equal(uint64(0x1010), runtime.Pc)
	}
	assert.False(tc.Exited)
}

func TestTapeRunLimit(t *testing.T) {
	assert := assert.New(t)

	tc := &Tape{}

	emu := doBoot(t, tc,
		"loop: li a7, 999",
		"      j loop",
	)

	steps, err := tc.Run(emu, 2)
	assert.NoError(err)
	assert.Equal(2, steps)

	tc = &Tape{}
	emu = doBoot(t, tc,
		"li a7, 999",
		"ecall",
	)
	_, err = tc.Run(emu, 10)
	assert.ErrorIs(err, ErrEnvCallUnknown)
}
