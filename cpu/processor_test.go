package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessor(t *testing.T) {
	assert := assert.New(t)

	proc := NewProcessor(0x8000)
	assert.Equal(uint64(0x8000), proc.Pc())
	assert.Equal(uint64(0x8000), proc.Reg(REG_PC))
	for n := range REG_PC {
		assert.Equal(uint64(0), proc.Reg(n), n.String())
	}

	proc.SetReg(REG_A0, 42)
	assert.Equal(uint64(42), proc.Reg(REG_A0))

	proc.SetReg(REG_ZERO, 42)
	assert.Equal(uint64(0), proc.Reg(REG_ZERO))

	proc.IncPc()
	assert.Equal(uint64(0x8004), proc.Pc())

	proc.SetReg(REG_PC, 0x100)
	assert.Equal(uint64(0x100), proc.Pc())
}

func TestProcessorString(t *testing.T) {
	assert := assert.New(t)

	proc := NewProcessor(0x1234)
	proc.SetReg(REG_T6, 0xfeed)

	text := proc.String()
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	assert.Equal(9, len(lines))
	assert.True(strings.HasPrefix(lines[0], "zero:"))
	assert.Contains(lines[7], "000000000000feed")
	assert.Contains(lines[8], "pc:")
	assert.Contains(lines[8], "0000000000001234")
}

func TestRegister(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("zero", REG_ZERO.String())
	assert.Equal("a0", REG_A0.String())
	assert.Equal("t6", REG_T6.String())
	assert.Equal("pc", REG_PC.String())
	assert.Equal(33, REGISTER_COUNT)

	for index := range uint32(32) {
		reg, err := RegisterFromIndex(index)
		assert.NoError(err)
		assert.Equal(Register(index), reg)
	}

	_, err := RegisterFromIndex(32)
	assert.ErrorIs(err, ErrRegisterInvalid)
	_, err = RegisterFromIndex(0xffff)
	assert.ErrorIs(err, ErrRegisterInvalid)

	table := [](struct {
		name string
		reg  Register
		ok   bool
	}){
		{"zero", REG_ZERO, true},
		{"x0", REG_ZERO, true},
		{"ra", REG_RA, true},
		{"x10", REG_A0, true},
		{"fp", REG_S0, true},
		{"s0", REG_S0, true},
		{"x31", REG_T6, true},
		{"pc", 0, false},
		{"x32", 0, false},
		{"r1", 0, false},
		{"x", 0, false},
		{"x-1", 0, false},
	}

	for _, entry := range table {
		reg, err := RegisterFromName(entry.name)
		if entry.ok {
			assert.NoError(err, entry.name)
			assert.Equal(entry.reg, reg, entry.name)
		} else {
			assert.ErrorIs(err, ErrRegisterInvalid, entry.name)
		}
	}

	var index ErrRegisterIndex
	_, err = RegisterFromName("x32")
	if assert.ErrorAs(err, &index) {
		assert.Equal(ErrRegisterIndex(32), index)
	}

	assert.Equal("Register(40)", Register(40).String())
	assert.Equal("N", SHAPE_N.String())
	assert.Equal("Shape(9)", Shape(9).String())
}

func TestProcessorDefines(t *testing.T) {
	assert := assert.New(t)

	defines := map[string]string{}
	for k, v := range NewProcessor(0).Defines() {
		defines[k] = v
	}
	assert.Equal("4", defines["INSTRUCTION_WIDTH"])
	assert.Equal("33", defines["REGISTER_COUNT"])
}
