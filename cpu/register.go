package cpu

import (
	"strconv"
	"strings"
)

// Register identifies a slot of the register file.
type Register int

//go:generate go tool stringer -linecomment -type=Register
const (
	REG_ZERO = Register(iota) // zero
	REG_RA                    // ra
	REG_SP                    // sp
	REG_GP                    // gp
	REG_TP                    // tp
	REG_T0                    // t0
	REG_T1                    // t1
	REG_T2                    // t2
	REG_S0                    // s0
	REG_S1                    // s1
	REG_A0                    // a0
	REG_A1                    // a1
	REG_A2                    // a2
	REG_A3                    // a3
	REG_A4                    // a4
	REG_A5                    // a5
	REG_A6                    // a6
	REG_A7                    // a7
	REG_S2                    // s2
	REG_S3                    // s3
	REG_S4                    // s4
	REG_S5                    // s5
	REG_S6                    // s6
	REG_S7                    // s7
	REG_S8                    // s8
	REG_S9                    // s9
	REG_S10                   // s10
	REG_S11                   // s11
	REG_T3                    // t3
	REG_T4                    // t4
	REG_T5                    // t5
	REG_T6                    // t6
	REG_PC                    // pc

	REGISTER_COUNT = int(REG_PC) + 1
)

// RegisterFromIndex maps a general purpose register number (0-31) to its
// Register. REG_PC has no encoding and is never returned.
func RegisterFromIndex(index uint32) (reg Register, err error) {
	if index >= uint32(REG_PC) {
		err = ErrRegisterIndex(index)
		return
	}

	reg = Register(index)
	return
}

// RegisterFromName looks up a register by ABI name ("a0"), numeric name
// ("x10") or the "fp" alias of s0. Numeric names outside x0..x31 fail with
// ErrRegisterIndex.
func RegisterFromName(name string) (reg Register, err error) {
	reg, ok := registerByName[name]
	if ok {
		return
	}

	digits, ok := strings.CutPrefix(name, "x")
	if ok {
		index, perr := strconv.ParseUint(digits, 10, 32)
		if perr == nil {
			return RegisterFromIndex(uint32(index))
		}
	}

	err = ErrRegisterInvalid
	return
}

var registerByName = func() map[string]Register {
	names := make(map[string]Register, int(REG_PC)+1)
	for n := range REG_PC {
		names[n.String()] = n
	}
	names["fp"] = REG_S0
	return names
}()
