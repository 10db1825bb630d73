package cpu

import (
	"errors"

	"github.com/ezrec/rvperm/translate"
)

var f = translate.From

var (
	ErrRegisterInvalid = errors.New(f("register invalid"))
	ErrMisaligned      = errors.New(f("misaligned jump target"))
	ErrEnvCall         = errors.New(f("environment call"))
	ErrBreakpoint      = errors.New(f("breakpoint"))
)

// ErrRegisterIndex is an out of range register index.
type ErrRegisterIndex uint32

func (err ErrRegisterIndex) Error() string {
	return f("register index %d out of range", uint32(err))
}

func (err ErrRegisterIndex) Unwrap() error {
	return ErrRegisterInvalid
}
