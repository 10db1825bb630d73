package emulator

import (
	"errors"

	"github.com/ezrec/rvperm/translate"
)

var f = translate.From

var (
	ErrUnimplemented = errors.New(f("unimplemented instruction"))
	ErrFetch         = errors.New(f("instruction fetch"))
	ErrSegment       = errors.New(f("segment invalid"))
)

// ErrDecode is an instruction word that matched no dispatch entry.
type ErrDecode struct {
	Pc   uint64
	Word uint32
}

func (err *ErrDecode) Error() string {
	return f("pc 0x%016x: word 0x%08x: %v", err.Pc, err.Word, ErrUnimplemented)
}

func (err *ErrDecode) Is(target error) bool {
	return target == ErrUnimplemented
}

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Pc   uint64
	Word uint32
	Name string
	Err  error
}

func (err *ErrRuntime) Error() string {
	if len(err.Name) == 0 {
		return f("pc 0x%016x: %v", err.Pc, err.Err)
	}
	return f("pc 0x%016x: %v (0x%08x): %v", err.Pc, err.Name, err.Word, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
