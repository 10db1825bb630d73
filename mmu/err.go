package mmu

import (
	"errors"

	"github.com/ezrec/rvperm/translate"
)

var f = translate.From

var (
	ErrPermission = errors.New(f("permission fault"))
	ErrBounds     = errors.New(f("bounds fault"))
)

// ErrAccess records the range of a failed memory access.
type ErrAccess struct {
	Op   string // "read", "write" or "perms"
	Addr uint64
	Len  uint64
	Err  error
}

func (err *ErrAccess) Error() string {
	return f("%v 0x%x+%d %v", err.Op, err.Addr, err.Len, err.Err)
}

func (err *ErrAccess) Unwrap() error {
	return err.Err
}
