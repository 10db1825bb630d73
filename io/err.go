package io

import (
	"errors"

	"github.com/ezrec/rvperm/translate"
)

var f = translate.From

var (
	ErrEnvCallUnknown = errors.New(f("environment call unknown"))
)

// ErrEnvCall is an environment call number with no service.
type ErrEnvCall uint64

func (err ErrEnvCall) Error() string {
	return f("environment call %d unknown", uint64(err))
}

func (err ErrEnvCall) Unwrap() error {
	return ErrEnvCallUnknown
}
