// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package mmu implements a flat, byte granular guest memory.
//
// Every byte of memory carries a Perm mask. Fresh memory is writable but not
// readable: the PERM_RAW flag marks bytes that have never been written, and a
// read of any such byte faults. A successful write that touches at least one
// PERM_RAW byte promotes the whole written span to readable.
package mmu

import (
	"fmt"
	"iter"
	"maps"
	"math/bits"
	"slices"

	"golang.org/x/exp/constraints"
)

var _mmu_defines = map[string]string{
	"PERM_READ":  fmt.Sprintf("0x%x", uint8(PERM_READ)),
	"PERM_WRITE": fmt.Sprintf("0x%x", uint8(PERM_WRITE)),
	"PERM_RAW":   fmt.Sprintf("0x%x", uint8(PERM_RAW)),
	"PERM_EXEC":  fmt.Sprintf("0x%x", uint8(PERM_EXEC)),
}

// Mmu is the guest memory: raw bytes plus a parallel permission array.
type Mmu struct {
	memory      []byte
	permissions []Perm
}

// NewMmu creates a memory of size bytes, all PERM_WRITE|PERM_RAW.
func NewMmu(size uint64) (mm *Mmu) {
	mm = &Mmu{
		memory:      make([]byte, size),
		permissions: make([]Perm, size),
	}

	for n := range mm.permissions {
		mm.permissions[n] = PERM_WRITE | PERM_RAW
	}

	return
}

// Defines for the mmu.
func (mm *Mmu) Defines() iter.Seq2[string, string] {
	return maps.All(_mmu_defines)
}

// Size returns the number of addressable bytes.
func (mm *Mmu) Size() uint64 {
	return uint64(len(mm.memory))
}

// Fork returns an independent copy of the memory and its permissions.
func (mm *Mmu) Fork() *Mmu {
	return &Mmu{
		memory:      slices.Clone(mm.memory),
		permissions: slices.Clone(mm.permissions),
	}
}

// span converts [addr, addr+length) into slice indexes.
func (mm *Mmu) span(op string, addr uint64, length uint64) (lo, hi uint64, err error) {
	size := mm.Size()
	if addr > size || length > size-addr {
		err = &ErrAccess{Op: op, Addr: addr, Len: length, Err: ErrBounds}
		return
	}

	lo = addr
	hi = addr + length
	return
}

// check verifies every byte of [lo, hi) holds want.
func (mm *Mmu) check(op string, lo, hi uint64, want Perm) (err error) {
	for _, perm := range mm.permissions[lo:hi] {
		if !perm.Has(want) {
			err = &ErrAccess{Op: op, Addr: lo, Len: hi - lo, Err: ErrPermission}
			return
		}
	}

	return
}

// Read copies length bytes starting at addr. Every byte must be PERM_READ.
func (mm *Mmu) Read(addr uint64, length uint64) (data []byte, err error) {
	if length != 0 {
		_, _, err = mm.span("read", addr, length)
		if err != nil {
			return
		}
	}

	data = make([]byte, length)
	err = mm.ReadInto(addr, data)
	if err != nil {
		data = nil
	}
	return
}

// ReadInto fills buf from addr. Every byte must be PERM_READ.
func (mm *Mmu) ReadInto(addr uint64, buf []byte) (err error) {
	return mm.readPerm(addr, buf, PERM_READ)
}

func (mm *Mmu) readPerm(addr uint64, buf []byte, want Perm) (err error) {
	if len(buf) == 0 {
		return
	}

	lo, hi, err := mm.span("read", addr, uint64(len(buf)))
	if err != nil {
		return
	}

	err = mm.check("read", lo, hi, want)
	if err != nil {
		return
	}

	copy(buf, mm.memory[lo:hi])
	return
}

// Write copies data to addr. Every byte must be PERM_WRITE, otherwise
// nothing is written. If any written byte was still PERM_RAW, the whole
// span becomes PERM_READ and loses PERM_RAW.
func (mm *Mmu) Write(addr uint64, data []byte) (err error) {
	if len(data) == 0 {
		return
	}

	lo, hi, err := mm.span("write", addr, uint64(len(data)))
	if err != nil {
		return
	}

	err = mm.check("write", lo, hi, PERM_WRITE)
	if err != nil {
		return
	}

	copy(mm.memory[lo:hi], data)

	perms := mm.permissions[lo:hi]
	if slices.ContainsFunc(perms, func(p Perm) bool { return p.Has(PERM_RAW) }) {
		for n := range perms {
			perms[n] = (perms[n] &^ PERM_RAW) | PERM_READ
		}
	}

	return
}

// SetPerms overwrites the permission of every byte in [addr, addr+length).
func (mm *Mmu) SetPerms(addr uint64, length uint64, perm Perm) (err error) {
	if length == 0 {
		return
	}

	lo, hi, err := mm.span("perms", addr, length)
	if err != nil {
		return
	}

	for n := range mm.permissions[lo:hi] {
		mm.permissions[lo+uint64(n)] = perm
	}

	return
}

// Perms returns a copy of the permissions of [addr, addr+length).
func (mm *Mmu) Perms(addr uint64, length uint64) (perms []Perm, err error) {
	lo, hi, err := mm.span("perms", addr, length)
	if err != nil {
		return
	}

	perms = slices.Clone(mm.permissions[lo:hi])
	return
}

// Reader is memory that checks permissions on every read.
type Reader interface {
	ReadInto(addr uint64, buf []byte) error
}

// Writer is memory that checks permissions on every write.
type Writer interface {
	Write(addr uint64, data []byte) error
}

// Width returns the size in bytes of an unsigned integer type.
func Width[T constraints.Unsigned]() int {
	return bits.Len64(uint64(^T(0))) / 8
}

func fromLittle[T constraints.Unsigned](buf []byte) (value T) {
	for n := len(buf) - 1; n >= 0; n-- {
		value = (value << 8) | T(buf[n])
	}
	return
}

// ReadUint reads a little endian unsigned integer of T's width from addr.
func ReadUint[T constraints.Unsigned](mem Reader, addr uint64) (value T, err error) {
	var buf [8]byte
	width := Width[T]()

	err = mem.ReadInto(addr, buf[:width])
	if err != nil {
		return
	}

	value = fromLittle[T](buf[:width])
	return
}

// ReadUintPerm is ReadUint on a Mmu, where every byte must hold want.
func ReadUintPerm[T constraints.Unsigned](mm *Mmu, addr uint64, want Perm) (value T, err error) {
	var buf [8]byte
	width := Width[T]()

	err = mm.readPerm(addr, buf[:width], want)
	if err != nil {
		return
	}

	value = fromLittle[T](buf[:width])
	return
}

// WriteUint writes value to addr as a little endian unsigned integer.
func WriteUint[T constraints.Unsigned](mem Writer, addr uint64, value T) (err error) {
	var buf [8]byte
	width := Width[T]()

	for n := range width {
		buf[n] = byte(value)
		value >>= 8
	}

	return mem.Write(addr, buf[:width])
}
